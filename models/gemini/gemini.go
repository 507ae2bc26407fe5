package gemini

import (
	"context"
	"fmt"

	"github.com/Desarso/playground/models"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const (
	DefaultModel       = "gemini-2.0-flash"
	DefaultMaxTokens   = 1500
	DefaultTemperature = 0.7
	DefaultAPIKeyEnv   = "GEMINI_API_KEY"
)

// Gemini_Model implements models.Gateway on top of the genai SDK.
type Gemini_Model struct {
	Model       string
	Temperature *float64
	MaxTokens   *int
	BaseURL     string // Optional: overrides the Gemini API endpoint
	APIKeyEnv   string // Optional: defaults to GEMINI_API_KEY
	Logger      logrus.FieldLogger
}

// Complete runs one GenerateContent call and returns the reply text.
func (g *Gemini_Model) Complete(ctx context.Context, request models.GenerationRequest) (string, error) {
	apiKeyEnv := g.APIKeyEnv
	if apiKeyEnv == "" {
		apiKeyEnv = DefaultAPIKeyEnv
	}
	apiKey, err := models.LookupAPIKey(apiKeyEnv)
	if err != nil {
		return "", err
	}

	contents := toContents(request)
	if len(contents) == 0 {
		return "", fmt.Errorf("cannot create Gemini request with no messages")
	}

	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if g.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := g.Model
	if model == "" {
		model = DefaultModel
	}

	result, err := client.Models.GenerateContent(ctx, model, contents, g.generateConfig(request.SystemInstruction))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(result.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in Gemini response")
	}

	g.logger().WithField("model", model).Debug("gemini completion")
	return result.Text(), nil
}

func (g *Gemini_Model) generateConfig(system string) *genai.GenerateContentConfig {
	maxTokens := DefaultMaxTokens
	if g.MaxTokens != nil {
		maxTokens = *g.MaxTokens
	}
	temperature := DefaultTemperature
	if g.Temperature != nil {
		temperature = *g.Temperature
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperature)),
		MaxOutputTokens: int32(maxTokens),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return config
}

// toContents maps turns to Gemini contents; assistant turns use the "model" role.
func toContents(request models.GenerationRequest) []*genai.Content {
	var contents []*genai.Content
	for _, t := range models.SanitizeHistory(request.Turns()) {
		role := genai.Role(genai.RoleUser)
		if t.Role == models.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Content, role))
	}
	return contents
}

func (g *Gemini_Model) logger() logrus.FieldLogger {
	if g.Logger != nil {
		return g.Logger
	}
	return logrus.StandardLogger()
}
