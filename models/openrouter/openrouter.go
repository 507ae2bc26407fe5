package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Desarso/playground/models"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxTokens   = 1500
	DefaultTemperature = 0.7
)

// OpenRouter_Model implements models.Gateway for OpenRouter and any
// OpenAI-compatible chat completions endpoint (Groq, Cerebras, ...).
type OpenRouter_Model struct {
	Preset      Preset
	Model       string // Optional: overrides Preset.Model
	Temperature *float64
	MaxTokens   *int
	SiteURL     string // Optional: Your site URL for OpenRouter rankings
	SiteName    string // Optional: Your site name for OpenRouter rankings
	BaseURL     string // Optional: overrides Preset.BaseURL
	APIKeyEnv   string // Optional: overrides Preset.APIKeyEnv
	HTTPClient  *http.Client
	Logger      logrus.FieldLogger
}

// NewFromPreset returns a model configured for the named provider.
func NewFromPreset(name string) (*OpenRouter_Model, error) {
	preset, ok := Presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown OpenAI-compatible provider: %s", name)
	}
	return &OpenRouter_Model{Preset: preset}, nil
}

// Complete sends one chat completion and returns the first choice's content.
func (o *OpenRouter_Model) Complete(ctx context.Context, request models.GenerationRequest) (string, error) {
	apiKey, err := models.LookupAPIKey(o.apiKeyEnv())
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(o.createRequest(request))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	o.setHeaders(req, apiKey)

	client := o.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &models.GatewayError{Provider: o.providerName(), Status: resp.StatusCode, Body: string(respBody)}
	}

	var completion OpenRouterResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", o.providerName())
	}

	if completion.Usage != nil {
		o.logger().WithFields(logrus.Fields{
			"model":             completion.Model,
			"prompt_tokens":     completion.Usage.PromptTokens,
			"completion_tokens": completion.Usage.CompletionTokens,
		}).Debug("chat completion")
	}
	return completion.Choices[0].Message.Content, nil
}

// createRequest puts the system instruction first, then the sanitized turns.
func (o *OpenRouter_Model) createRequest(request models.GenerationRequest) OpenRouterRequest {
	messages := []Message{}
	if request.SystemInstruction != "" {
		messages = append(messages, Message{Role: "system", Content: request.SystemInstruction})
	}
	for _, t := range models.SanitizeHistory(request.Turns()) {
		messages = append(messages, Message{Role: string(t.Role), Content: t.Content})
	}

	maxTokens := DefaultMaxTokens
	if o.MaxTokens != nil {
		maxTokens = *o.MaxTokens
	}
	temperature := DefaultTemperature
	if o.Temperature != nil {
		temperature = *o.Temperature
	}

	return OpenRouterRequest{
		Model:       o.model(),
		Messages:    messages,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	}
}

func (o *OpenRouter_Model) model() string {
	if o.Model != "" {
		return o.Model
	}
	if o.Preset.Model != "" {
		return o.Preset.Model
	}
	return PresetOpenRouter.Model
}

func (o *OpenRouter_Model) baseURL() string {
	if o.BaseURL != "" {
		return o.BaseURL
	}
	if o.Preset.BaseURL != "" {
		return o.Preset.BaseURL
	}
	return PresetOpenRouter.BaseURL
}

func (o *OpenRouter_Model) apiKeyEnv() string {
	if o.APIKeyEnv != "" {
		return o.APIKeyEnv
	}
	if o.Preset.APIKeyEnv != "" {
		return o.Preset.APIKeyEnv
	}
	return PresetOpenRouter.APIKeyEnv
}

func (o *OpenRouter_Model) providerName() string {
	if o.Preset.Name != "" {
		return o.Preset.Name
	}
	return PresetOpenRouter.Name
}

func (o *OpenRouter_Model) setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	if o.SiteURL != "" {
		req.Header.Set("HTTP-Referer", o.SiteURL)
	}
	if o.SiteName != "" {
		req.Header.Set("X-Title", o.SiteName)
	}
}

func (o *OpenRouter_Model) logger() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.StandardLogger()
}
