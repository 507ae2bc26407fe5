package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Desarso/playground/models"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL     = "https://api.anthropic.com/v1/messages"
	DefaultAPIVersion  = "2023-06-01"
	DefaultModel       = "claude-sonnet-4-20250514"
	DefaultMaxTokens   = 1500
	DefaultTemperature = 0.7
	DefaultAPIKeyEnv   = "ANTHROPIC_API_KEY"
)

// Anthropic_Model implements models.Gateway for the Anthropic Messages API.
type Anthropic_Model struct {
	Model       string
	Temperature *float64
	MaxTokens   *int
	BaseURL     string       // Optional: custom API endpoint
	APIKeyEnv   string       // Optional: env var name for API key (defaults to ANTHROPIC_API_KEY)
	HTTPClient  *http.Client // Optional: defaults to http.DefaultClient
	Logger      logrus.FieldLogger
}

// Complete sends one non-streaming Messages request and returns the
// concatenated text blocks of the reply.
func (a *Anthropic_Model) Complete(ctx context.Context, request models.GenerationRequest) (string, error) {
	apiKeyEnv := a.APIKeyEnv
	if apiKeyEnv == "" {
		apiKeyEnv = DefaultAPIKeyEnv
	}
	apiKey, err := models.LookupAPIKey(apiKeyEnv)
	if err != nil {
		return "", err
	}

	anthropicReq, err := a.buildRequest(request)
	if err != nil {
		return "", err
	}

	jsonBytes, err := json.Marshal(anthropicReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	baseURL := a.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, bytes.NewReader(jsonBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	setHeaders(req, apiKey)

	client := a.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &models.GatewayError{Provider: "Anthropic", Status: resp.StatusCode, Body: string(body)}
	}

	var anthropicResp AnthropicResponse
	if err := json.Unmarshal(body, &anthropicResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	a.logger().WithFields(logrus.Fields{
		"model":         anthropicResp.Model,
		"stop_reason":   anthropicResp.StopReason,
		"input_tokens":  anthropicResp.Usage.InputTokens,
		"output_tokens": anthropicResp.Usage.OutputTokens,
	}).Debug("anthropic completion")

	return replyText(anthropicResp), nil
}

// replyText joins the text blocks of a response.
func replyText(resp AnthropicResponse) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// buildRequest constructs the Anthropic API request.
func (a *Anthropic_Model) buildRequest(request models.GenerationRequest) (AnthropicRequest, error) {
	turns := request.Turns()
	if issues := models.DetectHistoryIssues(turns); len(issues) > 0 {
		a.logger().WithField("issues", issues).Debug("adapting history for the Messages API")
	}

	messages := []AnthropicMsg{}
	for _, t := range models.SanitizeHistory(turns) {
		messages = append(messages, AnthropicMsg{Role: string(t.Role), Content: t.Content})
	}
	if len(messages) == 0 {
		return AnthropicRequest{}, fmt.Errorf("cannot create Anthropic request with no messages")
	}

	model := a.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := DefaultMaxTokens
	if a.MaxTokens != nil {
		maxTokens = *a.MaxTokens
	}
	temperature := DefaultTemperature
	if a.Temperature != nil {
		temperature = *a.Temperature
	}

	return AnthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Messages:    messages,
		System:      request.SystemInstruction,
		Temperature: &temperature,
	}, nil
}

func (a *Anthropic_Model) logger() logrus.FieldLogger {
	if a.Logger != nil {
		return a.Logger
	}
	return logrus.StandardLogger()
}

// setHeaders sets required headers for Anthropic API requests.
func setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)
	req.Header.Set("anthropic-version", DefaultAPIVersion)
}
