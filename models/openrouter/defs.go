package openrouter

// OpenAI-compatible chat completion types

type OpenRouterRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

type OpenRouterResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"` // "chat.completion"
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason *string `json:"finish_reason,omitempty"` // "stop", "length", etc.
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Preset bundles the endpoint, default model and key variable of one
// OpenAI-compatible provider.
type Preset struct {
	Name      string
	BaseURL   string
	Model     string
	APIKeyEnv string
}

var (
	PresetOpenRouter = Preset{
		Name:      "openrouter",
		BaseURL:   "https://openrouter.ai/api/v1/chat/completions",
		Model:     "anthropic/claude-sonnet-4",
		APIKeyEnv: "OPENROUTER_API_KEY",
	}
	PresetGroq = Preset{
		Name:      "groq",
		BaseURL:   "https://api.groq.com/openai/v1/chat/completions",
		Model:     "llama-3.3-70b-versatile",
		APIKeyEnv: "GROQ_API_KEY",
	}
	PresetCerebras = Preset{
		Name:      "cerebras",
		BaseURL:   "https://api.cerebras.ai/v1/chat/completions",
		Model:     "llama-3.3-70b",
		APIKeyEnv: "CEREBRAS_API_KEY",
	}
)

// Presets maps a provider name to its preset.
var Presets = map[string]Preset{
	PresetOpenRouter.Name: PresetOpenRouter,
	PresetGroq.Name:       PresetGroq,
	PresetCerebras.Name:   PresetCerebras,
}
