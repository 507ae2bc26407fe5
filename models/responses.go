package models

import "strings"

// Envelope names the tag grammar a reply was recognised as.
type Envelope string

const (
	EnvelopeResponse  Envelope = "response"  // <chat_response>/<playground_data>
	EnvelopeComponent Envelope = "component" // <component>/<cdnLinks>/<error>
	EnvelopeNone      Envelope = "none"
)

// ParsedResult is the structure recovered from a raw backend reply. Every
// field is optional; a refusal carries only ChatMessage and/or Error.
type ParsedResult struct {
	ChatMessage       string   `json:"chat_message"`
	ComponentSource   string   `json:"component_source"`
	ExternalResources []string `json:"external_resources"`
	Error             string   `json:"error,omitempty"`
	Envelope          Envelope `json:"envelope"`
}

// HasComponent reports whether the reply carries a playground update.
func (p ParsedResult) HasComponent() bool {
	return strings.TrimSpace(p.ComponentSource) != ""
}

// TranscriptMessage is the text that goes into the assistant Turn: the chat
// message, or the error text when the backend sent only a refusal tag.
func (p ParsedResult) TranscriptMessage() string {
	if p.ChatMessage != "" {
		return p.ChatMessage
	}
	return p.Error
}

// Chat_Response answers the {messages} form of POST /api/chat.
type Chat_Response struct {
	ChatResponse   string   `json:"chatResponse"`
	PlaygroundData string   `json:"playgroundData"`
	CDNLinks       []string `json:"cdnLinks,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Message_Response answers the {message} form of POST /api/chat.
type Message_Response struct {
	Response   string      `json:"response"`
	Playground interface{} `json:"playground,omitempty"`
}

// ErrorResponse is the generic failure body.
type ErrorResponse struct {
	Error string `json:"error"`
}
