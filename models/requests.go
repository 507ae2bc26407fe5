package models

// GenerationRequest is what a Gateway receives for one round trip. It is
// constructed fresh per call and never persisted.
type GenerationRequest struct {
	SystemInstruction string `json:"system_instruction"`
	History           []Turn `json:"history"`
	LatestUserContent string `json:"latest_user_content"`
}

// Turns returns the history followed by the latest user utterance, which is
// the message sequence every provider sends.
func (r GenerationRequest) Turns() []Turn {
	turns := make([]Turn, 0, len(r.History)+1)
	turns = append(turns, r.History...)
	return append(turns, UserTurn(r.LatestUserContent))
}

// Chat_Request is the body of POST /api/chat. Exactly one of Messages or
// Message is expected; Messages wins when both are present.
type Chat_Request struct {
	Messages []Turn  `json:"messages,omitempty"`
	Message  *string `json:"message,omitempty"`
}

// EditSourceRequest is the body of PUT .../playground/source.
type EditSourceRequest struct {
	Source string `json:"source"`
}

// SetViewRequest is the body of PUT .../playground/view.
type SetViewRequest struct {
	View string `json:"view" binding:"required"`
}
