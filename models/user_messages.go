package models

import "fmt"

// Role identifies the speaker of a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the two conversational roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one entry of the conversation transcript. Turns are immutable once
// appended and their order is the order they are replayed to the backend.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurn builds a user Turn.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn builds an assistant Turn.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// Validate checks the turn's role.
func (t Turn) Validate() error {
	if !t.Role.Valid() {
		return fmt.Errorf("invalid turn role %q", t.Role)
	}
	return nil
}
