package stores

import (
	"time"

	"github.com/Desarso/playground/models"
	"gorm.io/gorm"
)

// ConversationStore holds one session's transcript. Turns are only ever
// appended; Tail returns them in append order.
type ConversationStore interface {
	Append(turn models.Turn) error
	Tail() []models.Turn
	Len() int
}

// ArchivedTurn is a transcript turn written to the optional archive.
type ArchivedTurn struct {
	gorm.Model
	SessionID string `gorm:"index;not null"`
	Sequence  int    `gorm:"not null"`
	Role      string `gorm:"not null"` // "user", "assistant"
	Content   string `gorm:"type:text"`
}

// ArchivedSession holds metadata for an archived session
type ArchivedSession struct {
	gorm.Model
	SessionID string         `gorm:"uniqueIndex;not null"`
	TurnCount int            `gorm:"default:0"`
	Turns     []ArchivedTurn `gorm:"foreignKey:SessionID;references:SessionID"`
}

// SessionInfo holds basic session metadata for listing
type SessionInfo struct {
	SessionID string
	TurnCount int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Archive is a write-mostly record of transcripts and render outcomes. Sessions
// only write to it; reads are for operators inspecting past sessions.
type Archive interface {
	// Turn operations
	SaveTurn(sessionID string, turn models.Turn) error
	ListTurns(sessionID string) ([]ArchivedTurn, error)

	// Session operations
	ListSessions() ([]SessionInfo, error)

	// Render log
	RenderLog() RenderLog

	// Connection management
	Connect() error
	Close() error

	// Health check
	Ping() error
}

// StoreConfig holds configuration for database stores
type StoreConfig struct {
	Type       string            `json:"type" yaml:"type"`             // "sqlite", "postgres"
	Connection string            `json:"connection" yaml:"connection"` // file path or DSN
	Options    map[string]string `json:"options" yaml:"options"`
}

// NewStoreConfig creates a new store configuration
func NewStoreConfig(storeType, connection string) *StoreConfig {
	return &StoreConfig{
		Type:       storeType,
		Connection: connection,
		Options:    make(map[string]string),
	}
}

// WithOption adds an option to the store configuration
func (c *StoreConfig) WithOption(key, value string) *StoreConfig {
	if c.Options == nil {
		c.Options = make(map[string]string)
	}
	c.Options[key] = value
	return c
}
