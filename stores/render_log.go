package stores

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// RenderRecord is one render outcome of a session's playground.
type RenderRecord struct {
	ID         uint      `gorm:"primarykey" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	SessionID  string    `gorm:"index:idx_render_session;not null" json:"session_id"`
	Revision   int64     `gorm:"index:idx_render_session;not null" json:"revision"`
	Trigger    string    `gorm:"not null" json:"trigger"` // generation, edit
	Resources  int       `json:"resources"`
	RenderErr  string    `gorm:"type:text" json:"render_error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// Failed reports whether the render ended in an error.
func (r *RenderRecord) Failed() bool {
	return r.RenderErr != ""
}

// RenderLog persists render outcomes.
type RenderLog interface {
	SaveRender(record *RenderRecord) error
	ListRenders(sessionID string) ([]*RenderRecord, error)
}

// GORMRenderLog implements RenderLog for SQLite/PostgreSQL via GORM
type GORMRenderLog struct {
	db *gorm.DB
}

// NewGORMRenderLog creates a render log from an existing GORM database connection
func NewGORMRenderLog(db *gorm.DB) (*GORMRenderLog, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	if err := db.AutoMigrate(&RenderRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate render_records table: %w", err)
	}

	return &GORMRenderLog{db: db}, nil
}

// SaveRender saves a single render outcome
func (s *GORMRenderLog) SaveRender(record *RenderRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Create(record).Error
}

// ListRenders retrieves every render of a session, ordered by revision
func (s *GORMRenderLog) ListRenders(sessionID string) ([]*RenderRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var records []*RenderRecord
	err := s.db.Where("session_id = ?", sessionID).
		Order("revision ASC, id ASC").
		Find(&records).Error

	return records, err
}
