package stores

import (
	"fmt"

	"github.com/Desarso/playground/models"
	"gorm.io/gorm"
)

// gormArchive is the Archive implementation shared by the SQLite and
// PostgreSQL stores; they differ only in the dialector they open.
type gormArchive struct {
	db        *gorm.DB
	dialector func() gorm.Dialector
	renders   *GORMRenderLog
}

// Connect opens the database and migrates the archive schema.
func (s *gormArchive) Connect() error {
	db, err := gorm.Open(s.dialector(), &gorm.Config{})
	if err != nil {
		return err
	}

	s.db = db

	// Auto-migrate the schema
	if err := s.db.AutoMigrate(&ArchivedSession{}, &ArchivedTurn{}); err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}

	renders, err := NewGORMRenderLog(db)
	if err != nil {
		return err
	}
	s.renders = renders

	return nil
}

// Close closes the database connection
func (s *gormArchive) Close() error {
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (s *gormArchive) Ping() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}

// RenderLog returns the render log sharing this archive's connection.
func (s *gormArchive) RenderLog() RenderLog {
	return s.renders
}

// SaveTurn appends a turn to the archived transcript of sessionID, creating
// the session record on first use.
func (s *gormArchive) SaveTurn(sessionID string, turn models.Turn) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	if err := turn.Validate(); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&ArchivedSession{}).Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check session %s: %w", sessionID, err)
		}
		if count == 0 {
			if err := tx.Create(&ArchivedSession{SessionID: sessionID}).Error; err != nil {
				return fmt.Errorf("failed to create session record: %w", err)
			}
		}

		// Reuse count variable to get the turn sequence number
		if err := tx.Model(&ArchivedTurn{}).Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count existing turns: %w", err)
		}
		seq := int(count) + 1

		record := ArchivedTurn{
			SessionID: sessionID,
			Sequence:  seq,
			Role:      string(turn.Role),
			Content:   turn.Content,
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to create turn record: %w", err)
		}

		if err := tx.Model(&ArchivedSession{}).Where("session_id = ?", sessionID).Update("turn_count", seq).Error; err != nil {
			return fmt.Errorf("failed to update session turn count: %w", err)
		}
		return nil
	})
}

// ListTurns returns the archived transcript of sessionID in sequence order.
func (s *gormArchive) ListTurns(sessionID string) ([]ArchivedTurn, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var turns []ArchivedTurn
	if err := s.db.Where("session_id = ?", sessionID).Order("sequence ASC").Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch turns: %w", err)
	}
	return turns, nil
}

// ListSessions returns every archived session, most recently updated first.
func (s *gormArchive) ListSessions() ([]SessionInfo, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var sessions []ArchivedSession
	if err := s.db.Order("updated_at DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch sessions: %w", err)
	}

	result := make([]SessionInfo, len(sessions))
	for i, sess := range sessions {
		result[i] = SessionInfo{
			SessionID: sess.SessionID,
			TurnCount: sess.TurnCount,
			CreatedAt: sess.CreatedAt,
			UpdatedAt: sess.UpdatedAt,
		}
	}
	return result, nil
}
