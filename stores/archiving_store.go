package stores

import (
	"github.com/Desarso/playground/models"
	"github.com/sirupsen/logrus"
)

// ArchivingStore is a ConversationStore that copies every appended turn to an
// Archive. The wrapped store stays the source of truth: archive failures are
// logged and never fail the append, and nothing is read back from the archive.
type ArchivingStore struct {
	ConversationStore
	archive   Archive
	sessionID string
	logger    logrus.FieldLogger
}

// NewArchivingStore wraps inner so appends are mirrored to archive under sessionID.
func NewArchivingStore(inner ConversationStore, archive Archive, sessionID string, logger logrus.FieldLogger) *ArchivingStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ArchivingStore{
		ConversationStore: inner,
		archive:           archive,
		sessionID:         sessionID,
		logger:            logger,
	}
}

// Append stores the turn and then archives it.
func (s *ArchivingStore) Append(turn models.Turn) error {
	if err := s.ConversationStore.Append(turn); err != nil {
		return err
	}
	if s.archive == nil {
		return nil
	}
	if err := s.archive.SaveTurn(s.sessionID, turn); err != nil {
		s.logger.WithError(err).WithField("role", turn.Role).Warn("failed to archive turn")
	}
	return nil
}
