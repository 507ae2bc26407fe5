package sessions

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Registry tracks live sessions by id and reaps the ones nobody uses.
type Registry struct {
	factory     *Factory
	idleTimeout time.Duration
	logger      logrus.FieldLogger

	mu       sync.RWMutex
	sessions map[string]*PlaygroundSession

	cron *cron.Cron
}

// NewRegistry creates a registry. idleTimeout <= 0 disables reaping.
func NewRegistry(factory *Factory, idleTimeout time.Duration, logger logrus.FieldLogger) *Registry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registry{
		factory:     factory,
		idleTimeout: idleTimeout,
		logger:      logger,
		sessions:    make(map[string]*PlaygroundSession),
	}
}

// Create starts a new session with a random id.
func (r *Registry) Create() *PlaygroundSession {
	id := uuid.New().String()
	s := r.factory.New(id)

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	r.logger.WithField("session", id).Debug("session created")
	return s
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*PlaygroundSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Remove forgets a session.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Reap removes sessions idle for longer than the idle timeout as of now.
// Sessions with a turn in flight are kept. It returns how many were removed.
func (r *Registry) Reap(now time.Time) int {
	if r.idleTimeout <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if s.Busy() || now.Sub(s.LastActive()) < r.idleTimeout {
			continue
		}
		delete(r.sessions, id)
		removed++
	}
	if removed > 0 {
		r.logger.WithFields(logrus.Fields{"removed": removed, "remaining": len(r.sessions)}).Info("reaped idle sessions")
	}
	return removed
}

// StartReaper runs Reap on the given cron schedule (for example "@every 1m")
// until Stop is called.
func (r *Registry) StartReaper(schedule string) error {
	if r.idleTimeout <= 0 {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { r.Reap(time.Now()) }); err != nil {
		return fmt.Errorf("failed to schedule session reaper: %w", err)
	}
	c.Start()

	r.mu.Lock()
	r.cron = c
	r.mu.Unlock()
	return nil
}

// Stop halts the reaper, if running.
func (r *Registry) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
