package sessions

import (
	"github.com/Desarso/playground/sandbox"
	"github.com/Desarso/playground/stores"
	"github.com/sirupsen/logrus"
)

// NewPlaygroundSession creates a session with an in-memory transcript and a
// fresh playground showing the default component.
func NewPlaygroundSession(id string, generator Generator, renderer *sandbox.Renderer, logger logrus.FieldLogger) *PlaygroundSession {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	entry := logger.WithField("session", id)

	s := &PlaygroundSession{
		ID:         id,
		Generator:  generator,
		Store:      stores.NewMemoryStore(),
		Playground: sandbox.NewRuntime(renderer, entry),
		Logger:     entry,
	}
	s.Touch()
	return s
}

// Factory builds sessions that share a generator, renderer and optional
// archive.
type Factory struct {
	Generator Generator
	Renderer  *sandbox.Renderer
	Archive   stores.Archive // Optional: mirrors transcripts and render outcomes
	Logger    logrus.FieldLogger
}

// New creates the session with the given id.
func (f *Factory) New(id string) *PlaygroundSession {
	s := NewPlaygroundSession(id, f.Generator, f.Renderer, f.Logger)
	if f.Archive == nil {
		return s
	}

	s.Store = stores.NewArchivingStore(s.Store, f.Archive, id, s.Logger)
	if renders := f.Archive.RenderLog(); renders != nil {
		s.Playground.WithRenderHook(func(e sandbox.RenderEvent) {
			record := &stores.RenderRecord{
				SessionID:  id,
				Revision:   e.State.Revision,
				Trigger:    e.Trigger,
				Resources:  len(e.State.Resources),
				RenderErr:  e.State.RenderError,
				DurationMS: e.Duration.Milliseconds(),
			}
			if err := renders.SaveRender(record); err != nil {
				s.Logger.WithError(err).Warn("failed to record render")
			}
		})
	}
	return s
}
