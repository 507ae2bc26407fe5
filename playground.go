// Package playground wires the component playground together: configuration,
// the generation backend, the sandbox renderer and the session registry.
package playground

import (
	"fmt"

	"github.com/Desarso/playground/models"
	"github.com/Desarso/playground/prompts"
	"github.com/Desarso/playground/sandbox"
	"github.com/Desarso/playground/sessions"
	"github.com/Desarso/playground/stores"
	"github.com/sirupsen/logrus"
)

// Re-export session types so callers need only this package
type PlaygroundSession = sessions.PlaygroundSession
type TurnResult = sessions.TurnResult
type TurnError = sessions.TurnError

var ErrBusy = sessions.ErrBusy

// Playground is a configured instance of the system.
type Playground struct {
	Config    *Config
	Logger    *logrus.Logger
	Generator *Generator
	Renderer  *sandbox.Renderer
	Archive   stores.Archive
	Sessions  *sessions.Registry
}

// New builds a playground from cfg. The archive is opened when configured;
// call Close to release it.
func New(cfg *Config, logger *logrus.Logger) (*Playground, error) {
	if logger == nil {
		logger = NewLogger(cfg)
	}

	gateway, err := NewGateway(cfg, logger.WithField("provider", cfg.Provider))
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	return NewWithGateway(cfg, gateway, logger)
}

// NewWithGateway builds a playground around an existing gateway.
func NewWithGateway(cfg *Config, gateway models.Gateway, logger *logrus.Logger) (*Playground, error) {
	if logger == nil {
		logger = NewLogger(cfg)
	}

	archive, err := stores.NewArchive(cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	generator := NewGenerator(gateway, logger).
		WithAssembler(prompts.NewAssembler().WithEntryPoint(cfg.EntryPoint))
	renderer := sandbox.NewRenderer().
		WithEntryPoint(cfg.EntryPoint).
		WithTimeout(cfg.RenderTimeout)

	factory := &sessions.Factory{
		Generator: generator,
		Renderer:  renderer,
		Archive:   archive,
		Logger:    logger,
	}

	return &Playground{
		Config:    cfg,
		Logger:    logger,
		Generator: generator,
		Renderer:  renderer,
		Archive:   archive,
		Sessions:  sessions.NewRegistry(factory, cfg.SessionIdleTimeout, logger),
	}, nil
}

// Start launches background work: the idle session reaper.
func (p *Playground) Start() error {
	return p.Sessions.StartReaper(p.Config.ReapSchedule)
}

// Close stops background work and closes the archive.
func (p *Playground) Close() error {
	p.Sessions.Stop()
	if p.Archive != nil {
		return p.Archive.Close()
	}
	return nil
}
