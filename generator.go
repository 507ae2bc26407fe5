package playground

import (
	"context"
	"fmt"

	"github.com/Desarso/playground/models"
	"github.com/Desarso/playground/prompts"
	"github.com/Desarso/playground/protocol"
	"github.com/sirupsen/logrus"
)

// Generator runs one generation round trip: assemble the request, call the
// backend, parse the reply.
type Generator struct {
	Gateway   models.Gateway
	Assembler *prompts.Assembler
	Logger    logrus.FieldLogger
}

// NewGenerator creates a generator with the default prompt assembler.
func NewGenerator(gateway models.Gateway, logger logrus.FieldLogger) *Generator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Generator{
		Gateway:   gateway,
		Assembler: prompts.NewAssembler(),
		Logger:    logger,
	}
}

// WithAssembler replaces the prompt assembler.
func (g *Generator) WithAssembler(a *prompts.Assembler) *Generator {
	g.Assembler = a
	return g
}

// Generate sends history plus latest to the backend and parses the reply.
// It returns an error only when the backend call fails; a reply that matches
// no envelope is a successful, empty ParsedResult.
func (g *Generator) Generate(ctx context.Context, history []models.Turn, latest string) (models.ParsedResult, error) {
	if g.Gateway == nil {
		return models.ParsedResult{}, fmt.Errorf("no generation gateway configured")
	}

	assembler := g.Assembler
	if assembler == nil {
		assembler = prompts.NewAssembler()
	}
	request := assembler.Build(history, latest)

	logger := g.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	raw, err := g.Gateway.Complete(ctx, request)
	if err != nil {
		return models.ParsedResult{}, fmt.Errorf("failed to generate component: %w", err)
	}

	result := protocol.Parse(raw)
	entry := logger.WithFields(logrus.Fields{
		"history_turns": len(request.History),
		"envelope":      result.Envelope,
		"has_component": result.HasComponent(),
		"resources":     len(result.ExternalResources),
	})
	if result.Envelope == models.EnvelopeNone {
		entry.WithField("reply_bytes", len(raw)).Warn("backend reply matched no known envelope")
	} else {
		entry.Debug("parsed backend reply")
	}
	return result, nil
}
