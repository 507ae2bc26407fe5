package sessions

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Desarso/playground/models"
	"github.com/Desarso/playground/sandbox"
	"github.com/Desarso/playground/stores"
	"github.com/sirupsen/logrus"
)

// PlaygroundSession is one page lifetime: a transcript, a playground and the
// generator that links them. At most one turn runs at a time.
type PlaygroundSession struct {
	ID         string
	Generator  Generator
	Store      stores.ConversationStore
	Playground *sandbox.Runtime
	Logger     logrus.FieldLogger

	busy       atomic.Bool
	lastActive atomic.Int64

	turnMu   sync.Mutex
	turnSubs map[int]func(LiveTurnPayload)
	nextSub  int
}

// Busy reports whether a turn is in flight.
func (s *PlaygroundSession) Busy() bool {
	return s.busy.Load()
}

// LastActive returns when the session was last used.
func (s *PlaygroundSession) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Touch marks the session as used now.
func (s *PlaygroundSession) Touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// RunTurn records the utterance, asks the generator for a reply, records the
// reply and loads any component it carries into the playground.
//
// The user turn is appended before the backend is called and the assistant
// turn after the reply is parsed. When generation fails the apology is
// recorded as the assistant turn, the playground is left untouched, and the
// error is returned alongside a result describing the apology.
func (s *PlaygroundSession) RunTurn(ctx context.Context, utterance string) (TurnResult, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return TurnResult{}, ErrBusy
	}
	defer s.busy.Store(false)
	s.Touch()
	defer s.Touch()

	history := s.Store.Tail()
	if err := s.appendTurn(models.UserTurn(utterance)); err != nil {
		return TurnResult{}, &TurnError{Message: "failed to record user turn", Fatal: false, Err: err}
	}

	started := time.Now()
	result, err := s.Generator.Generate(ctx, history, utterance)
	if err != nil {
		s.Logger.WithError(err).WithField("elapsed", time.Since(started)).Error("generation failed")
		if appendErr := s.appendTurn(models.AssistantTurn(ApologyMessage)); appendErr != nil {
			s.Logger.WithError(appendErr).Error("failed to record apology turn")
		}
		return TurnResult{Reply: ApologyMessage, Playground: s.Playground.Snapshot()},
			&TurnError{Message: "failed to generate reply", Fatal: false, Err: err}
	}

	reply := result.TranscriptMessage()
	if err := s.appendTurn(models.AssistantTurn(reply)); err != nil {
		return TurnResult{}, &TurnError{Message: "failed to record assistant turn", Fatal: false, Err: err}
	}

	var state sandbox.State
	if result.HasComponent() {
		// The reply is already recorded; a client going away must not
		// cancel the render that follows it.
		state = s.Playground.Load(context.WithoutCancel(ctx), result.ComponentSource, result.ExternalResources)
	} else {
		state = s.Playground.Snapshot()
	}

	s.Logger.WithFields(logrus.Fields{
		"elapsed":       time.Since(started),
		"has_component": result.HasComponent(),
		"refused":       result.Error != "",
		"render_error":  state.RenderError != "",
	}).Info("turn completed")

	return TurnResult{Reply: reply, Parsed: result, Playground: state}, nil
}

// Transcript returns the session's turns in order.
func (s *PlaygroundSession) Transcript() []models.TranscriptEntry {
	return models.NewTranscript(s.Store.Tail())
}

// SubscribeTurns registers fn to receive every appended turn.
func (s *PlaygroundSession) SubscribeTurns(fn func(LiveTurnPayload)) (cancel func()) {
	s.turnMu.Lock()
	if s.turnSubs == nil {
		s.turnSubs = make(map[int]func(LiveTurnPayload))
	}
	id := s.nextSub
	s.nextSub++
	s.turnSubs[id] = fn
	s.turnMu.Unlock()

	return func() {
		s.turnMu.Lock()
		delete(s.turnSubs, id)
		s.turnMu.Unlock()
	}
}

func (s *PlaygroundSession) appendTurn(turn models.Turn) error {
	if err := s.Store.Append(turn); err != nil {
		return fmt.Errorf("failed to append %s turn: %w", turn.Role, err)
	}
	payload := LiveTurnPayload{Sequence: s.Store.Len(), Role: turn.Role, Content: turn.Content}

	s.turnMu.Lock()
	fns := make([]func(LiveTurnPayload), 0, len(s.turnSubs))
	for _, fn := range s.turnSubs {
		fns = append(fns, fn)
	}
	s.turnMu.Unlock()

	for _, fn := range fns {
		fn(payload)
	}
	return nil
}
