package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Desarso/playground/sandbox"
	"github.com/gorilla/websocket"
)

// ServeLive drives a live channel for the session until the connection is
// closed or ctx ends. The client first receives the current playground state,
// then every state change and appended turn. Incoming chat messages start a
// turn in the background so pings and edits keep flowing while it runs.
func (s *PlaygroundSession) ServeLive(ctx context.Context, conn JSONConn) error {
	// Turns still running when the connection drops are cancelled, then
	// waited for.
	var turns sync.WaitGroup
	defer turns.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer := &LiveWriter{Conn: conn, Logger: s.Logger}
	logger := s.Logger.WithField("channel", "live")

	stopPlayground := s.Playground.Subscribe(func(state sandbox.State) {
		if err := writer.WriteMessage(LiveMsgPlayground, state); err != nil {
			logger.WithError(err).Debug("failed to push playground state")
		}
	})
	defer stopPlayground()

	stopTurns := s.SubscribeTurns(func(turn LiveTurnPayload) {
		if err := writer.WriteMessage(LiveMsgTurn, turn); err != nil {
			logger.WithError(err).Debug("failed to push turn")
		}
	})
	defer stopTurns()

	if err := writer.WriteMessage(LiveMsgPlayground, s.Playground.Snapshot()); err != nil {
		return fmt.Errorf("failed to send initial state: %w", err)
	}

	for {
		var msg LiveMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		s.Touch()

		if err := s.handleLive(ctx, writer, &turns, msg); err != nil {
			logger.WithError(err).WithField("type", msg.Type).Warn("live message rejected")
			if werr := writer.WriteError(err.Error()); werr != nil {
				return werr
			}
		}
	}
}

func (s *PlaygroundSession) handleLive(ctx context.Context, writer *LiveWriter, turns *sync.WaitGroup, msg LiveMessage) error {
	switch msg.Type {
	case LiveMsgPing:
		return writer.WriteMessage(LiveMsgPong, struct{}{})

	case LiveMsgEditSource:
		var payload LiveSourcePayload
		if err := decodePayload(msg, &payload); err != nil {
			return err
		}
		s.Playground.EditSource(ctx, payload.Source)
		return nil

	case LiveMsgSetView:
		var payload LiveViewPayload
		if err := decodePayload(msg, &payload); err != nil {
			return err
		}
		_, err := s.Playground.SetView(payload.View)
		return err

	case LiveMsgChat:
		var payload LiveChatPayload
		if err := decodePayload(msg, &payload); err != nil {
			return err
		}
		if payload.Text == "" {
			return errors.New("chat message is empty")
		}
		if s.Busy() {
			return ErrBusy
		}
		turns.Add(1)
		go func() {
			defer turns.Done()
			if _, err := s.RunTurn(ctx, payload.Text); err != nil {
				// The apology turn has already been pushed to subscribers.
				if errors.Is(err, ErrBusy) {
					_ = writer.WriteError(err.Error())
				}
			}
		}()
		return nil

	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

func decodePayload(msg LiveMessage, dst interface{}) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		return fmt.Errorf("invalid %s payload: %w", msg.Type, err)
	}
	return nil
}
