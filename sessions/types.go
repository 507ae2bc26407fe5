package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/Desarso/playground/models"
	"github.com/Desarso/playground/sandbox"
	"github.com/sirupsen/logrus"
)

// ApologyMessage is recorded as the assistant turn when generation fails.
const ApologyMessage = "I'm sorry, but I encountered an error. Please try again."

// ErrBusy is returned when a turn is submitted while another is in flight.
var ErrBusy = errors.New("a generation is already in progress for this session")

// TurnError represents errors that can occur while running a turn
type TurnError struct {
	Message string
	Fatal   bool
	Err     error
}

func (e *TurnError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

// Generator produces a parsed reply for one turn.
type Generator interface {
	Generate(ctx context.Context, history []models.Turn, latest string) (models.ParsedResult, error)
}

// TurnResult is what a completed turn hands back to its caller.
type TurnResult struct {
	Reply      string              `json:"response"`
	Parsed     models.ParsedResult `json:"-"`
	Playground sandbox.State       `json:"playground"`
}

// LiveMessageType defines live channel message types.
type LiveMessageType string

const (
	// Server → Client message types.
	LiveMsgPlayground LiveMessageType = "playground" // Playground state after any change
	LiveMsgTurn       LiveMessageType = "turn"       // Transcript turn appended
	LiveMsgError      LiveMessageType = "error"      // Error notification
	LiveMsgPong       LiveMessageType = "pong"       // Keepalive response

	// Client → Server message types.
	LiveMsgEditSource LiveMessageType = "edit_source" // Manual source override
	LiveMsgSetView    LiveMessageType = "set_view"    // Preview/source toggle
	LiveMsgChat       LiveMessageType = "chat"        // User utterance
	LiveMsgPing       LiveMessageType = "ping"        // Keepalive request
)

// LiveMessage is the live channel message envelope.
type LiveMessage struct {
	Type    LiveMessageType `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// LiveTurnPayload is the payload for LiveMsgTurn messages.
type LiveTurnPayload struct {
	Sequence int         `json:"sequence"`
	Role     models.Role `json:"role"`
	Content  string      `json:"content"`
}

// LiveErrorPayload is the payload for LiveMsgError messages.
type LiveErrorPayload struct {
	Message string `json:"message"`
}

// LiveSourcePayload is the payload for LiveMsgEditSource messages.
type LiveSourcePayload struct {
	Source string `json:"source"`
}

// LiveViewPayload is the payload for LiveMsgSetView messages.
type LiveViewPayload struct {
	View string `json:"view"`
}

// LiveChatPayload is the payload for LiveMsgChat messages.
type LiveChatPayload struct {
	Text string `json:"text"`
}

// JSONConn is the part of a websocket connection the live channel uses.
type JSONConn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
}

// LiveWriter serialises all writes to one live connection
type LiveWriter struct {
	Conn   JSONConn
	Logger logrus.FieldLogger
	mu     sync.Mutex
}

// WriteMessage sends one typed message.
func (w *LiveWriter) WriteMessage(msgType LiveMessageType, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Conn.WriteJSON(LiveMessage{Type: msgType, Payload: data})
}

// WriteError sends an error message.
func (w *LiveWriter) WriteError(message string) error {
	return w.WriteMessage(LiveMsgError, LiveErrorPayload{Message: message})
}
