package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Desarso/playground/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete_SendsSystemAndHistory(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "sk-test")

	var got AnthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sk-test", r.Header.Get("X-API-Key"))
		assert.Equal(t, DefaultAPIVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(AnthropicResponse{
			Content: []ContentBlock{
				{Type: "text", Text: "<response><chat_response>ok</chat_response>"},
				{Type: "text", Text: "</response>"},
			},
		})
	}))
	defer srv.Close()

	model := &Anthropic_Model{BaseURL: srv.URL, APIKeyEnv: "TEST_ANTHROPIC_KEY"}
	reply, err := model.Complete(context.Background(), models.GenerationRequest{
		SystemInstruction: "rules",
		History:           []models.Turn{models.UserTurn("first"), models.AssistantTurn("answer")},
		LatestUserContent: "second",
	})
	require.NoError(t, err)

	assert.Equal(t, "<response><chat_response>ok</chat_response></response>", reply)
	assert.Equal(t, "rules", got.System)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Equal(t, "second", got.Messages[2].Content)
}

func TestComplete_MissingKeyFailsAtCallTime(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "")
	model := &Anthropic_Model{APIKeyEnv: "TEST_ANTHROPIC_KEY", BaseURL: "http://127.0.0.1:0"}

	_, err := model.Complete(context.Background(), models.GenerationRequest{LatestUserContent: "hi"})
	assert.ErrorIs(t, err, models.ErrMissingAPIKey)
}

func TestComplete_NonSuccessStatus(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "sk-test")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"type":"error"}`))
	}))
	defer srv.Close()

	model := &Anthropic_Model{BaseURL: srv.URL, APIKeyEnv: "TEST_ANTHROPIC_KEY"}
	_, err := model.Complete(context.Background(), models.GenerationRequest{LatestUserContent: "hi"})

	var gwErr *models.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusTooManyRequests, gwErr.Status)
}

func TestBuildRequest_EmptyLatestRejected(t *testing.T) {
	model := &Anthropic_Model{}
	_, err := model.buildRequest(models.GenerationRequest{LatestUserContent: "  "})
	assert.Error(t, err)
}
