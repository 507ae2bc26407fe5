package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeHistory_EmptyHistory(t *testing.T) {
	result := SanitizeHistory([]Turn{})
	assert.Empty(t, result)
}

func TestSanitizeHistory_ValidHistory(t *testing.T) {
	turns := []Turn{
		UserTurn("make a button"),
		AssistantTurn("Here's a button."),
		UserTurn("make it red"),
		AssistantTurn("Done."),
	}
	assert.Equal(t, turns, SanitizeHistory(turns))
}

func TestSanitizeHistory_LeadingAssistantSkipped(t *testing.T) {
	turns := []Turn{
		AssistantTurn("hello"),
		UserTurn("make a card"),
	}
	result := SanitizeHistory(turns)
	assert.Equal(t, []Turn{UserTurn("make a card")}, result)
}

func TestSanitizeHistory_EmptyAssistantMerged(t *testing.T) {
	// A component-only reply leaves an empty assistant turn behind.
	turns := []Turn{
		UserTurn("a clock"),
		AssistantTurn(""),
		UserTurn("bigger digits"),
	}
	result := SanitizeHistory(turns)
	assert.Len(t, result, 1)
	assert.Equal(t, "a clock\n\nbigger digits", result[0].Content)
}

func TestSanitizeHistory_DoesNotMutateInput(t *testing.T) {
	turns := []Turn{UserTurn("a"), UserTurn("b")}
	SanitizeHistory(turns)
	assert.Equal(t, "a", turns[0].Content)
}

func TestDetectHistoryIssues(t *testing.T) {
	assert.Empty(t, DetectHistoryIssues([]Turn{UserTurn("a"), AssistantTurn("b")}))

	issues := DetectHistoryIssues([]Turn{AssistantTurn("a"), AssistantTurn(""), {Role: "system", Content: "x"}})
	assert.Contains(t, issues, "history starts with an assistant turn")
	assert.Contains(t, issues, "turn with empty content")
	assert.Contains(t, issues, "two consecutive assistant turns")
	assert.Contains(t, issues, "turn with unknown role system")
}

func TestGenerationRequestTurns(t *testing.T) {
	req := GenerationRequest{
		History:           []Turn{UserTurn("one"), AssistantTurn("two")},
		LatestUserContent: "three",
	}
	turns := req.Turns()
	assert.Equal(t, []Turn{UserTurn("one"), AssistantTurn("two"), UserTurn("three")}, turns)
	assert.Len(t, req.History, 2)
}

func TestParsedResultTranscriptMessage(t *testing.T) {
	assert.Equal(t, "hi", ParsedResult{ChatMessage: "hi", Error: "x"}.TranscriptMessage())
	assert.Equal(t, "only React is supported", ParsedResult{Error: "only React is supported"}.TranscriptMessage())
	assert.False(t, ParsedResult{}.HasComponent())
}
