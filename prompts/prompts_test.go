package prompts

import (
	"strings"
	"testing"

	"github.com/Desarso/playground/models"
	"github.com/Desarso/playground/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemInstruction_BindingRules(t *testing.T) {
	instruction := NewAssembler().SystemInstruction()

	for _, want := range []string{
		"Do not include import or export statements",
		"named 'App'",
		"nothing may be declared outside it",
		"<cdnLinks>",
		"loading libraries",
		"only React components are supported",
		"<error>",
		"never use markdown code fences",
		"React.useState",
		"<chat_response>",
		"<playground_data>",
	} {
		assert.Contains(t, instruction, want)
	}
}

func TestSystemInstruction_ExamplesParse(t *testing.T) {
	for _, ex := range DefaultExamples() {
		parsed := protocol.Parse(ex.Reply)
		assert.NotEmpty(t, parsed.ChatMessage, ex.Title)
		assert.Contains(t, parsed.ComponentSource, "function App()", ex.Title)
	}

	chart := protocol.Parse(DefaultExamples()[1].Reply)
	assert.Equal(t, []string{"https://cdn.jsdelivr.net/npm/chart.js"}, chart.ExternalResources)
	assert.Contains(t, chart.ComponentSource, "loading libraries")
}

func TestSystemInstruction_CustomEntryPoint(t *testing.T) {
	instruction := NewAssembler().WithEntryPoint("Widget").SystemInstruction()

	assert.Contains(t, instruction, "named 'Widget'")
	assert.Contains(t, instruction, "function Widget()")
	assert.NotContains(t, instruction, "function App()")
}

func TestSystemInstruction_Deterministic(t *testing.T) {
	a := NewAssembler()
	b := NewAssembler()
	assert.Equal(t, a.SystemInstruction(), b.SystemInstruction())
	assert.True(t, strings.HasPrefix(a.SystemInstruction(), "You are an assistant"))
}

func TestBuild_ForwardsHistoryInOrder(t *testing.T) {
	history := []models.Turn{
		models.UserTurn("make a button"),
		models.AssistantTurn("Here's a button."),
	}

	req := NewAssembler().Build(history, "make it red")

	require.Len(t, req.History, 2)
	assert.Equal(t, history, req.History)
	assert.Equal(t, "make it red", req.LatestUserContent)
	assert.NotEmpty(t, req.SystemInstruction)

	turns := req.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, models.UserTurn("make it red"), turns[2])
}

func TestBuild_CopiesHistory(t *testing.T) {
	history := []models.Turn{models.UserTurn("one")}
	req := NewAssembler().Build(history, "two")

	history[0].Content = "changed"
	assert.Equal(t, "one", req.History[0].Content)
}

func TestBuild_EmptyHistory(t *testing.T) {
	req := NewAssembler().Build(nil, "hello")
	assert.Empty(t, req.History)
	assert.Equal(t, []models.Turn{models.UserTurn("hello")}, req.Turns())
}
