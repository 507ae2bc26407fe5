package sandbox

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuntime(t *testing.T) (*Runtime, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewRuntime(nil, logger), hook
}

func TestNewRuntime_ShowsDefaultComponent(t *testing.T) {
	rt, _ := newTestRuntime(t)
	state := rt.Snapshot()

	assert.Equal(t, DefaultSource, state.Source)
	assert.Equal(t, ViewPreview, state.ActiveView)
	assert.Empty(t, state.RenderError)
	assert.Contains(t, state.Markup, "Welcome to the Playground!")
	assert.Equal(t, int64(1), state.Revision)
	assert.Equal(t, []string{}, state.Resources)
}

func TestRuntime_LoadReplacesState(t *testing.T) {
	rt, _ := newTestRuntime(t)

	state := rt.Load(context.Background(), `function App(){return <button>Click</button>;}`, []string{"https://cdn.jsdelivr.net/npm/chart.js"})

	assert.Equal(t, `function App(){return <button>Click</button>;}`, state.Source)
	assert.Equal(t, "<button>Click</button>", state.Markup)
	assert.Equal(t, []string{"https://cdn.jsdelivr.net/npm/chart.js"}, state.Resources)
	assert.Empty(t, state.RenderError)
	assert.Equal(t, int64(2), state.Revision)
	assert.Equal(t, state, rt.Snapshot())
}

func TestRuntime_LoadThrowingSourceSetsRenderError(t *testing.T) {
	rt, _ := newTestRuntime(t)

	state := rt.Load(context.Background(), `function App() { throw new Error('kaboom'); }`, nil)

	assert.Contains(t, state.RenderError, "kaboom")
	assert.Equal(t, `function App() { throw new Error('kaboom'); }`, state.Source)
	assert.Empty(t, state.Markup)

	// The next load clears the error.
	state = rt.Load(context.Background(), `function App() { return <p>fixed</p>; }`, nil)
	assert.Empty(t, state.RenderError)
}

func TestRuntime_LoadDropsUnsafeResources(t *testing.T) {
	rt, hook := newTestRuntime(t)

	state := rt.Load(context.Background(), DefaultSource, []string{
		"javascript:alert(1)",
		"https://unpkg.com/dayjs",
		"file:///etc/passwd",
		"https://unpkg.com/dayjs",
	})

	assert.Equal(t, []string{"https://unpkg.com/dayjs"}, state.Resources)

	warnings := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestRuntime_SetView(t *testing.T) {
	rt, _ := newTestRuntime(t)
	before := rt.Snapshot()

	state, err := rt.SetView("code")
	require.NoError(t, err)
	assert.Equal(t, ViewSource, state.ActiveView)
	assert.Equal(t, before.Markup, state.Markup)
	assert.Equal(t, before.Source, state.Source)

	_, err = rt.SetView("fullscreen")
	assert.Error(t, err)
	assert.Equal(t, ViewSource, rt.Snapshot().ActiveView)
}

func TestRuntime_EditSourceKeepsResourcesAndView(t *testing.T) {
	rt, _ := newTestRuntime(t)
	rt.Load(context.Background(), DefaultSource, []string{"https://unpkg.com/dayjs"})
	_, err := rt.SetView("source")
	require.NoError(t, err)

	state := rt.EditSource(context.Background(), `function App() { throw new Error('missing'); }`)

	assert.Equal(t, []string{"https://unpkg.com/dayjs"}, state.Resources)
	assert.Equal(t, ViewSource, state.ActiveView)
	assert.Contains(t, state.RenderError, "missing")

	// A generation overwrites the manual edit.
	state = rt.Load(context.Background(), `function App() { return <p>new</p>; }`, nil)
	assert.Equal(t, "<p>new</p>", state.Markup)
	assert.Equal(t, []string{}, state.Resources)
}

func TestRuntime_Subscribe(t *testing.T) {
	rt, _ := newTestRuntime(t)

	var seen []int64
	cancel := rt.Subscribe(func(s State) { seen = append(seen, s.Revision) })

	rt.Load(context.Background(), DefaultSource, nil)
	_, _ = rt.SetView("source")
	cancel()
	rt.Load(context.Background(), DefaultSource, nil)

	assert.Equal(t, []int64{2, 3}, seen)
}

func TestRuntime_RenderHook(t *testing.T) {
	rt, _ := newTestRuntime(t)

	var events []RenderEvent
	rt.WithRenderHook(func(e RenderEvent) { events = append(events, e) })

	rt.Load(context.Background(), DefaultSource, nil)
	rt.EditSource(context.Background(), "function App( {")

	require.Len(t, events, 2)
	assert.Equal(t, TriggerGeneration, events[0].Trigger)
	assert.Equal(t, TriggerEdit, events[1].Trigger)
	assert.NotEmpty(t, events[1].State.RenderError)
}

func TestNewRuntime_DefaultComponentFollowsEntryPoint(t *testing.T) {
	rt := NewRuntime(NewRenderer().WithEntryPoint("Widget"), nil)
	state := rt.Snapshot()

	assert.Empty(t, state.RenderError)
	assert.Contains(t, state.Source, "function Widget(")
	assert.NotContains(t, state.Source, "function App(")
	assert.Contains(t, state.Markup, "Welcome to the Playground!")

	doc := Document(state, DocumentOptions{EntryPoint: "Widget"})
	assert.Contains(t, doc, "React.createElement(Widget)")
}

func TestRuntime_MissingGlobalWaitsForResources(t *testing.T) {
	rt, _ := newTestRuntime(t)
	source := `function App() { return <p>{dayjs().year()}</p>; }`

	state := rt.Load(context.Background(), source, []string{"https://unpkg.com/dayjs"})
	assert.True(t, state.AwaitingResources)
	assert.Empty(t, state.RenderError)
	assert.Contains(t, state.Markup, "Loading")
	assert.NotEmpty(t, state.Compiled)

	state = rt.Load(context.Background(), source, nil)
	assert.False(t, state.AwaitingResources)
	assert.Contains(t, state.RenderError, "ReferenceError")
}

func TestFilterResources(t *testing.T) {
	accepted, rejected := FilterResources([]string{" http://a.example/x.js ", "", "data:text/javascript,alert(1)", "//cdn.example/y.js"})

	assert.Equal(t, []string{"http://a.example/x.js"}, accepted)
	assert.Equal(t, []string{"data:text/javascript,alert(1)", "//cdn.example/y.js"}, rejected)
}
