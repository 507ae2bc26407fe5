// Package sandbox renders generated component source in isolation and holds
// the live playground state a session displays.
//
// Source is transformed from JSX with esbuild and evaluated in a fresh goja VM
// per render. The VM sees only the ECMAScript built-ins and a small injected
// React primitive, so component code cannot reach the host process.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// View is the playground tab being displayed.
type View string

const (
	ViewPreview View = "preview"
	ViewSource  View = "source"
)

// Render triggers recorded on RenderEvent.
const (
	TriggerInitial    = "initial"
	TriggerGeneration = "generation"
	TriggerEdit       = "edit"
)

// ParseView accepts "preview" and "source" ("code" is an alias of source).
func ParseView(s string) (View, error) {
	switch s {
	case string(ViewPreview):
		return ViewPreview, nil
	case string(ViewSource), "code":
		return ViewSource, nil
	default:
		return "", fmt.Errorf("unknown view %q", s)
	}
}

// State is a snapshot of the playground.
type State struct {
	Source      string   `json:"source"`
	ActiveView  View     `json:"activeView"`
	RenderError string   `json:"renderError,omitempty"`
	Resources   []string `json:"resources"`
	Markup      string   `json:"markup"`
	Console     []string `json:"console,omitempty"`
	Revision    int64    `json:"revision"`

	// AwaitingResources is set when the component referenced a global that
	// only an external resource defines. Markup then holds a loading
	// placeholder and the browser mounts the component after the resources load.
	AwaitingResources bool `json:"awaitingResources,omitempty"`

	Compiled string `json:"-"`
}

func (s State) clone() State {
	out := s
	out.Resources = append([]string{}, s.Resources...)
	if s.Console != nil {
		out.Console = append([]string{}, s.Console...)
	}
	return out
}

// RenderEvent describes one completed render.
type RenderEvent struct {
	Trigger  string
	State    State
	Duration time.Duration
}

// Runtime owns a session's playground state. Loads and edits are serialised;
// subscribers are called outside the state lock, in subscription order.
type Runtime struct {
	renderer *Renderer
	logger   logrus.FieldLogger
	onRender func(RenderEvent)

	renderMu sync.Mutex

	mu      sync.RWMutex
	state   State
	subs    map[int]func(State)
	order   []int
	nextSub int
}

// NewRuntime creates a runtime showing DefaultSource, renamed to the
// renderer's entry point, in the preview tab.
func NewRuntime(renderer *Renderer, logger logrus.FieldLogger) *Runtime {
	if renderer == nil {
		renderer = NewRenderer()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	rt := &Runtime{
		renderer: renderer,
		logger:   logger,
		state:    State{ActiveView: ViewPreview, Resources: []string{}},
		subs:     make(map[int]func(State)),
	}
	rt.apply(context.Background(), TriggerInitial, DefaultSourceFor(renderer.EntryPoint), []string{})
	return rt
}

// WithRenderHook registers fn to be called after every render.
func (rt *Runtime) WithRenderHook(fn func(RenderEvent)) *Runtime {
	rt.onRender = fn
	return rt
}

// Load replaces the source and resources with a generation's output and
// re-renders. The active view is kept. Render failures are reported in
// State.RenderError; Load itself never fails.
func (rt *Runtime) Load(ctx context.Context, source string, resources []string) State {
	accepted, rejected := FilterResources(resources)
	for _, link := range rejected {
		rt.logger.WithField("resource", link).Warn("dropping external resource: only http and https URLs are allowed")
	}
	return rt.apply(ctx, TriggerGeneration, source, accepted)
}

// EditSource replaces only the source, keeping resources and view, and
// re-renders so the error reflects the edit.
func (rt *Runtime) EditSource(ctx context.Context, source string) State {
	return rt.apply(ctx, TriggerEdit, source, nil)
}

// SetView switches the active tab. It never re-renders.
func (rt *Runtime) SetView(view string) (State, error) {
	v, err := ParseView(view)
	if err != nil {
		return State{}, err
	}

	rt.mu.Lock()
	if rt.state.ActiveView == v {
		snapshot := rt.state.clone()
		rt.mu.Unlock()
		return snapshot, nil
	}
	rt.state.ActiveView = v
	rt.state.Revision++
	snapshot := rt.state.clone()
	rt.mu.Unlock()

	rt.notify(snapshot)
	return snapshot, nil
}

// Snapshot returns a copy of the current state.
func (rt *Runtime) Snapshot() State {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.state.clone()
}

// Subscribe registers fn to receive every new state. The returned function
// cancels the subscription.
func (rt *Runtime) Subscribe(fn func(State)) (cancel func()) {
	rt.mu.Lock()
	id := rt.nextSub
	rt.nextSub++
	rt.subs[id] = fn
	rt.order = append(rt.order, id)
	rt.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			rt.mu.Lock()
			delete(rt.subs, id)
			for i, sid := range rt.order {
				if sid == id {
					rt.order = append(rt.order[:i], rt.order[i+1:]...)
					break
				}
			}
			rt.mu.Unlock()
		})
	}
}

// apply renders source and commits the result. resources == nil keeps the
// current resources.
func (rt *Runtime) apply(ctx context.Context, trigger, source string, resources []string) State {
	rt.renderMu.Lock()
	defer rt.renderMu.Unlock()

	result := rt.renderer.Render(ctx, source)

	rt.mu.Lock()
	next := State{
		Source:     source,
		ActiveView: rt.state.ActiveView,
		Resources:  rt.state.Resources,
		Markup:     result.Markup,
		Compiled:   result.Compiled,
		Console:    result.Console,
		Revision:   rt.state.Revision + 1,
	}
	if resources != nil {
		next.Resources = resources
	}
	switch {
	case result.Err == nil:
	case len(next.Resources) > 0 && isMissingGlobal(result.Err):
		next.AwaitingResources = true
		next.Markup = loadingMarkup
	default:
		next.RenderError = result.Err.Error()
	}
	rt.state = next
	snapshot := rt.state.clone()
	rt.mu.Unlock()

	entry := rt.logger.WithFields(logrus.Fields{
		"trigger":  trigger,
		"revision": snapshot.Revision,
		"duration": result.Duration,
	})
	switch {
	case snapshot.AwaitingResources:
		entry.WithError(result.Err).Debug("component waits for external resources")
	case result.Err != nil:
		entry.WithError(result.Err).Info("component render failed")
	default:
		entry.Debug("component rendered")
	}

	if rt.onRender != nil {
		rt.onRender(RenderEvent{Trigger: trigger, State: snapshot, Duration: result.Duration})
	}
	rt.notify(snapshot)
	return snapshot
}

func (rt *Runtime) notify(state State) {
	rt.mu.RLock()
	fns := make([]func(State), 0, len(rt.order))
	for _, id := range rt.order {
		fns = append(fns, rt.subs[id])
	}
	rt.mu.RUnlock()

	for _, fn := range fns {
		fn(state.clone())
	}
}

const loadingMarkup = `<div class="playground-loading">Loading...</div>`

// isMissingGlobal reports whether err is a ReferenceError thrown by component
// code, the symptom of a global that an external resource has not defined yet.
func isMissingGlobal(err error) bool {
	var rerr *RuntimeError
	return errors.As(err, &rerr) && strings.HasPrefix(rerr.Message, "ReferenceError")
}
