package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
)

const (
	DefaultEntryPoint    = "App"
	DefaultRenderTimeout = 2 * time.Second
	DefaultMaxDepth      = 256
	DefaultMaxCallStack  = 1024
	DefaultMaxNodes      = 100000
)

var (
	ErrMissingEntryPoint = errors.New("entry point is not defined")
	ErrRenderTimeout     = errors.New("render timed out")
	ErrTooManyNodes      = errors.New("render produced too many nodes")
)

// RuntimeError is an exception thrown by component code while it was
// evaluated or rendered.
type RuntimeError struct {
	Message string
	Stack   string
}

func (e *RuntimeError) Error() string {
	return e.Message
}

// Result is the outcome of one render. Err is nil on success; Compiled is
// set whenever the transform step succeeded, even if evaluation failed.
type Result struct {
	Markup   string
	Compiled string
	Console  []string
	Duration time.Duration
	Err      error
}

// Renderer evaluates component source in an isolated JavaScript VM and
// produces its static markup. A fresh VM is created for every render, so a
// Renderer holds no state between calls and may be shared.
type Renderer struct {
	EntryPoint   string
	Timeout      time.Duration
	MaxDepth     int
	MaxCallStack int
	MaxNodes     int
}

// NewRenderer returns a renderer with default limits.
func NewRenderer() *Renderer {
	return &Renderer{
		EntryPoint:   DefaultEntryPoint,
		Timeout:      DefaultRenderTimeout,
		MaxDepth:     DefaultMaxDepth,
		MaxCallStack: DefaultMaxCallStack,
		MaxNodes:     DefaultMaxNodes,
	}
}

// WithEntryPoint sets the name of the component to render.
func (r *Renderer) WithEntryPoint(name string) *Renderer {
	r.EntryPoint = name
	return r
}

// WithTimeout sets how long evaluation may run before it is interrupted.
func (r *Renderer) WithTimeout(d time.Duration) *Renderer {
	r.Timeout = d
	return r
}

// Render compiles and evaluates source. Every failure, including a panic in
// the evaluator, is reported through Result.Err.
func (r *Renderer) Render(ctx context.Context, source string) (res Result) {
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
	}()

	compiled, err := Compile(source)
	if err != nil {
		res.Err = err
		return res
	}
	res.Compiled = compiled

	res.Markup, res.Console, res.Err = r.evaluate(ctx, compiled)
	return res
}

func (r *Renderer) evaluate(ctx context.Context, compiled string) (markup string, console []string, err error) {
	entry := r.EntryPoint
	if entry == "" {
		entry = DefaultEntryPoint
	}
	if !isIdentifier(entry) {
		return "", nil, fmt.Errorf("invalid entry point name %q", entry)
	}

	maxDepth := r.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	maxNodes := r.MaxNodes
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}

	vm := goja.New()
	if r.MaxCallStack > 0 {
		vm.SetMaxCallStackSize(r.MaxCallStack)
	}

	st := newRenderState(ctx, vm, maxDepth, maxNodes, time.Now().Add(timeout))
	defer func() {
		console = st.console
		if rec := recover(); rec != nil {
			markup = ""
			err = fmt.Errorf("render panicked: %v", rec)
		}
	}()

	if err := st.install(); err != nil {
		return "", nil, err
	}

	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt(ErrRenderTimeout)
	})
	defer timer.Stop()

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	if _, err := vm.RunScript("component.js", compiled); err != nil {
		return "", nil, st.failure(err)
	}

	fn, err := vm.RunString(fmt.Sprintf("typeof %[1]s === 'function' ? %[1]s : undefined", entry))
	if err != nil {
		return "", nil, st.failure(err)
	}
	if isNullish(fn) {
		return "", nil, fmt.Errorf("%w: %s must be a function", ErrMissingEntryPoint, entry)
	}

	root := st.newElement(fn, goja.Null(), nil)

	var b strings.Builder
	if err := st.renderElement(&b, root, 0); err != nil {
		return "", nil, st.failure(err)
	}
	if st.abort != nil {
		// Component code caught the limit error and carried on.
		return "", nil, st.abort
	}
	return b.String(), nil, nil
}

// failure prefers a limit the Go side hit over the exception it surfaced as.
func (st *renderState) failure(err error) error {
	if st.abort != nil {
		return st.abort
	}
	return jsError(err)
}

// jsError unwraps goja's error types into the sandbox's own.
func jsError(err error) error {
	if strings.Contains(err.Error(), "Maximum call stack size exceeded") {
		return fmt.Errorf("%w: %s", ErrMaxDepth, "Maximum call stack size exceeded")
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return fmt.Errorf("render interrupted: %w", cause)
		}
		return fmt.Errorf("render interrupted: %v", interrupted.Value())
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		rerr := &RuntimeError{Message: exception.Error(), Stack: exception.String()}
		if v := exception.Value(); v != nil {
			rerr.Message = v.String()
		}
		return rerr
	}

	return err
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
