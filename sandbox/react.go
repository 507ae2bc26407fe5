package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// Markers stored in the $$typeof slot of objects created by the injected
// React primitive. Anything else reaching the serializer is not an element.
const (
	markerElement    = "playground.element"
	markerFragment   = "playground.fragment"
	markerContext    = "playground.context"
	markerProvider   = "playground.provider"
	markerConsumer   = "playground.consumer"
	markerMemo       = "playground.memo"
	markerForwardRef = "playground.forward_ref"
)

const maxConsoleEntries = 200

type contextFrame struct {
	ctx   *goja.Object
	value goja.Value
}

// renderState is the per-render environment behind the injected React
// object. It is created for one VM and discarded with it.
type renderState struct {
	vm       *goja.Runtime
	ctx      context.Context
	maxDepth int
	deadline time.Time

	// nodes is what is left of the per-render node budget.
	nodes int
	// abort holds the limit error that stopped the render from Go code.
	abort error

	fragment *goja.Object
	contexts []contextFrame
	console  []string
	timerID  int64
	idSeq    int
}

func newRenderState(ctx context.Context, vm *goja.Runtime, maxDepth, maxNodes int, deadline time.Time) *renderState {
	return &renderState{vm: vm, ctx: ctx, maxDepth: maxDepth, nodes: maxNodes, deadline: deadline}
}

// step charges one node against the budget. The VM interrupt only fires while
// JavaScript runs, so Go-side walks check the deadline and ctx here.
func (st *renderState) step() error {
	if st.abort != nil {
		return st.abort
	}
	st.nodes--
	switch {
	case st.nodes < 0:
		st.abort = ErrTooManyNodes
	case st.nodes%256 == 0 && time.Now().After(st.deadline):
		st.abort = fmt.Errorf("render interrupted: %w", ErrRenderTimeout)
	case st.nodes%256 == 0 && st.ctx.Err() != nil:
		st.abort = fmt.Errorf("render interrupted: %w", st.ctx.Err())
	}
	return st.abort
}

// throw raises err inside the VM from a native function; evaluate reports the
// recorded abort instead of the JavaScript exception.
func (st *renderState) throw(err error) {
	panic(st.vm.NewGoError(err))
}

// install defines the only globals a component can reach besides the
// ECMAScript built-ins: React, console, inert timers and a window alias.
func (st *renderState) install() error {
	vm := st.vm
	global := vm.GlobalObject()

	st.fragment = st.marked(markerFragment)

	react := vm.NewObject()
	set := func(name string, fn func(goja.FunctionCall) goja.Value) {
		_ = react.Set(name, fn)
	}

	_ = react.Set("version", "18.2.0")
	_ = react.Set("Fragment", st.fragment)
	set("createElement", st.createElement)
	set("cloneElement", st.cloneElement)
	set("isValidElement", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(st.isElement(call.Argument(0)))
	})
	set("createContext", st.createContext)
	set("memo", func(call goja.FunctionCall) goja.Value {
		wrapper := st.marked(markerMemo)
		_ = wrapper.Set("type", call.Argument(0))
		return wrapper
	})
	set("forwardRef", func(call goja.FunctionCall) goja.Value {
		wrapper := st.marked(markerForwardRef)
		_ = wrapper.Set("render", call.Argument(0))
		return wrapper
	})

	// Hooks run as in a server render: initialisers run, updates and
	// effects never do.
	set("useState", func(call goja.FunctionCall) goja.Value {
		return vm.NewArray(st.initial(call.Argument(0)), st.noop())
	})
	set("useReducer", func(call goja.FunctionCall) goja.Value {
		state := call.Argument(1)
		if init, ok := goja.AssertFunction(call.Argument(2)); ok {
			v, err := init(goja.Undefined(), state)
			if err != nil {
				panic(err)
			}
			state = v
		}
		return vm.NewArray(state, st.noop())
	})
	set("useRef", func(call goja.FunctionCall) goja.Value {
		ref := vm.NewObject()
		_ = ref.Set("current", call.Argument(0))
		return ref
	})
	set("useMemo", func(call goja.FunctionCall) goja.Value {
		return st.initial(call.Argument(0))
	})
	set("useCallback", func(call goja.FunctionCall) goja.Value {
		return call.Argument(0)
	})
	set("useContext", func(call goja.FunctionCall) goja.Value {
		ctx, ok := call.Argument(0).(*goja.Object)
		if !ok || markerOf(ctx) != markerContext {
			panic(vm.NewTypeError("useContext expects a context created by React.createContext"))
		}
		return st.contextValue(ctx)
	})
	set("useId", func(goja.FunctionCall) goja.Value {
		st.idSeq++
		return vm.ToValue(fmt.Sprintf(":r%d:", st.idSeq))
	})
	set("useDeferredValue", func(call goja.FunctionCall) goja.Value {
		return call.Argument(0)
	})
	set("useTransition", func(goja.FunctionCall) goja.Value {
		return vm.NewArray(false, st.noop())
	})
	set("useSyncExternalStore", func(call goja.FunctionCall) goja.Value {
		getSnapshot := call.Argument(2)
		if isNullish(getSnapshot) {
			getSnapshot = call.Argument(1)
		}
		return st.initial(getSnapshot)
	})
	for _, name := range []string{"useEffect", "useLayoutEffect", "useInsertionEffect", "useImperativeHandle", "useDebugValue"} {
		set(name, func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	}

	children := vm.NewObject()
	_ = children.Set("toArray", func(call goja.FunctionCall) goja.Value {
		return st.array(st.flatten(call.Argument(0)))
	})
	_ = children.Set("count", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(len(st.flatten(call.Argument(0))))
	})
	_ = children.Set("map", func(call goja.FunctionCall) goja.Value {
		return st.array(st.mapChildren(call.Argument(0), call.Argument(1), call.Argument(2)))
	})
	_ = children.Set("forEach", func(call goja.FunctionCall) goja.Value {
		st.mapChildren(call.Argument(0), call.Argument(1), call.Argument(2))
		return goja.Undefined()
	})
	_ = children.Set("only", func(call goja.FunctionCall) goja.Value {
		if !st.isElement(call.Argument(0)) {
			panic(vm.NewTypeError("React.Children.only expected to receive a single React element child."))
		}
		return call.Argument(0)
	})
	_ = react.Set("Children", children)

	if err := vm.Set("React", react); err != nil {
		return fmt.Errorf("failed to install React: %w", err)
	}
	if err := vm.Set("console", st.consoleObject()); err != nil {
		return fmt.Errorf("failed to install console: %w", err)
	}

	// Timers are accepted but never fire.
	timer := func(goja.FunctionCall) goja.Value {
		st.timerID++
		return vm.ToValue(st.timerID)
	}
	inert := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		"setTimeout":            timer,
		"setInterval":           timer,
		"requestAnimationFrame": timer,
		"clearTimeout":          inert,
		"clearInterval":         inert,
		"cancelAnimationFrame":  inert,
		"queueMicrotask":        inert,
	} {
		if err := vm.Set(name, fn); err != nil {
			return fmt.Errorf("failed to install %s: %w", name, err)
		}
	}

	_ = global.Set("window", global)
	_ = global.Set("self", global)
	return nil
}

func (st *renderState) consoleObject() *goja.Object {
	console := st.vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		level := level
		_ = console.Set(level, func(call goja.FunctionCall) goja.Value {
			if len(st.console) >= maxConsoleEntries {
				return goja.Undefined()
			}
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			st.console = append(st.console, level+": "+strings.Join(parts, " "))
			return goja.Undefined()
		})
	}
	return console
}

func (st *renderState) marked(marker string) *goja.Object {
	obj := st.vm.NewObject()
	_ = obj.Set("$$typeof", marker)
	return obj
}

func (st *renderState) noop() func(goja.FunctionCall) goja.Value {
	return func(goja.FunctionCall) goja.Value { return goja.Undefined() }
}

// initial resolves a lazy initialiser: functions are called, values returned.
func (st *renderState) initial(v goja.Value) goja.Value {
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return v
	}
	out, err := fn(goja.Undefined())
	if err != nil {
		panic(err)
	}
	return out
}

func (st *renderState) createElement(call goja.FunctionCall) goja.Value {
	typ := call.Argument(0)
	if isNullish(typ) {
		panic(st.vm.NewTypeError("Element type is invalid: expected a string or a function but got: %s", typ.String()))
	}

	var rest []goja.Value
	if len(call.Arguments) > 2 {
		rest = call.Arguments[2:]
	}
	return st.newElement(typ, call.Argument(1), rest)
}

// newElement builds an element object. key and ref are lifted out of config
// and children are folded into props the way JSX expects.
func (st *renderState) newElement(typ, config goja.Value, children []goja.Value) *goja.Object {
	vm := st.vm
	props := vm.NewObject()
	key, ref := goja.Null(), goja.Null()

	if cfg, ok := config.(*goja.Object); ok {
		for _, k := range cfg.Keys() {
			switch k {
			case "key":
				if v := cfg.Get(k); !isNullish(v) {
					key = vm.ToValue(v.String())
				}
			case "ref":
				ref = cfg.Get(k)
			default:
				_ = props.Set(k, cfg.Get(k))
			}
		}
	}

	switch len(children) {
	case 0:
	case 1:
		_ = props.Set("children", children[0])
	default:
		_ = props.Set("children", st.array(children))
	}

	if fn, ok := typ.(*goja.Object); ok {
		if defaults, ok := fn.Get("defaultProps").(*goja.Object); ok {
			for _, k := range defaults.Keys() {
				if isNullish(props.Get(k)) {
					_ = props.Set(k, defaults.Get(k))
				}
			}
		}
	}

	el := st.marked(markerElement)
	_ = el.Set("type", typ)
	_ = el.Set("props", props)
	_ = el.Set("key", key)
	_ = el.Set("ref", ref)
	return el
}

func (st *renderState) cloneElement(call goja.FunctionCall) goja.Value {
	src := call.Argument(0)
	if !st.isElement(src) {
		panic(st.vm.NewTypeError("React.cloneElement(...): The argument must be a React element"))
	}
	el := src.(*goja.Object)

	merged := st.vm.NewObject()
	if props, ok := el.Get("props").(*goja.Object); ok {
		for _, k := range props.Keys() {
			_ = merged.Set(k, props.Get(k))
		}
	}
	_ = merged.Set("key", el.Get("key"))
	_ = merged.Set("ref", el.Get("ref"))
	if cfg, ok := call.Argument(1).(*goja.Object); ok {
		for _, k := range cfg.Keys() {
			_ = merged.Set(k, cfg.Get(k))
		}
	}

	var children []goja.Value
	if len(call.Arguments) > 2 {
		children = call.Arguments[2:]
	}
	return st.newElement(el.Get("type"), merged, children)
}

func (st *renderState) createContext(call goja.FunctionCall) goja.Value {
	ctx := st.marked(markerContext)
	_ = ctx.Set("_currentValue", call.Argument(0))

	provider := st.marked(markerProvider)
	_ = provider.Set("_context", ctx)
	consumer := st.marked(markerConsumer)
	_ = consumer.Set("_context", ctx)

	_ = ctx.Set("Provider", provider)
	_ = ctx.Set("Consumer", consumer)
	return ctx
}

func (st *renderState) pushContext(ctx *goja.Object, value goja.Value) {
	st.contexts = append(st.contexts, contextFrame{ctx: ctx, value: value})
}

func (st *renderState) popContext() {
	st.contexts = st.contexts[:len(st.contexts)-1]
}

func (st *renderState) contextValue(ctx *goja.Object) goja.Value {
	for i := len(st.contexts) - 1; i >= 0; i-- {
		if st.contexts[i].ctx.SameAs(ctx) {
			return st.contexts[i].value
		}
	}
	if v := ctx.Get("_currentValue"); v != nil {
		return v
	}
	return goja.Undefined()
}

func (st *renderState) isElement(v goja.Value) bool {
	obj, ok := v.(*goja.Object)
	return ok && markerOf(obj) == markerElement
}

// flatten expands nested arrays of children and drops the values React
// renders as nothing.
func (st *renderState) flatten(v goja.Value) []goja.Value {
	var out []goja.Value
	var walk func(goja.Value)
	walk = func(v goja.Value) {
		if isNullish(v) {
			return
		}
		if _, ok := v.Export().(bool); ok {
			return
		}
		if obj, ok := v.(*goja.Object); ok && obj.ClassName() == "Array" {
			items, err := st.arrayItems(obj)
			if err != nil {
				st.throw(err)
			}
			for _, item := range items {
				walk(item)
			}
			return
		}
		if err := st.step(); err != nil {
			st.throw(err)
		}
		out = append(out, v)
	}
	walk(v)
	return out
}

func (st *renderState) mapChildren(children, fnValue, this goja.Value) []goja.Value {
	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		panic(st.vm.NewTypeError("React.Children.map expects a function"))
	}
	items := st.flatten(children)
	out := make([]goja.Value, 0, len(items))
	for i, item := range items {
		v, err := fn(this, item, st.vm.ToValue(i))
		if err != nil {
			panic(err)
		}
		out = append(out, v)
	}
	return out
}

func (st *renderState) array(items []goja.Value) *goja.Object {
	vals := make([]interface{}, len(items))
	for i, item := range items {
		vals[i] = item
	}
	return st.vm.NewArray(vals...)
}

func markerOf(obj *goja.Object) string {
	v := obj.Get("$$typeof")
	if v == nil {
		return ""
	}
	s, _ := v.Export().(string)
	return s
}

func isNullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

// arrayItems reads the elements of a JavaScript array. The length is set by
// component code, so it is checked against the remaining node budget before
// anything is read.
func (st *renderState) arrayItems(arr *goja.Object) ([]goja.Value, error) {
	length := arr.Get("length")
	if length == nil {
		return nil, nil
	}
	n := length.ToInteger()
	if n <= 0 {
		return nil, nil
	}
	if n > int64(st.nodes) {
		st.abort = ErrTooManyNodes
		return nil, st.abort
	}
	var items []goja.Value
	for i := int64(0); i < n; i++ {
		if err := st.step(); err != nil {
			return nil, err
		}
		items = append(items, arr.Get(fmt.Sprint(i)))
	}
	return items, nil
}
