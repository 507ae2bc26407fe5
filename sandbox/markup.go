package sandbox

import (
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"
	"unicode"

	"github.com/dop251/goja"
)

// ErrMaxDepth is returned when the element tree nests deeper than the
// renderer allows, which in practice means a component renders itself.
var ErrMaxDepth = errors.New("maximum render depth exceeded")

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

var attributeAliases = map[string]string{
	"className":      "class",
	"htmlFor":        "for",
	"defaultValue":   "value",
	"defaultChecked": "checked",
	"acceptCharset":  "accept-charset",
	"httpEquiv":      "http-equiv",
}

var unitlessStyles = map[string]bool{
	"animationIterationCount": true, "aspectRatio": true, "borderImageOutset": true,
	"borderImageSlice": true, "borderImageWidth": true, "boxFlex": true,
	"boxFlexGroup": true, "boxOrdinalGroup": true, "columnCount": true,
	"columns": true, "flex": true, "flexGrow": true, "flexPositive": true,
	"flexShrink": true, "flexNegative": true, "flexOrder": true, "gridArea": true,
	"gridRow": true, "gridRowEnd": true, "gridRowSpan": true, "gridRowStart": true,
	"gridColumn": true, "gridColumnEnd": true, "gridColumnSpan": true,
	"gridColumnStart": true, "fontWeight": true, "lineClamp": true,
	"lineHeight": true, "opacity": true, "order": true, "orphans": true,
	"scale": true, "tabSize": true, "widows": true, "zIndex": true, "zoom": true,
	"fillOpacity": true, "floodOpacity": true, "stopOpacity": true,
	"strokeDasharray": true, "strokeDashoffset": true, "strokeMiterlimit": true,
	"strokeOpacity": true, "strokeWidth": true,
}

// renderNode writes the static markup for any renderable value.
func (st *renderState) renderNode(b *strings.Builder, node goja.Value, depth int) error {
	if isNullish(node) {
		return nil
	}
	if err := st.step(); err != nil {
		return err
	}

	obj, ok := node.(*goja.Object)
	if !ok {
		if _, isBool := node.Export().(bool); isBool {
			return nil
		}
		b.WriteString(html.EscapeString(node.String()))
		return nil
	}

	switch {
	case obj.ClassName() == "Array":
		items, err := st.arrayItems(obj)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := st.renderNode(b, item, depth); err != nil {
				return err
			}
		}
		return nil
	case markerOf(obj) == markerElement:
		return st.renderElement(b, obj, depth)
	case obj.ClassName() == "Function":
		// React ignores functions passed as children.
		return nil
	}

	keys := obj.Keys()
	sort.Strings(keys)
	return fmt.Errorf("Objects are not valid as a React child (found: object with keys {%s})", strings.Join(keys, ", "))
}

func (st *renderState) renderElement(b *strings.Builder, el *goja.Object, depth int) error {
	if depth > st.maxDepth {
		return ErrMaxDepth
	}

	props, _ := el.Get("props").(*goja.Object)
	if props == nil {
		props = st.vm.NewObject()
	}
	typ := valueOrUndefined(el.Get("type"))

	if tag, ok := typ.Export().(string); ok {
		return st.renderHost(b, tag, props, depth)
	}

	target, ok := typ.(*goja.Object)
	if !ok {
		return fmt.Errorf("Element type is invalid: expected a string or a function but got: %s", typeName(typ))
	}

	if fn, ok := goja.AssertFunction(target); ok {
		out, err := fn(goja.Undefined(), props)
		if err != nil {
			return err
		}
		return st.renderNode(b, out, depth+1)
	}

	switch markerOf(target) {
	case markerFragment:
		return st.renderNode(b, props.Get("children"), depth+1)
	case markerProvider:
		ctx, _ := target.Get("_context").(*goja.Object)
		st.pushContext(ctx, valueOrUndefined(props.Get("value")))
		defer st.popContext()
		return st.renderNode(b, props.Get("children"), depth+1)
	case markerConsumer:
		ctx, _ := target.Get("_context").(*goja.Object)
		fn, ok := goja.AssertFunction(props.Get("children"))
		if !ok {
			return errors.New("Context.Consumer expects a function as its child")
		}
		out, err := fn(goja.Undefined(), st.contextValue(ctx))
		if err != nil {
			return err
		}
		return st.renderNode(b, out, depth+1)
	case markerMemo:
		inner := st.newElement(target.Get("type"), props, nil)
		return st.renderElement(b, inner, depth+1)
	case markerForwardRef:
		fn, ok := goja.AssertFunction(target.Get("render"))
		if !ok {
			return errors.New("forwardRef requires a render function")
		}
		out, err := fn(goja.Undefined(), props, valueOrUndefined(el.Get("ref")))
		if err != nil {
			return err
		}
		return st.renderNode(b, out, depth+1)
	}

	return fmt.Errorf("Element type is invalid: expected a string or a function but got: %s", typeName(typ))
}

func (st *renderState) renderHost(b *strings.Builder, tag string, props *goja.Object, depth int) error {
	if !validTagName(tag) {
		return fmt.Errorf("invalid tag name %q", tag)
	}

	b.WriteByte('<')
	b.WriteString(tag)

	var inner goja.Value
	children := props.Get("children")
	if tag == "textarea" && !isNullish(props.Get("value")) {
		children = props.Get("value")
	}

	for _, key := range props.Keys() {
		value := props.Get(key)
		switch {
		case key == "children":
			continue
		case key == "dangerouslySetInnerHTML":
			if obj, ok := value.(*goja.Object); ok {
				inner = obj.Get("__html")
			}
			continue
		case tag == "textarea" && (key == "value" || key == "defaultValue"):
			continue
		case isEventHandler(key), key == "suppressHydrationWarning", key == "suppressContentEditableWarning":
			continue
		}
		writeAttribute(b, key, value)
	}

	if voidElements[tag] {
		b.WriteString("/>")
		return nil
	}
	b.WriteByte('>')

	if !isNullish(inner) {
		b.WriteString(inner.String())
	} else if err := st.renderNode(b, children, depth+1); err != nil {
		return err
	}

	b.WriteString("</")
	b.WriteString(tag)
	b.WriteByte('>')
	return nil
}

func writeAttribute(b *strings.Builder, key string, value goja.Value) {
	if isNullish(value) {
		return
	}
	if _, isFunc := goja.AssertFunction(value); isFunc {
		return
	}

	name := key
	if alias, ok := attributeAliases[key]; ok {
		name = alias
	}
	if !validAttributeName(name) {
		return
	}

	if key == "style" {
		if obj, ok := value.(*goja.Object); ok {
			css := styleString(obj)
			if css == "" {
				return
			}
			fmt.Fprintf(b, ` style="%s"`, html.EscapeString(css))
			return
		}
	}

	if flag, ok := value.Export().(bool); ok {
		switch {
		case strings.HasPrefix(name, "aria-"), strings.HasPrefix(name, "data-"):
			fmt.Fprintf(b, ` %s="%t"`, name, flag)
		case flag:
			fmt.Fprintf(b, ` %s=""`, name)
		}
		return
	}

	if _, isObj := value.(*goja.Object); isObj && value.(*goja.Object).ClassName() != "Array" {
		return
	}

	fmt.Fprintf(b, ` %s="%s"`, name, html.EscapeString(value.String()))
}

func styleString(style *goja.Object) string {
	var parts []string
	for _, key := range style.Keys() {
		value := style.Get(key)
		if isNullish(value) {
			continue
		}
		if _, isBool := value.Export().(bool); isBool {
			continue
		}

		text := value.String()
		if text == "" {
			continue
		}
		switch value.Export().(type) {
		case int64, float64:
			if text != "0" && !unitlessStyles[key] && !strings.HasPrefix(key, "--") {
				text += "px"
			}
		}
		parts = append(parts, cssPropertyName(key)+":"+strings.TrimSpace(text))
	}
	return strings.Join(parts, ";")
}

// cssPropertyName converts a camelCase style key to its CSS property name.
// Custom properties are passed through untouched.
func cssPropertyName(key string) string {
	if strings.HasPrefix(key, "--") {
		return key
	}
	if strings.HasPrefix(key, "ms") && len(key) > 2 && unicode.IsUpper(rune(key[2])) {
		key = "-" + key
	}

	var b strings.Builder
	for _, r := range key {
		if unicode.IsUpper(r) {
			b.WriteByte('-')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isEventHandler(key string) bool {
	return len(key) > 2 && strings.HasPrefix(key, "on") && unicode.IsUpper(rune(key[2]))
}

func validTagName(tag string) bool {
	if tag == "" {
		return false
	}
	for i, r := range tag {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '-' || r == ':' || r == '.'):
		default:
			return false
		}
	}
	return true
}

func validAttributeName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if unicode.IsSpace(r) || strings.ContainsRune(`"'<>/=`, r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func valueOrUndefined(v goja.Value) goja.Value {
	if v == nil {
		return goja.Undefined()
	}
	return v
}

func typeName(v goja.Value) string {
	switch {
	case v == nil || goja.IsUndefined(v):
		return "undefined"
	case goja.IsNull(v):
		return "null"
	}
	if obj, ok := v.(*goja.Object); ok {
		return strings.ToLower(obj.ClassName())
	}
	return v.ExportType().String()
}
