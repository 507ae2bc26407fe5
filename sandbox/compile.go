package sandbox

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// CompileError is a JSX syntax error reported by the transform step.
type CompileError struct {
	Line   int
	Column int
	Text   string
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("SyntaxError: %s (%d:%d)", e.Text, e.Line, e.Column)
	}
	return "SyntaxError: " + e.Text
}

// Compile transforms JSX component source into plain JavaScript whose JSX
// calls go through React.createElement and React.Fragment.
func Compile(source string) (string, error) {
	result := api.Transform(source, api.TransformOptions{
		Loader:      api.LoaderJSX,
		JSX:         api.JSXTransform,
		JSXFactory:  "React.createElement",
		JSXFragment: "React.Fragment",
		Target:      api.ES2015,
		Sourcefile:  "component.jsx",
		LogLevel:    api.LogLevelSilent,
	})

	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		cerr := &CompileError{Text: msg.Text}
		if msg.Location != nil {
			cerr.Line = msg.Location.Line
			cerr.Column = msg.Location.Column
		}
		return "", cerr
	}

	return strings.TrimSpace(string(result.Code)), nil
}
