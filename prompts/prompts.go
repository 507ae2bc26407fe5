// Package prompts builds the generation request sent to the backend: a fixed
// system instruction with worked examples, plus the session's transcript.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/Desarso/playground/models"
)

// DefaultEntryPoint is the component name every generated source must define.
const DefaultEntryPoint = "App"

//go:embed system.tmpl
var systemTemplate string

//go:embed examples/*.xml
var exampleFiles embed.FS

// Example is a worked request/reply pair embedded in the system instruction.
type Example struct {
	Title string
	Reply string
}

// DefaultExamples returns the two built-in worked examples: a static styled
// card and a chart that depends on an external library.
func DefaultExamples() []Example {
	return []Example{
		{Title: "Basic styled component", Reply: mustExample("card.xml")},
		{Title: "Component with an external library (Chart.js)", Reply: mustExample("chart.xml")},
	}
}

func mustExample(name string) string {
	data, err := exampleFiles.ReadFile("examples/" + name)
	if err != nil {
		panic(fmt.Sprintf("missing embedded example %s: %v", name, err))
	}
	return strings.TrimRight(string(data), "\n")
}

var tmpl = template.Must(template.New("system").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(systemTemplate))

// Assembler turns a transcript and the newest utterance into a GenerationRequest.
type Assembler struct {
	EntryPoint string
	Examples   []Example

	instruction string
}

// NewAssembler returns an assembler using the default entry point and examples.
func NewAssembler() *Assembler {
	a := &Assembler{
		EntryPoint: DefaultEntryPoint,
		Examples:   DefaultExamples(),
	}
	a.instruction = a.render()
	return a
}

// WithEntryPoint sets the required component name.
func (a *Assembler) WithEntryPoint(name string) *Assembler {
	a.EntryPoint = name
	a.instruction = a.render()
	return a
}

// WithExamples replaces the worked examples.
func (a *Assembler) WithExamples(examples []Example) *Assembler {
	a.Examples = examples
	a.instruction = a.render()
	return a
}

// SystemInstruction returns the instruction text. It is constant for a given
// entry point and example set and is rendered once by the constructor and
// builders, so a configured Assembler is safe to share between sessions.
func (a *Assembler) SystemInstruction() string {
	if a.instruction != "" {
		return a.instruction
	}
	return a.render()
}

func (a *Assembler) render() string {
	entry := a.EntryPoint
	if entry == "" {
		entry = DefaultEntryPoint
	}

	examples := make([]Example, len(a.Examples))
	for i, ex := range a.Examples {
		examples[i] = Example{Title: ex.Title, Reply: renameEntryPoint(ex.Reply, entry)}
	}

	var buf bytes.Buffer
	err := tmpl.Execute(&buf, struct {
		EntryPoint string
		Examples   []Example
	}{entry, examples})
	if err != nil {
		// The template is embedded and its data is plain strings.
		panic(fmt.Sprintf("failed to render system instruction: %v", err))
	}
	return buf.String()
}

// Build assembles the request for one turn. The full history is forwarded in
// order; nothing is truncated or reordered.
func (a *Assembler) Build(history []models.Turn, latest string) models.GenerationRequest {
	turns := make([]models.Turn, len(history))
	copy(turns, history)

	return models.GenerationRequest{
		SystemInstruction: a.SystemInstruction(),
		History:           turns,
		LatestUserContent: latest,
	}
}

func renameEntryPoint(reply, entry string) string {
	if entry == DefaultEntryPoint {
		return reply
	}
	return strings.ReplaceAll(reply, "function "+DefaultEntryPoint+"(", "function "+entry+"(")
}
