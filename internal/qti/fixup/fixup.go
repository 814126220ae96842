// Package fixup repairs QTI v2.1 items emitted by the v1.2 migration tool.
// Every fixer is a pure function of the document text.
package fixup

import (
	"fmt"
	"strings"

	"github.com/mind-engage/mindengage-qtifix/internal/qti/parser"
)

// Fixer rewrites one item document.
type Fixer interface {
	Name() string
	Fix(text string) (string, error)
}

// Func adapts a plain function to Fixer.
type Func struct {
	name string
	fn   func(string) (string, error)
}

func NewFunc(name string, fn func(string) (string, error)) Func { return Func{name: name, fn: fn} }

func (f Func) Name() string                    { return f.name }
func (f Func) Fix(text string) (string, error) { return f.fn(text) }

// Result describes what the pipeline did to one document.
type Result struct {
	Text     string
	Scorable bool     // the document has an itemBody
	Changed  []string // names of fixers that altered the text
}

// Pipeline applies fixers in order to documents that have an itemBody.
type Pipeline struct {
	fixers []Fixer
}

func NewPipeline(fixers ...Fixer) *Pipeline {
	return &Pipeline{fixers: fixers}
}

// Default returns the fixed-order pipeline. FillBlank and Hotspot reshape
// interactions, so MaxChoices has to see the document before they run.
func Default() *Pipeline {
	return NewPipeline(
		NewFunc("max-choices", FixMaxChoices),
		NewFunc("latex", wrap(FixLatex)),
		NewFunc("fill-blank", FixFillBlank),
		NewFunc("hotspot", FixHotspot),
		NewFunc("paragraphs", wrap(StripEmptyParagraphs)),
	)
}

func wrap(fn func(string) string) func(string) (string, error) {
	return func(s string) (string, error) { return fn(s), nil }
}

func (p *Pipeline) Fixers() []Fixer { return p.fixers }

// Run returns text unchanged when it has no itemBody. Otherwise every fixer is
// applied; the first error aborts the document.
func (p *Pipeline) Run(text string) (Result, error) {
	ok, err := HasItemBody(text)
	if err != nil {
		return Result{Text: text}, err
	}
	if !ok {
		return Result{Text: text}, nil
	}
	res := Result{Text: text, Scorable: true}
	for _, f := range p.fixers {
		out, err := f.Fix(res.Text)
		if err != nil {
			return Result{Text: text, Scorable: true}, fmt.Errorf("%s: %w", f.Name(), err)
		}
		if out != res.Text {
			res.Changed = append(res.Changed, f.Name())
		}
		res.Text = out
	}
	return res, nil
}

// HasItemBody reports whether text holds an itemBody element with an end tag.
func HasItemBody(text string) (bool, error) {
	if !strings.Contains(text, "itemBody") {
		return false, nil
	}
	doc, err := parser.Scan(text)
	if err != nil {
		return false, err
	}
	for _, i := range doc.Find("itemBody") {
		el := doc.Elements[i]
		if el.Closed && !el.SelfClosed {
			return true, nil
		}
	}
	return false, nil
}
