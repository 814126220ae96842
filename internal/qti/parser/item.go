package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ErrMalformed is returned when the item text cannot be tokenised at all.
var ErrMalformed = errors.New("qti: malformed item document")

type Attr struct {
	Space string
	Local string
	Value string // unescaped
}

// Element is one tag found in an item document. All offsets index Document.Text.
type Element struct {
	Name  string // local name
	QName string // name as written, prefix included
	Attrs []Attr

	Start      int // '<' of the start tag
	TagEnd     int // just past '>' of the start tag
	InnerEnd   int // '<' of the end tag (== TagEnd when self-closing)
	End        int // just past the end tag
	Parent     int // index into Document.Elements, -1 at top level
	Depth      int
	Closed     bool // an explicit end tag or "/>" was seen
	SelfClosed bool
}

// Document is the structural view of one item file: the raw text plus every
// element in document order. It never owns a tree; fixups query it, queue Edits
// and re-scan the rewritten text.
type Document struct {
	Text     string
	Elements []Element
}

// Scan tokenises text and records the byte span of every element. Unmatched end
// tags are ignored and unclosed elements are closed implicitly at their parent's
// end tag, which is enough for the HTML-ish leftovers found inside itemBody.
func Scan(text string) (*Document, error) {
	dec := xml.NewDecoder(strings.NewReader(text))
	dec.Strict = false
	// keep bytes as-is so offsets stay valid for non-UTF-8 declarations
	dec.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }

	doc := &Document{Text: text}
	var stack []int
	for {
		start := int(dec.InputOffset())
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		end := int(dec.InputOffset())

		switch t := tok.(type) {
		case xml.StartElement:
			parent := -1
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}
			el := Element{
				Name:     t.Name.Local,
				QName:    qualified(t.Name),
				Start:    start,
				TagEnd:   end,
				InnerEnd: end,
				End:      end,
				Parent:   parent,
				Depth:    len(stack),
			}
			for _, a := range t.Attr {
				el.Attrs = append(el.Attrs, Attr{Space: a.Name.Space, Local: a.Name.Local, Value: a.Value})
			}
			doc.Elements = append(doc.Elements, el)
			stack = append(stack, len(doc.Elements)-1)

		case xml.EndElement:
			if start == end && len(stack) > 0 {
				// synthesized by the decoder for "<x/>"
				top := stack[len(stack)-1]
				doc.Elements[top].Closed = true
				doc.Elements[top].SelfClosed = true
				stack = stack[:len(stack)-1]
				continue
			}
			match := -1
			for k := len(stack) - 1; k >= 0; k-- {
				if doc.Elements[stack[k]].QName == qualified(t.Name) {
					match = k
					break
				}
			}
			if match < 0 {
				continue
			}
			for k := len(stack) - 1; k > match; k-- {
				closeAt(&doc.Elements[stack[k]], start, start)
			}
			m := &doc.Elements[stack[match]]
			closeAt(m, start, end)
			m.Closed = true
			stack = stack[:match]
		}
	}
	for _, i := range stack {
		closeAt(&doc.Elements[i], len(text), len(text))
	}
	return doc, nil
}

func closeAt(el *Element, innerEnd, end int) {
	el.InnerEnd = innerEnd
	el.End = end
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// Find returns the indexes of all elements with the given local name.
func (d *Document) Find(name string) []int {
	var out []int
	for i := range d.Elements {
		if d.Elements[i].Name == name {
			out = append(out, i)
		}
	}
	return out
}

// FindAttr returns elements named name whose attribute attr equals value.
func (d *Document) FindAttr(name, attr, value string) []int {
	var out []int
	for _, i := range d.Find(name) {
		if v, ok := d.Attr(i, attr); ok && v == value {
			out = append(out, i)
		}
	}
	return out
}

func (d *Document) Has(name string) bool {
	for i := range d.Elements {
		if d.Elements[i].Name == name {
			return true
		}
	}
	return false
}

// Attr looks up an unprefixed attribute by local name.
func (d *Document) Attr(i int, name string) (string, bool) {
	for _, a := range d.Elements[i].Attrs {
		if a.Space == "" && a.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// Descendants returns every element nested anywhere inside element i.
func (d *Document) Descendants(i int) []int {
	var out []int
	for j := i + 1; j < len(d.Elements); j++ {
		if d.Elements[j].Start >= d.Elements[i].InnerEnd {
			break
		}
		out = append(out, j)
	}
	return out
}

// Children returns the direct children of element i.
func (d *Document) Children(i int) []int {
	var out []int
	for _, j := range d.Descendants(i) {
		if d.Elements[j].Parent == i {
			out = append(out, j)
		}
	}
	return out
}

// Inner returns the raw text between the start and end tag.
func (d *Document) Inner(i int) string {
	el := d.Elements[i]
	return d.Text[el.TagEnd:el.InnerEnd]
}

// Outer returns the raw text of the whole element.
func (d *Document) Outer(i int) string {
	el := d.Elements[i]
	return d.Text[el.Start:el.End]
}

// StartTag returns the raw start tag of element i.
func (d *Document) StartTag(i int) string {
	el := d.Elements[i]
	return d.Text[el.Start:el.TagEnd]
}

// AttrValueSpan locates the quoted value of attribute name inside the start tag
// of element i, quotes excluded.
func (d *Document) AttrValueSpan(i int, name string) (start, end int, ok bool) {
	tag := d.StartTag(i)
	re := attrPattern(name)
	m := re.FindStringSubmatchIndex(tag)
	if m == nil {
		return 0, 0, false
	}
	base := d.Elements[i].Start
	return base + m[2] + 1, base + m[3] - 1, true
}

var attrPatterns = map[string]*regexp.Regexp{}

func attrPattern(name string) *regexp.Regexp {
	if re, ok := attrPatterns[name]; ok {
		return re
	}
	return regexp.MustCompile(`\s` + regexp.QuoteMeta(name) + `\s*=\s*("[^"]*"|'[^']*')`)
}

func init() {
	for _, n := range []string{"identifier", "responseIdentifier", "maxChoices", "expectedLength", "shuffle", "shape", "coords"} {
		attrPatterns[n] = attrPattern(n)
	}
}

// SetAttr queues a rewrite of an existing attribute value. It reports false when
// the attribute is not present on the element.
func (d *Document) SetAttr(e *Edits, i int, name, value string) bool {
	s, t, ok := d.AttrValueSpan(i, name)
	if !ok {
		return false
	}
	e.Replace(s, t, EscapeAttr(value))
	return true
}

// Rename queues a rewrite of the element's start and end tag names to local,
// keeping any namespace prefix the tags were written with.
func (d *Document) Rename(e *Edits, i int, local string) {
	el := d.Elements[i]
	qname := el.QName[:len(el.QName)-len(el.Name)] + local
	e.Replace(el.Start+1, el.Start+1+len(el.QName), qname)
	if el.Closed && !el.SelfClosed {
		e.Replace(el.InnerEnd+2, el.InnerEnd+2+len(el.QName), qname)
	}
}

var attrEscaper = strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `"`, "&quot;")

func EscapeAttr(s string) string { return attrEscaper.Replace(s) }
