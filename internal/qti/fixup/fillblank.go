package fixup

import (
	"strconv"
	"strings"

	"github.com/mind-engage/mindengage-qtifix/internal/qti/parser"
)

const (
	// FillBlankMarker marks a v1 render_fib question that the migration tool
	// turned into an extended text interaction.
	FillBlankMarker = "render_fib"

	MaxExpectedLength = 80
	defaultCorrect    = "1"
)

// FixFillBlank downgrades extended text interactions of fill-in-the-blank
// questions to text entry, caps expectedLength and gives every downgraded
// response a correctResponse.
func FixFillBlank(text string) (string, error) {
	if !strings.Contains(text, FillBlankMarker) {
		return text, nil
	}
	doc, err := parser.Scan(text)
	if err != nil {
		return "", err
	}

	var ed parser.Edits
	var ids []string
	seen := map[string]bool{}
	for _, i := range doc.Find("extendedTextInteraction") {
		doc.Rename(&ed, i, "textEntryInteraction")
		if id, ok := doc.Attr(i, "responseIdentifier"); ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for i := range doc.Elements {
		v, ok := doc.Attr(i, "expectedLength")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n <= MaxExpectedLength {
			continue
		}
		doc.SetAttr(&ed, i, "expectedLength", strconv.Itoa(MaxExpectedLength))
	}

	for _, id := range ids {
		decls := doc.FindAttr("responseDeclaration", "identifier", id)
		if len(decls) == 0 {
			return "", &DocumentStructureError{
				Fixer:      "fill-blank",
				Element:    "responseDeclaration",
				Identifier: id,
				Reason:     "no declaration for text entry interaction",
			}
		}
		addCorrectResponse(doc, &ed, decls[0], correctValue(doc, id))
	}
	return ed.Apply(text)
}

// correctValue finds the literal a response is scored against: a non-empty
// baseValue that names the identifier itself, or one compared with
// <variable identifier="id"/>.
func correctValue(doc *parser.Document, id string) string {
	for _, i := range doc.Find("baseValue") {
		if doc.Elements[i].SelfClosed || strings.TrimSpace(doc.Inner(i)) == "" {
			continue
		}
		if v, ok := doc.Attr(i, "identifier"); ok && v == id {
			return doc.Inner(i)
		}
		p := doc.Elements[i].Parent
		if p < 0 {
			continue
		}
		for _, sib := range doc.Children(p) {
			if doc.Elements[sib].Name != "variable" {
				continue
			}
			if v, _ := doc.Attr(sib, "identifier"); v == id {
				return doc.Inner(i)
			}
		}
	}
	return defaultCorrect
}

func addCorrectResponse(doc *parser.Document, ed *parser.Edits, decl int, value string) {
	wrapper := "<correctResponse><value>" + value + "</value></correctResponse>"
	el := doc.Elements[decl]
	if el.SelfClosed {
		// "<responseDeclaration ... />" -> "<responseDeclaration ...>" + wrapper + "</responseDeclaration>"
		tag := doc.StartTag(decl)
		slash := strings.LastIndex(tag, "/")
		open := strings.TrimRight(tag[:slash], " \t\r\n") + ">"
		ed.Replace(el.Start, el.TagEnd, open+wrapper+"</"+el.QName+">")
		return
	}
	at := el.TagEnd
	for _, c := range doc.Children(decl) {
		switch doc.Elements[c].Name {
		case "correctResponse":
			return
		case "defaultValue":
			at = doc.Elements[c].End
		}
	}
	ed.Insert(at, wrapper)
}
