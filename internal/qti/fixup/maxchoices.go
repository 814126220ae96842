package fixup

import (
	"strconv"
	"strings"

	"github.com/mind-engage/mindengage-qtifix/internal/qti/parser"
)

// FixMaxChoices resolves the placeholder maxChoices="0" the migration tool
// writes on shuffled choice interactions. The resolved value is the number of
// responseIf/responseElseIf branches that look like they score a correct choice
// for that interaction's response variable.
func FixMaxChoices(text string) (string, error) {
	if !strings.Contains(text, "choiceInteraction") {
		return text, nil
	}
	doc, err := parser.Scan(text)
	if err != nil {
		return "", err
	}

	var branches []int
	for i, el := range doc.Elements {
		if el.Name == "responseIf" || el.Name == "responseElseIf" {
			branches = append(branches, i)
		}
	}

	var ed parser.Edits
	for _, ci := range doc.Find("choiceInteraction") {
		id, ok := doc.Attr(ci, "responseIdentifier")
		if !ok {
			continue
		}
		shuffle, _ := doc.Attr(ci, "shuffle")
		placeholder, _ := doc.Attr(ci, "maxChoices")
		if shuffle != "true" || placeholder != "0" {
			continue
		}
		n := 0
		for _, b := range branches {
			if scoresCorrect(doc, b, id) {
				n++
			}
		}
		doc.SetAttr(&ed, ci, "maxChoices", strconv.Itoa(n))
	}
	return ed.Apply(text)
}

// scoresCorrect: the branch tests <variable identifier="id"/> directly and
// awards no zero or negative numeric score.
func scoresCorrect(doc *parser.Document, branch int, id string) bool {
	var references, compares bool
	for _, d := range doc.Descendants(branch) {
		el := doc.Elements[d]
		if v, ok := doc.Attr(d, "identifier"); ok && v == id {
			references = true
			if el.Name == "variable" {
				compares = true
			}
		}
		if el.Name == "baseValue" && nonPositive(doc, d) {
			return false
		}
	}
	return references && compares
}

func nonPositive(doc *parser.Document, i int) bool {
	bt, _ := doc.Attr(i, "baseType")
	if bt != "integer" && bt != "float" {
		return false
	}
	v := strings.TrimSpace(doc.Inner(i))
	if strings.HasPrefix(v, "-") {
		return true
	}
	f, err := strconv.ParseFloat(v, 64)
	return err == nil && f == 0
}
