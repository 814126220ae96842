package parser

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrOverlappingEdit = errors.New("qti: overlapping edits")

type Edit struct {
	Start, End int
	Text       string
}

// Edits collects splices against one scanned text and applies them in a single
// pass. Bytes outside the edited spans are copied through untouched.
type Edits struct {
	list []Edit
}

func (e *Edits) Replace(start, end int, text string) {
	e.list = append(e.list, Edit{Start: start, End: end, Text: text})
}

func (e *Edits) Insert(at int, text string) { e.Replace(at, at, text) }

func (e *Edits) Len() int { return len(e.list) }

func (e *Edits) Apply(src string) (string, error) {
	if len(e.list) == 0 {
		return src, nil
	}
	edits := append([]Edit(nil), e.list...)
	sort.SliceStable(edits, func(a, b int) bool {
		if edits[a].Start != edits[b].Start {
			return edits[a].Start < edits[b].Start
		}
		return edits[a].End < edits[b].End
	})

	var b strings.Builder
	b.Grow(len(src))
	pos := 0
	for _, ed := range edits {
		if ed.Start < pos || ed.End < ed.Start || ed.End > len(src) {
			return "", fmt.Errorf("%w: [%d,%d) after %d", ErrOverlappingEdit, ed.Start, ed.End, pos)
		}
		b.WriteString(src[pos:ed.Start])
		b.WriteString(ed.Text)
		pos = ed.End
	}
	b.WriteString(src[pos:])
	return b.String(), nil
}
