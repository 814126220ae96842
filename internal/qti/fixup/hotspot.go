package fixup

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mind-engage/mindengage-qtifix/internal/qti/parser"
)

const HotspotMarker = "selectPointInteraction"

// Rect is a normalized hotspot rectangle.
type Rect struct{ X1, Y1, X2, Y2 int }

func (r Rect) Coords() string { return fmt.Sprintf("%d,%d,%d,%d", r.X1, r.Y1, r.X2, r.Y2) }

// HotspotRect rebuilds the rectangle from the migration tool's coordinate
// string, which it writes as "x1 y1 y2 x2".
//
// TODO: check x2 = x1+x2-y1, y2 = y1+y2-x1 against hand-made before/after items;
// it looks like it undoes a serialization bug upstream rather than a geometric
// transform, so it is only applied to rectangles.
func HotspotRect(coords string) (Rect, error) {
	parts := strings.FieldsFunc(coords, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(parts) != 4 {
		return Rect{}, fmt.Errorf("want 4 coordinates, got %d", len(parts))
	}
	var v [4]int
	for k, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Rect{}, fmt.Errorf("coordinate %q is not an integer", p)
		}
		v[k] = n
	}
	x1, y1, y2, x2 := v[0], v[1], v[2], v[3]
	return Rect{
		X1: x1,
		Y1: y1,
		X2: x1 + x2 - y1,
		Y2: y1 + y2 - x1,
	}, nil
}

// FixHotspot replaces the single <inside> region of a select-point item with an
// areaMapping holding one fully scored rectangle.
func FixHotspot(text string) (string, error) {
	if !strings.Contains(text, HotspotMarker) {
		return text, nil
	}
	doc, err := parser.Scan(text)
	if err != nil {
		return "", err
	}

	regions := doc.Find("inside")
	switch {
	case len(regions) == 0 && doc.Has("areaMapEntry"):
		return text, nil
	case len(regions) == 0:
		return "", hotspotErr("no inside region for select point interaction")
	case len(regions) > 1:
		return "", hotspotErr(fmt.Sprintf("%d inside regions, want 1", len(regions)))
	}

	i := regions[0]
	shape, _ := doc.Attr(i, "shape")
	if !isRect(shape) {
		return "", hotspotErr(fmt.Sprintf("unsupported shape %q", shape))
	}
	coords, _ := doc.Attr(i, "coords")
	r, err := HotspotRect(coords)
	if err != nil {
		return "", hotspotErr(err.Error())
	}

	var ed parser.Edits
	el := doc.Elements[i]
	ed.Replace(el.Start, el.End,
		`<areaMapping><areaMapEntry shape="rect" coords="`+r.Coords()+`" mappedValue="1"/></areaMapping>`)
	return ed.Apply(text)
}

func isRect(shape string) bool {
	switch strings.ToLower(strings.TrimSpace(shape)) {
	case "rect", "rectangle":
		return true
	}
	return false
}

func hotspotErr(reason string) error {
	return &DocumentStructureError{Fixer: "hotspot", Element: "inside", Reason: reason}
}
