package fixup

import (
	"errors"
	"fmt"
)

// ErrDocumentStructure matches every *DocumentStructureError via errors.Is.
var ErrDocumentStructure = errors.New("document structure")

// DocumentStructureError reports that a fixup's trigger was present but the
// counterpart it has to rewrite was missing or unusable.
type DocumentStructureError struct {
	Fixer      string
	Element    string
	Identifier string
	Reason     string
}

func (e *DocumentStructureError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Fixer, e.Element)
	if e.Identifier != "" {
		msg += fmt.Sprintf(" %q", e.Identifier)
	}
	return msg + ": " + e.Reason
}

func (e *DocumentStructureError) Is(target error) bool { return target == ErrDocumentStructure }
