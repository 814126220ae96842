package fixup

import "strings"

var latexReplacer = strings.NewReplacer("[tex]", "$$", "[/tex]", "$$")

// FixLatex turns the legacy [tex]...[/tex] markers into $$ delimiters.
func FixLatex(text string) string {
	return latexReplacer.Replace(text)
}

// Empty wrappers left behind by the HTML authoring migration.
var emptyParagraphReplacer = strings.NewReplacer(
	`<div class="html"><p></div>`, "",
	`<div class="text"><p></div>`, "",
	`<div class="html"><p/></div>`, "",
	`<div class="text"><p/></div>`, "",
	`<div class="html"><p></p></div>`, "",
	`<div class="text"><p></p></div>`, "",
)

func StripEmptyParagraphs(text string) string {
	return emptyParagraphReplacer.Replace(text)
}
