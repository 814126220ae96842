package convert_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mind-engage/mindengage-qtifix/internal/qti/convert"
	"github.com/mind-engage/mindengage-qtifix/internal/qti/fixup"
)

const choiceItem = `<?xml version="1.0" encoding="UTF-8"?>
<assessmentItem identifier="q1" title="Squares">
<responseDeclaration identifier="RESPONSE" cardinality="multiple" baseType="identifier"/>
<itemBody>
<div class="html"><p></div>
<p>Which are equal to [tex]x^2[/tex]?</p>
<choiceInteraction responseIdentifier="RESPONSE" shuffle="true" maxChoices="0">
<simpleChoice identifier="A">x*x</simpleChoice>
<simpleChoice identifier="B">x^2</simpleChoice>
<simpleChoice identifier="C">2x</simpleChoice>
</choiceInteraction>
</itemBody>
<responseProcessing><responseCondition>
<responseIf><match><variable identifier="RESPONSE"/><baseValue baseType="identifier">A</baseValue></match>
<setOutcomeValue identifier="SCORE"><sum><variable identifier="SCORE"/><baseValue baseType="float">1</baseValue></sum></setOutcomeValue></responseIf>
<responseElseIf><match><variable identifier="RESPONSE"/><baseValue baseType="identifier">B</baseValue></match>
<setOutcomeValue identifier="SCORE"><sum><variable identifier="SCORE"/><baseValue baseType="float">1</baseValue></sum></setOutcomeValue></responseElseIf>
<responseElseIf><match><variable identifier="RESPONSE"/><baseValue baseType="identifier">C</baseValue></match>
<setOutcomeValue identifier="SCORE"><sum><variable identifier="SCORE"/><baseValue baseType="float">-1</baseValue></sum></setOutcomeValue></responseElseIf>
</responseCondition></responseProcessing>
</assessmentItem>
`

const brokenHotspot = `<assessmentItem identifier="h1"><itemBody>
<selectPointInteraction responseIdentifier="RESPONSE" maxChoices="1"/>
</itemBody></assessmentItem>`

const noBody = `<assessmentItem identifier="x">[tex]y[/tex]</assessmentItem>`

func writePackage(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, convert.ItemsDir)
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o640); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func read(t *testing.T, root, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, convert.ItemsDir, name))
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestDriverRewritesItems(t *testing.T) {
	root := writePackage(t, map[string]string{
		"q1.xml": choiceItem,
		"h1.xml": brokenHotspot,
		"x.xml":  noBody,
	})

	var mu sync.Mutex
	seen := map[string]convert.Status{}
	d := convert.NewDriver(fixup.Default(), convert.Options{OnFile: func(o convert.FileOutcome) {
		mu.Lock()
		seen[filepath.Base(o.Path)] = o.Status
		mu.Unlock()
	}})
	sum, err := d.Run(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}

	got := read(t, root, "q1.xml")
	for _, want := range []string{`maxChoices="2"`, `$$x^2$$`} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %s in\n%s", want, got)
		}
	}
	if strings.Contains(got, `<div class="html">`) {
		t.Fatal("empty wrapper not removed")
	}
	if read(t, root, "h1.xml") != brokenHotspot {
		t.Fatal("failed item was modified")
	}
	if read(t, root, "x.xml") != noBody {
		t.Fatal("item without itemBody was modified")
	}

	if sum.Processed != 2 || sum.Rewritten != 1 || sum.Skipped != 1 || len(sum.Failed) != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if !errors.Is(sum.Failed[0].Err, fixup.ErrDocumentStructure) || filepath.Base(sum.Failed[0].Path) != "h1.xml" {
		t.Fatalf("failure = %+v", sum.Failed[0])
	}
	if seen["q1.xml"] != convert.StatusRewritten || seen["x.xml"] != convert.StatusSkipped || seen["h1.xml"] != convert.StatusFailed {
		t.Fatalf("outcomes = %v", seen)
	}
	if !strings.Contains(sum.String(), "h1.xml") {
		t.Fatalf("report does not name the failed file: %s", sum)
	}

	fi, err := os.Stat(filepath.Join(root, convert.ItemsDir, "q1.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o640 {
		t.Fatalf("mode = %v", fi.Mode().Perm())
	}
	entries, _ := os.ReadDir(filepath.Join(root, convert.ItemsDir))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}

	// second run has nothing left to do
	again, err := d.Run(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if again.Rewritten != 0 {
		t.Fatalf("second run rewrote %d files", again.Rewritten)
	}
}

func TestDriverRemovesStaleTempFiles(t *testing.T) {
	root := writePackage(t, map[string]string{
		"q1.xml":                choiceItem,
		".q1.xml.123456789.tmp": choiceItem,
	})
	sum, err := convert.NewDriver(nil, convert.Options{}).Run(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Processed != 1 || sum.Rewritten != 1 {
		t.Fatalf("temp file treated as an item: %+v", sum)
	}
	if _, err := os.Stat(filepath.Join(root, convert.ItemsDir, ".q1.xml.123456789.tmp")); !os.IsNotExist(err) {
		t.Fatalf("stale temp file kept: %v", err)
	}
}

func TestDriverDryRunAndWorkers(t *testing.T) {
	files := map[string]string{}
	for _, n := range []string{"a.xml", "b.xml", "c.xml", "d.xml"} {
		files[n] = choiceItem
	}
	root := writePackage(t, files)

	sum, err := convert.NewDriver(nil, convert.Options{Workers: 3, DryRun: true}).Run(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Rewritten != 4 {
		t.Fatalf("summary = %+v", sum)
	}
	if read(t, root, "a.xml") != choiceItem {
		t.Fatal("dry run wrote to disk")
	}
}

func TestDriverMissingItemsDir(t *testing.T) {
	_, err := convert.NewDriver(nil, convert.Options{}).Run(context.Background(), t.TempDir())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want not-exist error, got %v", err)
	}
}

func TestDriverCancelled(t *testing.T) {
	root := writePackage(t, map[string]string{"q1.xml": choiceItem})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := convert.NewDriver(nil, convert.Options{}).Run(ctx, root); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if read(t, root, "q1.xml") != choiceItem {
		t.Fatal("cancelled run touched a file")
	}
}

func TestConvertWithCopyConverter(t *testing.T) {
	src := writePackage(t, map[string]string{"q1.xml": choiceItem})
	dst := filepath.Join(t.TempDir(), "out")

	sum, err := convert.Convert(context.Background(), convert.CopyConverter{}, src, dst, convert.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Rewritten != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if !strings.Contains(read(t, dst, "q1.xml"), `maxChoices="2"`) {
		t.Fatal("destination not fixed")
	}
	if read(t, src, "q1.xml") != choiceItem {
		t.Fatal("source modified")
	}
}

func TestExecConverter(t *testing.T) {
	if _, err := os.Stat("/bin/cp"); err != nil {
		t.Skip("cp not available")
	}
	src := writePackage(t, map[string]string{"q1.xml": choiceItem})
	dst := t.TempDir()

	conv := convert.NewExecConverter([]string{"/bin/cp", "-R", "{src}/" + convert.ItemsDir, "{dst}/"})
	if err := conv.Convert(context.Background(), src, dst); err != nil {
		t.Fatal(err)
	}
	if read(t, dst, "q1.xml") != choiceItem {
		t.Fatal("converter output missing")
	}

	bad := convert.NewExecConverter([]string{"/bin/cp", "{src}/does-not-exist", "{dst}"})
	if err := bad.Convert(context.Background(), src, dst); err == nil {
		t.Fatal("failing converter reported success")
	}
	if convert.NewExecConverter(nil) != nil {
		t.Fatal("empty argv should give no converter")
	}
}
