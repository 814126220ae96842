// Package convert runs the fixup pipeline over a converted content package.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/mindengage-qtifix/internal/logger"
	"github.com/mind-engage/mindengage-qtifix/internal/qti/fixup"
	"github.com/mind-engage/mindengage-qtifix/internal/qti/parser"
)

// ItemsDir is where the migration tool writes item files inside a package.
const ItemsDir = "assessmentItems"

type Status string

const (
	StatusRewritten Status = "rewritten"
	StatusUnchanged Status = "unchanged"
	StatusSkipped   Status = "skipped" // no itemBody
	StatusFailed    Status = "failed"
)

// FileOutcome is reported once per item file.
type FileOutcome struct {
	Path    string
	Status  Status
	Changed []string // fixers that altered the file
	Err     error
}

type FileFailure struct {
	Path string
	Err  error
}

type Summary struct {
	Processed int // files run through the pipeline
	Rewritten int
	Skipped   int
	Failed    []FileFailure
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d processed, %d rewritten, %d skipped (no itemBody), %d failed",
		s.Processed, s.Rewritten, s.Skipped, len(s.Failed))
	for _, f := range s.Failed {
		fmt.Fprintf(&b, "\n  %s: %v", f.Path, f.Err)
	}
	return b.String()
}

type Options struct {
	Workers int  // <= 1 processes files one at a time
	DryRun  bool // run fixups but leave files alone
	Logger  *logger.Logger
	// OnFile is called after each file, possibly from several goroutines.
	OnFile func(FileOutcome)
}

// Driver applies a fixup pipeline to every item file of a package.
type Driver struct {
	pipeline *fixup.Pipeline
	opts     Options
}

func NewDriver(p *fixup.Pipeline, opts Options) *Driver {
	if p == nil {
		p = fixup.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Driver{pipeline: p, opts: opts}
}

// Run fixes every regular file directly under root/assessmentItems. A file
// whose fixups fail keeps its original bytes and is listed in Summary.Failed;
// only problems with the package itself are returned as an error.
func (d *Driver) Run(ctx context.Context, root string) (Summary, error) {
	dir := filepath.Join(root, ItemsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Summary{}, fmt.Errorf("read %s: %w", dir, err)
	}
	log := d.opts.Logger.With("package", root)
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if isAtomicTemp(e.Name()) {
			// left behind by an interrupted rewrite
			if !d.opts.DryRun {
				if err := os.Remove(path); err != nil {
					log.Warn("remove stale temp file", "file", path, "err", err)
				}
			}
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)

	if mf, err := parser.ParseManifest(root); err == nil {
		log.Info("fixing package", "files", len(files), "manifest_items", len(mf.Items()))
	} else if !errors.Is(err, parser.ErrNoManifest) {
		log.Warn("manifest unreadable", "err", err)
	}

	var (
		mu  sync.Mutex
		sum Summary
	)
	record := func(o FileOutcome) {
		mu.Lock()
		switch o.Status {
		case StatusSkipped:
			sum.Skipped++
		case StatusFailed:
			sum.Processed++
			sum.Failed = append(sum.Failed, FileFailure{Path: o.Path, Err: o.Err})
		case StatusRewritten:
			sum.Processed++
			sum.Rewritten++
		default:
			sum.Processed++
		}
		mu.Unlock()
		if o.Err != nil {
			log.Warn("item not fixed", "file", o.Path, "err", o.Err)
		} else {
			log.Debug("item done", "file", o.Path, "status", o.Status, "changed", o.Changed)
		}
		if d.opts.OnFile != nil {
			d.opts.OnFile(o)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	workers := d.opts.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for _, path := range files {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			record(d.fixFile(path))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}
	if err := ctx.Err(); err != nil {
		return sum, err
	}
	sort.Slice(sum.Failed, func(i, j int) bool { return sum.Failed[i].Path < sum.Failed[j].Path })
	log.Info("package fixed", "processed", sum.Processed, "rewritten", sum.Rewritten,
		"skipped", sum.Skipped, "failed", len(sum.Failed))
	return sum, nil
}

func (d *Driver) fixFile(path string) FileOutcome {
	out := FileOutcome{Path: path}
	b, err := os.ReadFile(path)
	if err != nil {
		out.Status, out.Err = StatusFailed, err
		return out
	}
	res, err := d.pipeline.Run(string(b))
	if err != nil {
		out.Status, out.Err = StatusFailed, err
		return out
	}
	out.Changed = res.Changed
	switch {
	case !res.Scorable:
		out.Status = StatusSkipped
		return out
	case res.Text == string(b):
		out.Status = StatusUnchanged
		return out
	}
	if !d.opts.DryRun {
		if err := WriteFileAtomic(path, []byte(res.Text)); err != nil {
			out.Status, out.Err = StatusFailed, err
			return out
		}
	}
	out.Status = StatusRewritten
	return out
}

// isAtomicTemp matches the ".<name>.<random>.tmp" files WriteFileAtomic creates.
func isAtomicTemp(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".tmp") && strings.Count(name, ".") >= 3
}

// WriteFileAtomic replaces path with data via a temp file in the same
// directory, keeping the original permissions.
func WriteFileAtomic(path string, data []byte) (err error) {
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), mode); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
