package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mind-engage/mindengage-qtifix/internal/qti/fixup"
)

// Converter is the structural QTI v1.2 -> v2.1 migration step. Given a source
// tree it must leave a content package with an assessmentItems folder in dst.
type Converter interface {
	Convert(ctx context.Context, src, dst string) error
}

// ExecConverter runs an external migration tool. "{src}" and "{dst}" in Args
// are replaced with the directories.
type ExecConverter struct {
	Command string
	Args    []string
	Dir     string
}

// NewExecConverter splits argv into command and args; nil when argv is empty.
func NewExecConverter(argv []string) *ExecConverter {
	if len(argv) == 0 {
		return nil
	}
	return &ExecConverter{Command: argv[0], Args: argv[1:]}
}

func (c *ExecConverter) Convert(ctx context.Context, src, dst string) error {
	args := make([]string, len(c.Args))
	r := strings.NewReplacer("{src}", src, "{dst}", dst)
	for i, a := range c.Args {
		args[i] = r.Replace(a)
	}
	cmd := exec.CommandContext(ctx, c.Command, args...)
	cmd.Dir = c.Dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("converter %s: %w: %s", c.Command, err, strings.TrimSpace(tail(out.String(), 2000)))
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// CopyConverter treats src as an already converted package and copies it.
type CopyConverter struct{}

func (CopyConverter) Convert(ctx context.Context, src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// Convert runs the structural converter from src into dst and then fixes the
// items it produced. Converter failures abort; item failures land in Summary.
func Convert(ctx context.Context, conv Converter, src, dst string, opts Options) (Summary, error) {
	if conv == nil {
		conv = CopyConverter{}
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return Summary{}, err
	}
	if err := conv.Convert(ctx, src, dst); err != nil {
		return Summary{}, err
	}
	return NewDriver(fixup.Default(), opts).Run(ctx, dst)
}
