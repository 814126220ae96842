package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mind-engage/mindengage-qtifix/internal/archive"
	"github.com/mind-engage/mindengage-qtifix/internal/logger"
	"github.com/mind-engage/mindengage-qtifix/internal/qti/convert"
)

var errItemsFailed = errors.New("some items could not be fixed")

func main() {
	workers := flag.Int("workers", 1, "number of item files fixed concurrently")
	dryRun := flag.Bool("dry-run", false, "run fixups and report, but leave files unchanged")
	converter := flag.String("converter", "", `migration command run before fixing, e.g. "python3 migrate.py --nogui --cpout={dst} {src}"`)
	src := flag.String("src", "", "source package to migrate into <package-root> with -converter (or copy)")
	out := flag.String("out", "", "also write the fixed package to this zip file")
	logMode := flag.String("log-mode", "dev", "log output: dev or prod")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: qtifix [flags] <package-root>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	log, err := logger.New(*logMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := convert.Options{Workers: *workers, DryRun: *dryRun, Logger: log}
	if err := run(ctx, flag.Arg(0), *src, *converter, *out, opts); err != nil {
		log.Error("qtifix failed", "err", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, root, src, converter, out string, opts convert.Options) error {
	var (
		sum convert.Summary
		err error
	)
	if src != "" {
		var conv convert.Converter
		if c := convert.NewExecConverter(strings.Fields(converter)); c != nil {
			conv = c
		}
		sum, err = convert.Convert(ctx, conv, src, root, opts)
	} else {
		if converter != "" {
			return errors.New("-converter needs -src")
		}
		sum, err = convert.NewDriver(nil, opts).Run(ctx, root)
	}
	if err != nil {
		return err
	}

	fmt.Println(sum.String())
	if out != "" {
		if err := archive.ZipFile(root, out); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		opts.Logger.Info("package written", "path", out)
	}
	if len(sum.Failed) > 0 {
		return fmt.Errorf("%w: %d of %d", errItemsFailed, len(sum.Failed), sum.Processed)
	}
	return nil
}
