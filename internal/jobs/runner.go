package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mind-engage/mindengage-qtifix/internal/archive"
	"github.com/mind-engage/mindengage-qtifix/internal/logger"
	"github.com/mind-engage/mindengage-qtifix/internal/qti/convert"
	"github.com/mind-engage/mindengage-qtifix/internal/storage"
	"github.com/mind-engage/mindengage-qtifix/internal/transport"
)

// Runner takes an uploaded package archive through conversion and fixups and
// keeps a ledger entry for every run.
type Runner struct {
	Store     *SQLStore
	Events    *EventRepo
	Blobs     storage.BlobStore
	Transport *transport.Client
	Converter convert.Converter // nil copies the package unchanged
	WorkDir   string
	Workers   int
	DryRun    bool
	Log       *logger.Logger
}

type RemoteRequest struct {
	DownloadURL string `json:"presigned_download_url"`
	UploadURL   string `json:"presigned_upload_url"`
	ExternalID  string `json:"background_job_id"`
}

// OutputKey is where the fixed archive of a job is kept in the blob store.
func OutputKey(jobID string) string { return "jobs/" + jobID + "/output.zip" }

// RunRemote downloads the archive, runs it and uploads the result.
func (r *Runner) RunRemote(ctx context.Context, req RemoteRequest) (Job, error) {
	if req.DownloadURL == "" || req.UploadURL == "" {
		return Job{}, fmt.Errorf("presigned_download_url and presigned_upload_url are required")
	}
	j, err := r.Store.Create(ctx, req.ExternalID, redactQuery(req.DownloadURL))
	if err != nil {
		return Job{}, err
	}
	r.event(ctx, EventJobStarted, j)

	work, err := os.MkdirTemp(r.WorkDir, "qtifix-dl-*")
	if err != nil {
		return r.fail(ctx, j, err)
	}
	defer os.RemoveAll(work)

	in := filepath.Join(work, "download.zip")
	if err := r.Transport.Download(ctx, req.DownloadURL, in); err != nil {
		return r.fail(ctx, j, err)
	}
	j, out, err := r.run(ctx, j, in)
	if err != nil {
		return j, err
	}
	defer os.Remove(out)
	if err := r.Transport.Upload(ctx, req.UploadURL, out); err != nil {
		return r.fail(ctx, j, err)
	}
	return j, nil
}

// RunArchive processes a local archive and returns the finished job together
// with the path of the fixed archive. The caller removes that file.
func (r *Runner) RunArchive(ctx context.Context, externalID, source, archivePath string) (Job, string, error) {
	j, err := r.Store.Create(ctx, externalID, source)
	if err != nil {
		return Job{}, "", err
	}
	r.event(ctx, EventJobStarted, j)
	return r.run(ctx, j, archivePath)
}

func (r *Runner) run(ctx context.Context, j Job, archivePath string) (Job, string, error) {
	log := r.log().With("job", j.ID)
	work, err := os.MkdirTemp(r.WorkDir, "qtifix-"+j.ID+"-*")
	if err != nil {
		j, err = r.fail(ctx, j, err)
		return j, "", err
	}
	defer os.RemoveAll(work)

	src := filepath.Join(work, "source")
	dst := filepath.Join(work, "package")
	if err := archive.UnzipFile(archivePath, src); err != nil {
		j, err = r.fail(ctx, j, fmt.Errorf("unzip: %w", err))
		return j, "", err
	}

	opts := convert.Options{
		Workers: r.Workers,
		DryRun:  r.DryRun,
		Logger:  log,
		OnFile: func(o convert.FileOutcome) {
			rel, err := filepath.Rel(dst, o.Path)
			if err != nil {
				rel = o.Path
			}
			f := File{Path: filepath.ToSlash(rel), Status: string(o.Status), Changed: o.Changed}
			if o.Err != nil {
				f.Error = o.Err.Error()
			}
			if err := r.Store.RecordFile(ctx, j.ID, f); err != nil {
				log.Warn("record file outcome", "file", f.Path, "err", err)
			}
		},
	}
	sum, err := convert.Convert(ctx, r.Converter, src, dst, opts)
	if err != nil {
		j, err = r.fail(ctx, j, err)
		return j, "", err
	}

	out, err := os.CreateTemp(r.WorkDir, "qtifix-out-*.zip")
	if err != nil {
		j, err = r.fail(ctx, j, err)
		return j, "", err
	}
	out.Close()
	if err := archive.ZipFile(dst, out.Name()); err != nil {
		_ = os.Remove(out.Name())
		j, err = r.fail(ctx, j, fmt.Errorf("zip: %w", err))
		return j, "", err
	}
	if r.Blobs != nil {
		if err := r.storeOutput(j.ID, out.Name()); err != nil {
			log.Warn("keep output archive", "err", err)
		}
	}

	counts := Counts{Processed: sum.Processed, Rewritten: sum.Rewritten, Skipped: sum.Skipped, Failed: len(sum.Failed)}
	j, err = r.Store.Finish(ctx, j.ID, counts, nil)
	if err != nil {
		_ = os.Remove(out.Name())
		return Job{}, "", err
	}
	r.event(ctx, EventJobFinished, j)
	log.Info("job finished", "summary", sum.String())
	return j, out.Name(), nil
}

func (r *Runner) storeOutput(jobID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = r.Blobs.Put(OutputKey(jobID), f)
	return err
}

func (r *Runner) fail(ctx context.Context, j Job, cause error) (Job, error) {
	r.log().Error("job failed", "job", j.ID, "err", cause)
	done, err := r.Store.Finish(context.WithoutCancel(ctx), j.ID, Counts{}, cause)
	if err != nil {
		return j, fmt.Errorf("%w (ledger: %v)", cause, err)
	}
	r.event(ctx, EventJobFailed, done)
	return done, cause
}

func (r *Runner) event(ctx context.Context, typ string, j Job) {
	if r.Events == nil {
		return
	}
	if err := r.Events.AppendJob(context.WithoutCancel(ctx), typ, j); err != nil {
		r.log().Warn("append event", "type", typ, "job", j.ID, "err", err)
	}
}

func (r *Runner) log() *logger.Logger {
	if r.Log == nil {
		return logger.Nop()
	}
	return r.Log
}

// presigned query strings carry credentials
func redactQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
