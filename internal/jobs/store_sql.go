package jobs

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("job not found")

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Create(ctx context.Context, externalID, source string) (Job, error) {
	j := Job{
		ID:         uuid.NewString(),
		ExternalID: externalID,
		Source:     source,
		Status:     StatusRunning,
		CreatedAt:  time.Now().Unix(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id,external_id,source,status,created_at) VALUES ($1,$2,$3,$4,$5)`,
		j.ID, j.ExternalID, j.Source, string(j.Status), j.CreatedAt)
	if err != nil {
		return Job{}, err
	}
	return j, nil
}

// Finish stores the final counts. A non-nil runErr marks the job failed.
func (s *SQLStore) Finish(ctx context.Context, id string, c Counts, runErr error) (Job, error) {
	status, msg := StatusDone, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status=$1, processed=$2, rewritten=$3, skipped=$4, failed=$5, error=$6, finished_at=$7 WHERE id=$8`,
		string(status), c.Processed, c.Rewritten, c.Skipped, c.Failed, msg, time.Now().Unix(), id)
	if err != nil {
		return Job{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Job{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *SQLStore) RecordFile(ctx context.Context, jobID string, f File) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_files (job_id,path,status,changed,error) VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (job_id,path) DO UPDATE SET status=EXCLUDED.status, changed=EXCLUDED.changed, error=EXCLUDED.error`,
		jobID, f.Path, f.Status, strings.Join(f.Changed, ","), f.Error)
	return err
}

func (s *SQLStore) Get(ctx context.Context, id string) (Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobCols+` FROM jobs WHERE id=$1`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	return j, err
}

func (s *SQLStore) List(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobCols+` FROM jobs ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *SQLStore) Files(ctx context.Context, jobID string) ([]File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path,status,changed,error FROM job_files WHERE job_id=$1 ORDER BY path`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []File{}
	for rows.Next() {
		var f File
		var changed string
		if err := rows.Scan(&f.Path, &f.Status, &changed, &f.Error); err != nil {
			return nil, err
		}
		if changed != "" {
			f.Changed = strings.Split(changed, ",")
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

const jobCols = `id,external_id,source,status,processed,rewritten,skipped,failed,error,created_at,finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(r scanner) (Job, error) {
	var j Job
	var status string
	var finished sql.NullInt64
	if err := r.Scan(&j.ID, &j.ExternalID, &j.Source, &status, &j.Processed, &j.Rewritten,
		&j.Skipped, &j.Failed, &j.Error, &j.CreatedAt, &finished); err != nil {
		return Job{}, err
	}
	j.Status = Status(status)
	j.FinishedAt = finished.Int64
	return j, nil
}
