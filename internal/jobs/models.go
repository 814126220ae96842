package jobs

type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

type Job struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id,omitempty"` // background_job_id from the caller
	Source     string `json:"source,omitempty"`
	Status     Status `json:"status"`
	Processed  int    `json:"processed"`
	Rewritten  int    `json:"rewritten"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Error      string `json:"error,omitempty"`
	CreatedAt  int64  `json:"created_at"`
	FinishedAt int64  `json:"finished_at,omitempty"`
}

// File is the recorded outcome of one item file within a job.
type File struct {
	Path    string   `json:"path"` // relative to the package root
	Status  string   `json:"status"`
	Changed []string `json:"changed,omitempty"`
	Error   string   `json:"error,omitempty"`
}

type Counts struct {
	Processed, Rewritten, Skipped, Failed int
}
