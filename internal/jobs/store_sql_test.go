package jobs_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mind-engage/mindengage-qtifix/internal/db"
	"github.com/mind-engage/mindengage-qtifix/internal/jobs"
)

func openLedger(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "ledger.db") + "?_pragma=busy_timeout(5000)"
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return dbh
}

func TestSQLStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := jobs.NewSQLStore(openLedger(t))

	j, err := store.Create(ctx, "bg-42", "upload.zip")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if j.ID == "" || j.Status != jobs.StatusRunning {
		t.Fatalf("unexpected job %+v", j)
	}

	files := []jobs.File{
		{Path: "assessmentItems/b.xml", Status: "rewritten", Changed: []string{"latex", "paragraphs"}},
		{Path: "assessmentItems/a.xml", Status: "failed", Error: "hotspot: no region"},
	}
	for _, f := range files {
		if err := store.RecordFile(ctx, j.ID, f); err != nil {
			t.Fatalf("record %s: %v", f.Path, err)
		}
	}
	// second outcome for the same path replaces the first
	if err := store.RecordFile(ctx, j.ID, jobs.File{Path: "assessmentItems/a.xml", Status: "unchanged"}); err != nil {
		t.Fatal(err)
	}

	done, err := store.Finish(ctx, j.ID, jobs.Counts{Processed: 2, Rewritten: 1}, nil)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if done.Status != jobs.StatusDone || done.Processed != 2 || done.Rewritten != 1 || done.FinishedAt == 0 {
		t.Fatalf("unexpected finished job %+v", done)
	}
	if done.ExternalID != "bg-42" || done.Source != "upload.zip" {
		t.Fatalf("identity lost: %+v", done)
	}

	got, err := store.Files(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("files=%+v", got)
	}
	if got[0].Path != "assessmentItems/a.xml" || got[0].Status != "unchanged" || got[0].Error != "" {
		t.Fatalf("upsert not applied: %+v", got[0])
	}
	if len(got[1].Changed) != 2 || got[1].Changed[1] != "paragraphs" {
		t.Fatalf("changed list: %+v", got[1])
	}
}

func TestSQLStoreFailedAndMissing(t *testing.T) {
	ctx := context.Background()
	store := jobs.NewSQLStore(openLedger(t))

	j, err := store.Create(ctx, "", "")
	if err != nil {
		t.Fatal(err)
	}
	failed, err := store.Finish(ctx, j.ID, jobs.Counts{}, errors.New("unzip: not a zip file"))
	if err != nil {
		t.Fatal(err)
	}
	if failed.Status != jobs.StatusFailed || failed.Error != "unzip: not a zip file" {
		t.Fatalf("unexpected %+v", failed)
	}

	if _, err := store.Get(ctx, "nope"); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("Get: want ErrNotFound, got %v", err)
	}
	if _, err := store.Finish(ctx, "nope", jobs.Counts{}, nil); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("Finish: want ErrNotFound, got %v", err)
	}

	if _, err := store.Create(ctx, "", ""); err != nil {
		t.Fatal(err)
	}
	list, err := store.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("list len=%d", len(list))
	}
	if one, _ := store.List(ctx, 1); len(one) != 1 {
		t.Fatalf("limit ignored: %d", len(one))
	}
}

func TestEventRepo(t *testing.T) {
	ctx := context.Background()
	dbh := openLedger(t)
	store := jobs.NewSQLStore(dbh)
	events := jobs.NewEventRepo(dbh)

	j, err := store.Create(ctx, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := events.AppendJob(ctx, jobs.EventJobStarted, j); err != nil {
		t.Fatal(err)
	}
	if err := events.AppendJob(ctx, jobs.EventJobFinished, j); err != nil {
		t.Fatal(err)
	}
	if err := events.Append(ctx, jobs.Event{Type: "Other", Key: "unrelated", DataJSON: "{}"}); err != nil {
		t.Fatal(err)
	}
	got, err := events.ForKey(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Type != jobs.EventJobStarted || got[1].Type != jobs.EventJobFinished {
		t.Fatalf("events=%+v", got)
	}
	if got[0].SiteID != "local" || got[0].Offset >= got[1].Offset {
		t.Fatalf("ordering/site: %+v", got)
	}
}
