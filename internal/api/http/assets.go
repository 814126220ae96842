package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-qtifix/internal/jobs"
	"github.com/mind-engage/mindengage-qtifix/internal/storage"
)

// GET /jobs/{id}/output -> the fixed archive kept for the job
func JobOutputHandler(bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		key := jobs.OutputKey(id)
		rc, err := bs.Get(key)
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "no output for job")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rc.Close()
		if n, err := bs.Stat(key); err == nil {
			w.Header().Set("Content-Length", strconv.FormatInt(n, 10))
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.zip"`)
		_, _ = io.Copy(w, rc)
	}
}
