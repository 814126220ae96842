package http

import (
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mind-engage/mindengage-qtifix/internal/jobs"
)

// POST /fixup (multipart: file=package.zip) -> fixed package.zip
func FixupHandler(runner *jobs.Runner, maxUpload int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if maxUpload > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			respondError(w, http.StatusBadRequest, "file required")
			return
		}
		defer f.Close()

		tmp, err := os.CreateTemp(runner.WorkDir, "qtifix-upload-*.zip")
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer os.Remove(tmp.Name())
		if _, err := io.Copy(tmp, f); err != nil {
			tmp.Close()
			respondError(w, http.StatusBadRequest, "read upload: "+err.Error())
			return
		}
		if err := tmp.Close(); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}

		j, out, err := runner.RunArchive(r.Context(), r.FormValue("background_job_id"), hdr.Filename, tmp.Name())
		if err != nil {
			status := http.StatusUnprocessableEntity
			if j.ID == "" {
				status = http.StatusInternalServerError
			}
			respondJSON(w, status, map[string]any{"job": j, "error": err.Error()})
			return
		}
		defer os.Remove(out)

		pkg, err := os.Open(out)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer pkg.Close()
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="`+j.ID+`.zip"`)
		w.Header().Set("X-Job-ID", j.ID)
		http.ServeContent(w, r, j.ID+".zip", time.Now(), pkg)
	}
}
