package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-qtifix/internal/jobs"
)

// POST /jobs { "presigned_download_url", "presigned_upload_url", "background_job_id" }
func CreateJobHandler(runner *jobs.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req jobs.RemoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "bad json")
			return
		}
		if req.DownloadURL == "" || req.UploadURL == "" {
			respondError(w, http.StatusBadRequest, "presigned_download_url and presigned_upload_url are required")
			return
		}
		j, err := runner.RunRemote(r.Context(), req)
		if err != nil {
			if j.ID == "" {
				respondError(w, http.StatusInternalServerError, err.Error())
				return
			}
			respondJSON(w, http.StatusBadGateway, map[string]any{"job": j, "error": err.Error()})
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"job": j, "message": "package fixed and uploaded"})
	}
}

// GET /jobs?limit=50
func ListJobsHandler(store *jobs.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
		list, err := store.List(r.Context(), limit)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// GET /jobs/{id}
func GetJobHandler(store *jobs.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		j, err := store.Get(r.Context(), id)
		if errors.Is(err, jobs.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		files, err := store.Files(r.Context(), id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"job": j, "files": files})
	}
}
