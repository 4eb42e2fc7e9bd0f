package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/obrasoft/bc3gest/internal/pipeline"
	"github.com/obrasoft/bc3gest/internal/runner"
)

// parseResponse is the boundary envelope plus any non-fatal warnings.
type parseResponse struct {
	runner.Envelope
	Warnings []string `json:"warnings,omitempty"`
}

// handleParse parses an uploaded BC3 file synchronously and answers with
// the success/error envelope. All-or-nothing: a failed parse never carries
// a partial tree.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	data, _, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ParseTimeout)
	defer cancel()

	tree, warnings, err := s.run.Run(ctx, data)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		case runner.IsControlled(err):
			status = http.StatusUnprocessableEntity
		}
		s.log.Error("parse failed", "error", err, "size_bytes", len(data))
		writeEnvelope(w, status, parseResponse{Envelope: runner.NewEnvelope(nil, err)})
		return
	}

	writeEnvelope(w, http.StatusOK, parseResponse{
		Envelope: runner.NewEnvelope(tree, nil),
		Warnings: warnings,
	})
}

// handleParseAsync enqueues a parse job and returns a poll URL.
func (s *Server) handleParseAsync(w http.ResponseWriter, r *http.Request) {
	data, filename, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	job := pipeline.NewJob(filename, data)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	// Snapshot after Submit: a worker may already be mutating the job.
	snap := job.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":     snap.ID,
		"status":     snap.Status,
		"poll_url":   fmt.Sprintf("/api/parse/%s/status", snap.ID),
		"result_url": fmt.Sprintf("/api/parse/%s/result", snap.ID),
	})
}

func (s *Server) handleParseStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

func (s *Server) handleParseResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}

	snap := job.Snapshot()
	switch snap.Status {
	case pipeline.StatusCompleted:
		tree, warnings, _ := job.Result()
		writeEnvelope(w, http.StatusOK, parseResponse{
			Envelope: runner.NewEnvelope(tree, nil),
			Warnings: warnings,
		})
	case pipeline.StatusFailed:
		_, _, msg := job.Result()
		writeEnvelope(w, http.StatusUnprocessableEntity, parseResponse{
			Envelope: runner.NewEnvelope(nil, errors.New(msg)),
		})
	default:
		jsonError(w, fmt.Sprintf("job is %s", snap.Status), http.StatusConflict)
	}
}

// readUpload extracts the BC3 bytes from either a multipart "file" field
// or a raw request body, enforcing the upload cap. On failure it writes
// the error response and returns ok=false.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (data []byte, filename string, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
			return nil, "", false
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
			return nil, "", false
		}
		defer file.Close()
		filename = sanitizeFilename(header.Filename)

		data, err = io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
		if err != nil {
			jsonError(w, "failed to read file", http.StatusInternalServerError)
			return nil, "", false
		}
	} else {
		var err error
		data, err = io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxUploadBytes+1))
		if err != nil {
			jsonError(w, "failed to read request body", http.StatusBadRequest)
			return nil, "", false
		}
		filename = "upload.bc3"
	}

	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return nil, "", false
	}
	if len(data) == 0 {
		jsonError(w, "empty file", http.StatusBadRequest)
		return nil, "", false
	}
	return data, filename, true
}

func writeEnvelope(w http.ResponseWriter, status int, resp parseResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed.bc3"
	}
	return name
}
