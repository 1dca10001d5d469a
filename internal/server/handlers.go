package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/HikariJones/Inclusive-AI-UMKM/constants"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/common"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/pipeline"
)

// maxUploadSize bounds multipart uploads; phone photos of paper reports can
// be large.
const maxUploadSize = int64(50 << 20) // 50MB

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleSubmit accepts a multipart document image and runs the extraction
// pipeline. The response is always a structured result; pipeline failures
// are reported inside it, not as transport errors.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, owner string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		s.logger.Warn("server.submit.bad_form", "owner", owner, "error", err)
		writeError(w, http.StatusBadRequest, "could not parse multipart form")
		return
	}

	f, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image field is required")
		return
	}
	defer func() { _ = f.Close() }()

	ext := constants.NormalizeExt(filepath.Ext(header.Filename))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		s.logger.Warn("server.submit.unsupported_type", "owner", owner, "filename", header.Filename)
		writeError(w, http.StatusBadRequest, "unsupported file type: "+header.Filename)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		s.logger.Warn("server.submit.read_failed", "owner", owner, "error", err)
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	headerRow, _ := strconv.ParseBool(r.FormValue("header_row"))

	s.logger.Info("server.submit.start",
		"owner", owner,
		"filename", header.Filename,
		"bytes", len(data),
		"header_row", headerRow,
	)

	result := s.processor.Process(r.Context(), pipeline.Request{
		Image:       data,
		ContentType: header.Header.Get("Content-Type"),
		Owner:       owner,
		HeaderRow:   headerRow,
	})
	writeJSON(w, http.StatusOK, result)
}

// handleGetArtifact streams the spreadsheet bytes for an owned artifact.
// Unknown ids and foreign artifacts both answer 404.
func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request, owner string) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}

	art, err := s.registry.Get(r.Context(), owner, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusNotFound, "artifact not found")
			return
		}
		s.logger.Error("server.artifact.lookup_failed", "owner", owner, "artifact_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	data, err := s.store.Get(art.Location)
	if err != nil {
		s.logger.Error("server.artifact.read_failed", "owner", owner, "artifact_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", constants.XLSXContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+art.ID.String()+`.xlsx"`)
	_, _ = w.Write(data)
}

type artifactListItem struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// handleListArtifacts returns the caller's artifacts, newest first.
func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request, owner string) {
	arts, err := s.registry.ListByOwner(r.Context(), owner)
	if err != nil {
		s.logger.Error("server.artifacts.list_failed", "owner", owner, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]artifactListItem, 0, len(arts))
	for _, a := range arts {
		items = append(items, artifactListItem{ID: a.ID.String(), CreatedAt: a.CreatedAt})
	}
	writeJSON(w, http.StatusOK, items)
}
