package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/starford/attachsync/internal/apperr"
	"github.com/starford/attachsync/internal/attachservice"
	"github.com/starford/attachsync/internal/capture"
	"github.com/starford/attachsync/internal/journal"
)

const (
	maxBodyBytes   = 1 << 20
	maxUploadBytes = 50 << 20 // 50 MB
)

// Handler holds API route handlers.
type Handler struct {
	svc *attachservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *attachservice.Service) *Handler {
	return &Handler{svc: svc}
}

// vaultPath extracts the vault path from the URL wildcard.
// Supports encoded slashes from OpenAPI clients (e.g. Docs%2Fa.png).
func vaultPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// writeServiceError maps domain errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, apperr.ErrNoActiveFile):
		writeJSON(w, http.StatusConflict, errorBody("no active file"))
	case errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// GetActive handles GET /api/workspace/active.
//
//	@Summary		Get the active note
//	@Tags			workspace
//	@Produce		json
//	@Success		200	{object}	ActiveResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/workspace/active [get]
func (h *Handler) GetActive(w http.ResponseWriter, r *http.Request) {
	e, ok := h.svc.Active()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("no active file"))
		return
	}
	writeJSON(w, http.StatusOK, activeResponse(e))
}

// SetActive handles PUT /api/workspace/active.
//
//	@Summary		Make a note the active document
//	@Tags			workspace
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SetActiveRequest	true	"Note to activate"
//	@Success		200		{object}	ActiveResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/workspace/active [put]
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.SetActive(req.Path); err != nil {
		writeServiceError(w, "set active", err)
		return
	}
	e, _ := h.svc.Active()
	writeJSON(w, http.StatusOK, activeResponse(e))
}

// ClearActive handles DELETE /api/workspace/active.
//
//	@Summary		Close the active note
//	@Tags			workspace
//	@Success		204	"No active note"
//	@Security		BearerAuth
//	@Router			/workspace/active [delete]
func (h *Handler) ClearActive(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearActive()
	w.WriteHeader(http.StatusNoContent)
}

// Rename handles POST /api/rename.
//
//	@Summary		Rename a note and move its attachment folder with it
//	@Tags			attachments
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RenameRequest	true	"Old and new note path"
//	@Success		200		{object}	RenameResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rename [post]
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.OldPath == "" || req.NewPath == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("old_path and new_path are required"))
		return
	}
	out, err := h.svc.RenameNote(r.Context(), req.OldPath, req.NewPath)
	if err != nil {
		writeServiceError(w, "rename", err)
		return
	}
	writeJSON(w, http.StatusOK, renameResponse(out))
}

// Drop handles POST /api/drop (multipart/form-data, one or more "file" fields).
//
//	@Summary		Save dropped files as attachments of the active note
//	@Tags			attachments
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			source	query		string	false	"Drop target"	Enums(editor, area)
//	@Param			file	formData	file	true	"Dropped file"
//	@Success		201		{object}	DropResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/drop [post]
func (h *Handler) Drop(w http.ResponseWriter, r *http.Request) {
	source := capture.DropSource(r.URL.Query().Get("source"))
	if source == "" {
		source = capture.DropEditor
	}
	if source != capture.DropEditor && source != capture.DropArea {
		writeJSON(w, http.StatusBadRequest, errorBody("source must be editor or area"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}

	files := make([]capture.DroppedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
			return
		}
		files = append(files, capture.DroppedFile{Name: fh.Filename, Data: data})
	}

	results, err := h.svc.Drop(r.Context(), source, files)
	if err != nil {
		writeServiceError(w, "drop", err)
		return
	}
	writeJSON(w, http.StatusCreated, dropResponse(results))
}

// Resolve handles GET /api/resolve.
//
//	@Summary		Show where attachments of a note are stored
//	@Tags			attachments
//	@Produce		json
//	@Param			note	query		string	true	"Note path"
//	@Success		200		{object}	Resolution
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resolve [get]
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	note := r.URL.Query().Get("note")
	if note == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'note' is required"))
		return
	}
	res, err := h.svc.Resolve(note)
	if err != nil {
		writeServiceError(w, "resolve", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Relocations handles GET /api/relocations.
//
//	@Summary		List recorded attachment relocations
//	@Tags			journal
//	@Produce		json
//	@Param			note		query		string	false	"Filter by note path"
//	@Param			operation	query		string	false	"Filter by operation"	Enums(rename, paste, drop)
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{object}	RelocationListResponse
//	@Security		BearerAuth
//	@Router			/relocations [get]
func (h *Handler) Relocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.Relocations(journal.Filter{
		Note:      q.Get("note"),
		Operation: q.Get("operation"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeServiceError(w, "list relocations", err)
		return
	}
	if items == nil {
		items = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, RelocationListResponse{Relocations: items, Total: total})
}

// Settings handles GET /api/settings.
//
//	@Summary		Get the attachment path templates in use
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	pathtmpl.Settings
//	@Security		BearerAuth
//	@Router			/settings [get]
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Settings())
}

// ServeFile handles GET /api/files/*.
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	p := vaultPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	data, err := h.svc.ReadFile(p)
	if err != nil {
		writeServiceError(w, "serve file", err)
		return
	}
	w.Header().Set("Content-Type", mimetype.Detect(data).String())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
