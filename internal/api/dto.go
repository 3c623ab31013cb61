package api

import (
	"github.com/starford/attachsync/internal/attachservice"
	"github.com/starford/attachsync/internal/capture"
	"github.com/starford/attachsync/internal/journal"
	"github.com/starford/attachsync/internal/models"
	"github.com/starford/attachsync/internal/rename"
)

// SetActiveRequest is the request body for switching the active note.
type SetActiveRequest struct {
	Path string `json:"path" example:"Docs/Design.md" validate:"required"`
}

// ActiveResponse describes the active note.
type ActiveResponse struct {
	Path   string `json:"path" example:"Docs/Design.md" validate:"required"`
	Name   string `json:"name" example:"Design" validate:"required"`
	Folder string `json:"folder" example:"Docs"`
}

// RenameRequest is the request body for renaming a note.
type RenameRequest struct {
	OldPath string `json:"old_path" example:"Docs/Design.md" validate:"required"`
	NewPath string `json:"new_path" example:"Docs/DesignV2.md" validate:"required"`
}

// RenameResponse reports what a rename did to the note's attachments.
type RenameResponse struct {
	rename.Outcome
	Error string `json:"error,omitempty"`
}

// DropResult is one saved file of a drop.
type DropResult struct {
	capture.Result
	Stale bool   `json:"stale"`
	Error string `json:"error,omitempty"`
}

// DropResponse wraps the files saved by a drop.
type DropResponse struct {
	Results []DropResult `json:"results" validate:"required"`
}

// Resolution is the resolved attachment location (aliased from the domain layer).
type Resolution = attachservice.Resolution

// RelocationListResponse wraps paginated journal listings.
type RelocationListResponse struct {
	Relocations []journal.Entry `json:"relocations" validate:"required"`
	Total       int             `json:"total" example:"42" validate:"required"`
}

func activeResponse(e models.Entry) ActiveResponse {
	n := models.NoteFromEntry(e)
	return ActiveResponse{Path: e.Path, Name: n.Name, Folder: n.Folder}
}

func renameResponse(out rename.Outcome) RenameResponse {
	resp := RenameResponse{Outcome: out}
	if out.Err != nil && !out.IsSkipped() {
		resp.Error = out.Err.Error()
	}
	return resp
}

func dropResponse(results []capture.Result) DropResponse {
	resp := DropResponse{Results: make([]DropResult, 0, len(results))}
	for _, res := range results {
		d := DropResult{Result: res, Stale: res.IsStale()}
		if res.Err != nil {
			d.Error = res.Err.Error()
		}
		resp.Results = append(resp.Results, d)
	}
	return resp
}
