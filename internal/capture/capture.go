// Package capture relocates freshly pasted or dropped images into the
// active note's attachment directory.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/starford/attachsync/internal/apperr"
	"github.com/starford/attachsync/internal/host"
	"github.com/starford/attachsync/internal/linkrewrite"
	"github.com/starford/attachsync/internal/models"
	"github.com/starford/attachsync/internal/notice"
	"github.com/starford/attachsync/internal/pathtmpl"
	"github.com/starford/attachsync/internal/storage"
)

// DefaultWindow is how recent a created file must be to count as pasted.
const DefaultWindow = time.Second

// PastedPrefix is the name the host gives to images pasted from the clipboard.
const PastedPrefix = "Pasted image "

var imageExts = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true,
	"bmp": true, "webp": true, "svg": true, "avif": true,
}

// DropSource tells where a drop landed.
type DropSource string

const (
	// DropEditor is a drop onto a Markdown editor.
	DropEditor DropSource = "editor"
	// DropArea is a drop onto a non-Markdown view such as a canvas.
	DropArea DropSource = "area"
)

// DroppedFile is one file carried by a drop.
type DroppedFile struct {
	Name string
	Data []byte
}

// Result describes one captured attachment. Err carries non-fatal outcomes
// (skips, stale references); fatal storage errors are returned separately.
type Result struct {
	Note        string `json:"note"`
	Source      string `json:"source,omitempty"`
	Dest        string `json:"dest,omitempty"`
	OldRef      string `json:"old_ref,omitempty"`
	NewRef      string `json:"new_ref,omitempty"`
	LinkUpdated bool   `json:"link_updated"`
	Err         error  `json:"-"`
}

// Deps are the collaborators of a Handler.
type Deps struct {
	Store     storage.Provider
	Resolver  *pathtmpl.Resolver
	Workspace host.Workspace
	Linker    host.Linker
	Config    host.Config
	Saver     *host.Saver
	Notifier  notice.Notifier
	Logger    *slog.Logger
	// Window overrides DefaultWindow when positive.
	Window time.Duration
	// Now overrides time.Now.
	Now func() time.Time
}

// Handler implements the paste and drop flows.
type Handler struct {
	Deps
}

// New creates a Handler, filling in defaults for optional deps.
func New(d Deps) *Handler {
	if d.Window <= 0 {
		d.Window = DefaultWindow
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Notifier == nil {
		d.Notifier = notice.Multi{}
	}
	return &Handler{Deps: d}
}

// ShouldCapture reports whether a newly created entry is a freshly pasted
// image. Entries older than the window are ignored so a startup scan of an
// existing vault does not relocate anything.
func (h *Handler) ShouldCapture(e models.Entry) bool {
	if !e.IsFile() || e.IsNote() {
		return false
	}
	if !strings.HasPrefix(e.Name(), PastedPrefix) || !imageExts[strings.ToLower(e.Extension())] {
		return false
	}
	return h.Now().Sub(e.ModTime) <= h.Window
}

// HandleCreate moves a pasted file into the active note's attachment
// directory and replaces its reference in the open document.
func (h *Handler) HandleCreate(ctx context.Context, e models.Entry) (Result, error) {
	active, ok := h.Workspace.ActiveFile()
	if !ok {
		h.Notifier.Notify(notice.New(notice.LevelError, notice.KindNoActiveFile, "Error: No active file found."))
		return Result{Source: e.Path, Err: apperr.ErrNoActiveFile}, nil
	}
	res := Result{Note: active.Path, Source: e.Path}
	if err := ctx.Err(); err != nil {
		res.Err = fmt.Errorf("capture: %w: %w", apperr.ErrSkipped, err)
		return res, nil
	}

	note := models.NoteFromEntry(active)
	dir := h.Resolver.AttachmentDir(note)
	if err := h.Store.Mkdir(dir); err != nil {
		return h.storageFailure(res, "failed to create "+dir, err)
	}
	dest, err := h.Saver.AvailablePath(dir, h.Resolver.FileName(note.Name, h.Now()), e.Extension())
	if err != nil {
		return h.storageFailure(res, "failed to pick a name in "+dir, err)
	}

	res.OldRef = h.Linker.Reference(e.Path, active.Path)
	if err := h.Store.Move(e.Path, dest); err != nil {
		return h.storageFailure(res, fmt.Sprintf("failed to move %s to %s", e.Path, dest), err)
	}
	res.Dest = dest
	res.NewRef = h.Linker.Reference(dest, active.Path)
	h.Notifier.Notify(notice.New(notice.LevelInfo, notice.KindMoved,
		fmt.Sprintf("renamed %s to %s", e.Name(), models.File(dest).Name())))
	h.Logger.Info("capture: pasted image moved", slog.String("source", e.Path), slog.String("dest", dest))

	doc, ok := h.Workspace.OpenDocument(active.Path)
	if !ok {
		return h.stale(res, fmt.Sprintf("Failed to replace linking in %s: no active editor", active.Path)), nil
	}
	text, err := doc.Text()
	if err != nil {
		return h.stale(res, fmt.Sprintf("Failed to replace linking in %s: %v", active.Path, err)), nil
	}
	updated, err := linkrewrite.Rewrite(active.Extension(), text, linkrewrite.Replacement{
		OldRef:  res.OldRef,
		NewRef:  res.NewRef,
		OldPath: e.Path,
		NewPath: dest,
	})
	if err != nil {
		return h.stale(res, fmt.Sprintf("Failed to replace linking in %s: reference not found", active.Path)), nil
	}
	if err := doc.SetText(updated); err != nil {
		return h.stale(res, fmt.Sprintf("Failed to replace linking in %s: %v", active.Path, err)), nil
	}
	res.LinkUpdated = true
	h.Notifier.Notify(notice.New(notice.LevelInfo, notice.KindMoved, "update 1 link in "+active.Path))
	return res, nil
}

// HandleDrop saves dropped PNG and JPEG images into the active note's
// attachment directory. Editor drops apply to Markdown notes only and area
// drops to everything else. The returned references are for the client to insert.
func (h *Handler) HandleDrop(ctx context.Context, source DropSource, files []DroppedFile) ([]Result, error) {
	active, ok := h.Workspace.ActiveFile()
	if !ok {
		h.Notifier.Notify(notice.New(notice.LevelError, notice.KindNoActiveFile, "Error: No active file found."))
		return nil, nil
	}
	isMarkdown := active.Extension() == models.ExtMarkdown
	if (source == DropEditor) != isMarkdown {
		h.Logger.Debug("capture: drop ignored", slog.String("source", string(source)), slog.String("note", active.Path))
		return nil, nil
	}

	note := models.NoteFromEntry(active)
	var results []Result
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return results, nil
		}
		if f.Name == "" {
			continue
		}
		ext, ok := ImageExtension(f.Data)
		if !ok {
			h.Logger.Debug("capture: unsupported drop", slog.String("name", f.Name))
			continue
		}
		res, err := h.saveDrop(note, active.Path, ext, f)
		if err != nil {
			return append(results, res), err
		}
		results = append(results, res)
	}
	return results, nil
}

func (h *Handler) saveDrop(note models.NoteIdentity, notePath, ext string, f DroppedFile) (Result, error) {
	res := Result{Note: notePath, Source: f.Name}
	dir := h.Resolver.AttachmentDir(note)
	if err := h.Store.Mkdir(dir); err != nil {
		return h.storageFailure(res, "failed to create "+dir, err)
	}
	name := h.Resolver.FileName(note.Name, h.Now())

	var dest string
	err := host.WithAttachmentFolder(h.Config, dir, func() error {
		p, err := h.Saver.Save(name, ext, f.Data, notePath)
		dest = p
		return err
	})
	if err != nil {
		return h.storageFailure(res, "failed to save "+f.Name, err)
	}
	res.Dest = dest
	res.NewRef = h.Linker.Reference(dest, notePath)
	h.Logger.Info("capture: drop saved", slog.String("name", f.Name), slog.String("dest", dest))
	return res, nil
}

// ImageExtension sniffs data and returns "png" or "jpeg". Other content is rejected.
func ImageExtension(data []byte) (string, bool) {
	m := mimetype.Detect(data)
	switch {
	case m.Is("image/png"):
		return "png", true
	case m.Is("image/jpeg"):
		return "jpeg", true
	}
	return "", false
}

func (h *Handler) stale(res Result, msg string) Result {
	res.Err = apperr.ErrStaleLink
	h.Notifier.Notify(notice.New(notice.LevelWarning, notice.KindStaleLinkWarning, msg))
	h.Logger.Warn("capture: reference left stale", slog.String("note", res.Note), slog.String("dest", res.Dest))
	return res
}

func (h *Handler) storageFailure(res Result, msg string, err error) (Result, error) {
	res.Err = fmt.Errorf("capture: %w: %w", apperr.ErrStorageFailure, err)
	h.Notifier.Notify(notice.New(notice.LevelError, notice.KindStorageFailure, msg))
	h.Logger.Error("capture: storage failure", slog.String("error", err.Error()))
	return res, res.Err
}

// IsStale reports whether the attachment moved but its reference was not updated.
func (r Result) IsStale() bool { return errors.Is(r.Err, apperr.ErrStaleLink) }
