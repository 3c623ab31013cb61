// Package attachservice ties the watcher, the HTTP API and the MCP tools to
// the attachment engine and handles their events one at a time.
package attachservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/attachsync/internal/apperr"
	"github.com/starford/attachsync/internal/capture"
	"github.com/starford/attachsync/internal/host"
	"github.com/starford/attachsync/internal/journal"
	"github.com/starford/attachsync/internal/models"
	"github.com/starford/attachsync/internal/pathtmpl"
	"github.com/starford/attachsync/internal/rename"
	"github.com/starford/attachsync/internal/sse"
	"github.com/starford/attachsync/internal/storage"
)

// expectTTL bounds how long a rename started by RenameNote waits for its
// echo from the watcher.
const expectTTL = 5 * time.Second

// Publisher broadcasts relocation events to live clients.
type Publisher interface {
	Publish(e sse.Event)
}

// Deps are the collaborators of a Service. Journal and Events are optional.
type Deps struct {
	Store       storage.Provider
	Resolver    *pathtmpl.Resolver
	Workspace   *host.FileWorkspace
	Coordinator *rename.Coordinator
	Capture     *capture.Handler
	Journal     journal.Journal
	Events      Publisher
	Logger      *slog.Logger
}

// Resolution is the computed attachment location for a note.
type Resolution struct {
	Note          string          `json:"note"`
	Mode          models.RootMode `json:"mode"`
	AttachmentDir string          `json:"attachment_dir"`
	NextFileName  string          `json:"next_file_name"`
	CouplesToNote bool            `json:"couples_to_note"`
}

// Service serializes every vault event under one lock.
type Service struct {
	Deps

	mu     sync.Mutex
	expect map[string]time.Time
}

// New creates a Service.
func New(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{Deps: d, expect: make(map[string]time.Time)}
}

// OnCreate implements watcher.Handler.
func (s *Service) OnCreate(ctx context.Context, e models.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Capture.ShouldCapture(e) {
		return
	}
	id := uuid.NewString()
	res, err := s.Capture.HandleCreate(ctx, e)
	if err != nil {
		s.Logger.Error("attachservice: paste failed", slog.String("event_id", id), slog.String("path", e.Path), slog.String("error", err.Error()))
	}
	if res.Note == "" {
		// no active note, nothing happened
		return
	}
	s.record(journal.Entry{
		EventID:   id,
		Operation: journal.OpPaste,
		Note:      res.Note,
		Source:    res.Source,
		Dest:      res.Dest,
		Outcome:   captureOutcome(res),
		Message:   errText(res.Err),
	})
}

// OnRename implements watcher.Handler.
func (s *Service) OnRename(ctx context.Context, ev models.RenameEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.consumeExpected(ev.OldPath, ev.Entry.Path) {
		return
	}
	s.Workspace.Follow(ev.OldPath, ev.Entry.Path)
	if _, err := s.handleRename(ctx, ev); err != nil {
		s.Logger.Error("attachservice: rename failed", slog.String("path", ev.Entry.Path), slog.String("error", err.Error()))
	}
}

// RenameNote moves a note and synchronizes its attachments in one step.
func (s *Service) RenameNote(ctx context.Context, oldPath, newPath string) (rename.Outcome, error) {
	oldPath = pathtmpl.Normalize(oldPath)
	newPath = pathtmpl.Normalize(newPath)

	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.Store.Stat(oldPath)
	if err != nil {
		return rename.Outcome{}, fmt.Errorf("attachservice: rename %s: %w", oldPath, apperr.ErrNotFound)
	}
	if !old.IsNote() || !models.IsNoteExt(models.Ext(newPath)) {
		return rename.Outcome{}, fmt.Errorf("attachservice: rename %s: only notes can be renamed: %w", oldPath, apperr.ErrInvalidInput)
	}
	if ok, err := s.Store.Exists(newPath); err != nil {
		return rename.Outcome{}, err
	} else if ok {
		return rename.Outcome{}, fmt.Errorf("attachservice: rename %s: %w", newPath, apperr.ErrAlreadyExists)
	}
	if err := s.Store.Move(oldPath, newPath); err != nil {
		return rename.Outcome{}, fmt.Errorf("attachservice: rename note: %w: %w", apperr.ErrStorageFailure, err)
	}
	s.expect[expectKey(oldPath, newPath)] = time.Now()
	s.Workspace.Follow(oldPath, newPath)

	entry, err := s.Store.Stat(newPath)
	if err != nil {
		entry = models.File(newPath)
	}
	return s.handleRename(ctx, models.RenameEvent{Entry: entry, OldPath: oldPath})
}

func (s *Service) handleRename(ctx context.Context, ev models.RenameEvent) (rename.Outcome, error) {
	id := uuid.NewString()
	out, err := s.Coordinator.Handle(ctx, ev)
	if out.State == rename.Skipped {
		return out, err
	}
	s.record(journal.Entry{
		EventID:   id,
		Operation: journal.OpRename,
		Kind:      out.Kind.String(),
		Note:      ev.Entry.Path,
		Source:    out.Moved.Source,
		Dest:      out.Moved.Dest,
		Outcome:   out.State.String(),
		Message:   errText(out.Err),
	})
	return out, err
}

// Drop saves dropped files for the active note.
func (s *Service) Drop(ctx context.Context, source capture.DropSource, files []capture.DroppedFile) ([]capture.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.Workspace.ActiveFile(); !ok {
		return nil, apperr.ErrNoActiveFile
	}
	results, err := s.Capture.HandleDrop(ctx, source, files)
	for _, res := range results {
		s.record(journal.Entry{
			EventID:   uuid.NewString(),
			Operation: journal.OpDrop,
			Note:      res.Note,
			Source:    res.Source,
			Dest:      res.Dest,
			Outcome:   captureOutcome(res),
			Message:   errText(res.Err),
		})
	}
	return results, err
}

// Resolve reports where attachments of the note at notePath belong.
func (s *Service) Resolve(notePath string) (Resolution, error) {
	notePath = pathtmpl.Normalize(notePath)
	if !models.IsNoteExt(models.Ext(notePath)) {
		return Resolution{}, fmt.Errorf("attachservice: resolve %s: not a note: %w", notePath, apperr.ErrInvalidInput)
	}
	// a drop in progress temporarily points the host folder at the note
	s.mu.Lock()
	defer s.mu.Unlock()

	note := models.NoteFromPath(notePath)
	set := s.Resolver.Settings()
	return Resolution{
		Note:          notePath,
		Mode:          set.Mode,
		AttachmentDir: s.Resolver.AttachmentDir(note),
		NextFileName:  s.Resolver.FileName(note.Name, time.Now()),
		CouplesToNote: s.Resolver.CouplesToNote(),
	}, nil
}

// SetActive makes notePath the active document.
func (s *Service) SetActive(notePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Workspace.SetActive(pathtmpl.Normalize(notePath))
}

// ClearActive closes the active document.
func (s *Service) ClearActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Workspace.ClearActive()
}

// ReadFile returns the content of a vault file.
func (s *Service) ReadFile(p string) ([]byte, error) {
	p = pathtmpl.Normalize(p)
	ok, err := s.Store.Exists(p)
	if err != nil {
		return nil, fmt.Errorf("attachservice: read %s: %w: %w", p, apperr.ErrInvalidInput, err)
	}
	if !ok {
		return nil, fmt.Errorf("attachservice: read %s: %w", p, apperr.ErrNotFound)
	}
	e, err := s.Store.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("attachservice: read %s: %w: %w", p, apperr.ErrStorageFailure, err)
	}
	if e.IsFolder() {
		return nil, fmt.Errorf("attachservice: read %s: is a folder: %w", p, apperr.ErrInvalidInput)
	}
	return s.Store.Read(p)
}

// Active returns the active document.
func (s *Service) Active() (models.Entry, bool) {
	return s.Workspace.ActiveFile()
}

// Relocations lists journal entries.
func (s *Service) Relocations(f journal.Filter) ([]journal.Entry, int, error) {
	if s.Journal == nil {
		return nil, 0, nil
	}
	return s.Journal.List(f)
}

// Settings returns the attachment templates in use.
func (s *Service) Settings() pathtmpl.Settings {
	return s.Resolver.Settings()
}

func (s *Service) record(e journal.Entry) {
	if s.Events != nil {
		s.Events.Publish(sse.Event{Type: sse.TypeRelocation, Data: e})
	}
	if s.Journal == nil {
		return
	}
	if err := s.Journal.Record(e); err != nil {
		s.Logger.Warn("attachservice: journal write failed", slog.String("event_id", e.EventID), slog.String("error", err.Error()))
	}
}

func (s *Service) consumeExpected(oldPath, newPath string) bool {
	now := time.Now()
	for k, at := range s.expect {
		if now.Sub(at) > expectTTL {
			delete(s.expect, k)
		}
	}
	k := expectKey(oldPath, newPath)
	if _, ok := s.expect[k]; ok {
		delete(s.expect, k)
		return true
	}
	return false
}

func expectKey(oldPath, newPath string) string { return oldPath + "\x00" + newPath }

func captureOutcome(res capture.Result) string {
	switch {
	case res.Err == nil:
		return "done"
	case res.IsStale():
		return "stale"
	case errors.Is(res.Err, apperr.ErrSkipped):
		return "skipped"
	default:
		return "failed"
	}
}

func errText(err error) string {
	if err == nil || errors.Is(err, apperr.ErrSkipped) {
		return ""
	}
	return err.Error()
}
