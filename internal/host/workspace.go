package host

import (
	"fmt"
	"sync"

	"github.com/starford/attachsync/internal/apperr"
	"github.com/starford/attachsync/internal/models"
	"github.com/starford/attachsync/internal/storage"
)

// Document is an open note whose text can be read and replaced.
type Document interface {
	File() models.Entry
	Text() (string, error)
	SetText(text string) error
}

// Workspace exposes the note the user is currently editing.
type Workspace interface {
	// ActiveFile returns the active note, false when none is open.
	ActiveFile() (models.Entry, bool)
	// OpenDocument returns the open document for path, false when path is not open.
	OpenDocument(path string) (Document, bool)
}

// FileWorkspace tracks a single active note whose text lives in storage.
type FileWorkspace struct {
	store storage.Provider

	mu     sync.RWMutex
	active string
}

// NewFileWorkspace returns a workspace with no active note.
func NewFileWorkspace(store storage.Provider) *FileWorkspace {
	return &FileWorkspace{store: store}
}

// SetActive makes the note at path the active document.
func (w *FileWorkspace) SetActive(path string) error {
	e, err := w.store.Stat(path)
	if err != nil {
		return fmt.Errorf("host: set active %s: %w", path, apperr.ErrNotFound)
	}
	if !e.IsNote() {
		return fmt.Errorf("host: set active %s: not a note: %w", path, apperr.ErrInvalidInput)
	}
	w.mu.Lock()
	w.active = e.Path
	w.mu.Unlock()
	return nil
}

// ClearActive closes the active document.
func (w *FileWorkspace) ClearActive() {
	w.mu.Lock()
	w.active = ""
	w.mu.Unlock()
}

// ActiveFile implements Workspace.
func (w *FileWorkspace) ActiveFile() (models.Entry, bool) {
	w.mu.RLock()
	p := w.active
	w.mu.RUnlock()
	if p == "" {
		return models.Entry{}, false
	}
	e, err := w.store.Stat(p)
	if err != nil {
		return models.Entry{}, false
	}
	return e, true
}

// OpenDocument implements Workspace. Only the active note counts as open.
func (w *FileWorkspace) OpenDocument(path string) (Document, bool) {
	active, ok := w.ActiveFile()
	if !ok || active.Path != path {
		return nil, false
	}
	return &fileDocument{store: w.store, entry: active}, true
}

// Follow updates the active note after it was renamed from oldPath.
func (w *FileWorkspace) Follow(oldPath, newPath string) {
	w.mu.Lock()
	if w.active == oldPath {
		w.active = newPath
	}
	w.mu.Unlock()
}

type fileDocument struct {
	store storage.Provider
	entry models.Entry
}

func (d *fileDocument) File() models.Entry { return d.entry }

func (d *fileDocument) Text() (string, error) {
	data, err := d.store.Read(d.entry.Path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (d *fileDocument) SetText(text string) error {
	return d.store.Write(d.entry.Path, []byte(text))
}
