// Package testutil provides shared test helpers for setting up vaults and engines.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/starford/attachsync/internal/attachservice"
	"github.com/starford/attachsync/internal/capture"
	"github.com/starford/attachsync/internal/host"
	"github.com/starford/attachsync/internal/journal"
	"github.com/starford/attachsync/internal/models"
	"github.com/starford/attachsync/internal/notice"
	"github.com/starford/attachsync/internal/pathtmpl"
	"github.com/starford/attachsync/internal/rename"
	"github.com/starford/attachsync/internal/storage"
)

// PNG is the smallest byte sequence sniffed as image/png.
var PNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// DefaultSettings places attachments in a folder named after the note, next to it.
var DefaultSettings = pathtmpl.Settings{
	Mode:       models.RootHostDefault,
	Path:       "${notepath}/${notename}",
	Name:       "IMG-${date}",
	DateFormat: "YYYYMMDDHHmmssSSS",
}

// TestJournal creates a temporary SQLite journal that is automatically closed.
func TestJournal(t *testing.T) *journal.DB {
	t.Helper()
	db, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage provider.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// Write stores content at p in the vault or fails the test.
func Write(t *testing.T, store storage.Provider, p, content string) {
	t.Helper()
	if err := store.Write(p, []byte(content)); err != nil {
		t.Fatal(err)
	}
}

// Engine is a fully wired attachment service over a temporary vault.
type Engine struct {
	Dir       string
	Store     *storage.FS
	Config    *host.AppConfig
	Workspace *host.FileWorkspace
	Journal   *journal.DB
	Notices   *notice.Recorder
	Service   *attachservice.Service
}

// NewEngine wires a Service with DefaultSettings, auto rename and link updates on.
func NewEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngineWithStore(t, nil)
}

// NewEngineWithStore is NewEngine with every component going through the
// provider returned by wrap. A nil wrap uses the vault store directly.
func NewEngineWithStore(t *testing.T, wrap func(storage.Provider) storage.Provider) *Engine {
	t.Helper()
	dir, fs := TestVault(t)
	var store storage.Provider = fs
	if wrap != nil {
		store = wrap(fs)
	}
	cfg := host.NewAppConfig(map[string]any{host.AttachmentFolderKey: "/"})
	ws := host.NewFileWorkspace(store)
	rec := &notice.Recorder{}
	db := TestJournal(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	resolver := pathtmpl.NewResolver(DefaultSettings, cfg)

	svc := attachservice.New(attachservice.Deps{
		Store:       store,
		Resolver:    resolver,
		Workspace:   ws,
		Coordinator: rename.New(store, resolver, rec, rename.Options{AutoRenameFolder: true, UpdateLinks: true}, logger),
		Capture: capture.New(capture.Deps{
			Store:     store,
			Resolver:  resolver,
			Workspace: ws,
			Linker:    host.NewLinker(host.LinkWikilink),
			Config:    cfg,
			Saver:     host.NewSaver(store, cfg),
			Notifier:  rec,
			Logger:    logger,
		}),
		Journal: db,
		Logger:  logger,
	})
	return &Engine{
		Dir:       dir,
		Store:     fs,
		Config:    cfg,
		Workspace: ws,
		Journal:   db,
		Notices:   rec,
		Service:   svc,
	}
}
