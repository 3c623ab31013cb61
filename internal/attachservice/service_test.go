package attachservice_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/attachsync/internal/apperr"
	"github.com/starford/attachsync/internal/capture"
	"github.com/starford/attachsync/internal/journal"
	"github.com/starford/attachsync/internal/models"
	"github.com/starford/attachsync/internal/rename"
	"github.com/starford/attachsync/internal/storage"
	"github.com/starford/attachsync/internal/testutil"
)

func TestRenameNoteMovesAttachmentsAndLinks(t *testing.T) {
	e := testutil.NewEngine(t)
	testutil.Write(t, e.Store, "Docs/Design.md", "see ![[Docs/Design/a.png]]")
	testutil.Write(t, e.Store, "Docs/Design/a.png", "a")
	if err := e.Service.SetActive("Docs/Design.md"); err != nil {
		t.Fatal(err)
	}

	out, err := e.Service.RenameNote(context.Background(), "Docs/Design.md", "Docs/DesignV2.md")
	if err != nil {
		t.Fatal(err)
	}
	if out.State != rename.Done || out.LinksUpdated != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if ok, _ := e.Store.Exists("Docs/DesignV2/a.png"); !ok {
		t.Error("attachment not moved")
	}
	got, _ := e.Store.Read("Docs/DesignV2.md")
	if string(got) != "see ![[Docs/DesignV2/a.png]]" {
		t.Errorf("note = %q", got)
	}
	if active, ok := e.Service.Active(); !ok || active.Path != "Docs/DesignV2.md" {
		t.Errorf("active = %+v, %v", active, ok)
	}

	entries, total, err := e.Service.Relocations(journal.Filter{})
	if err != nil || total != 1 {
		t.Fatalf("journal = %v, %d, %v", entries, total, err)
	}
	if entries[0].Operation != journal.OpRename || entries[0].Outcome != "done" || entries[0].EventID == "" {
		t.Errorf("entry = %+v", entries[0])
	}

	// the watcher echo of the same rename is swallowed
	e.Service.OnRename(context.Background(), models.RenameEvent{Entry: models.File("Docs/DesignV2.md"), OldPath: "Docs/Design.md"})
	if _, total, _ := e.Service.Relocations(journal.Filter{}); total != 1 {
		t.Errorf("echo recorded again: total = %d", total)
	}
}

func TestRenameNoteValidation(t *testing.T) {
	e := testutil.NewEngine(t)
	testutil.Write(t, e.Store, "a.md", "")
	testutil.Write(t, e.Store, "b.md", "")
	testutil.Write(t, e.Store, "img.png", "")

	ctx := context.Background()
	if _, err := e.Service.RenameNote(ctx, "missing.md", "x.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing: %v", err)
	}
	if _, err := e.Service.RenameNote(ctx, "img.png", "img2.png"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("attachment: %v", err)
	}
	if _, err := e.Service.RenameNote(ctx, "a.md", "b.md"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("collision: %v", err)
	}
}

func TestOnRenameSkipsAreNotJournaled(t *testing.T) {
	e := testutil.NewEngine(t)
	testutil.Write(t, e.Store, "Docs/B.md", "")
	e.Service.OnRename(context.Background(), models.RenameEvent{Entry: models.File("Docs/B.md"), OldPath: "Docs/A.md"})
	if _, total, _ := e.Service.Relocations(journal.Filter{}); total != 0 {
		t.Errorf("total = %d", total)
	}
}

func TestOnCreateCapturesPaste(t *testing.T) {
	e := testutil.NewEngine(t)
	testutil.Write(t, e.Store, "Docs/Design.md", "![[Pasted image 1.png]]")
	testutil.Write(t, e.Store, "Pasted image 1.png", "png")
	_ = e.Service.SetActive("Docs/Design.md")

	entry, err := e.Store.Stat("Pasted image 1.png")
	if err != nil {
		t.Fatal(err)
	}
	e.Service.OnCreate(context.Background(), entry)

	got, _ := e.Store.Read("Docs/Design.md")
	if !strings.HasPrefix(string(got), "![[Docs/Design/IMG-") {
		t.Errorf("note = %q", got)
	}
	entries, _, _ := e.Service.Relocations(journal.Filter{Operation: journal.OpPaste})
	if len(entries) != 1 || entries[0].Outcome != "done" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestOnCreateIgnoresOldFiles(t *testing.T) {
	e := testutil.NewEngine(t)
	testutil.Write(t, e.Store, "Docs/Design.md", "![[Pasted image 1.png]]")
	_ = e.Service.SetActive("Docs/Design.md")

	old := models.Entry{Kind: models.KindFile, Path: "Pasted image 1.png", ModTime: time.Now().Add(-time.Hour)}
	e.Service.OnCreate(context.Background(), old)
	if _, total, _ := e.Service.Relocations(journal.Filter{}); total != 0 {
		t.Errorf("old file captured")
	}
}

func TestDropRequiresActiveNote(t *testing.T) {
	e := testutil.NewEngine(t)
	_, err := e.Service.Drop(context.Background(), capture.DropEditor, []capture.DroppedFile{{Name: "a.png", Data: testutil.PNG}})
	if !errors.Is(err, apperr.ErrNoActiveFile) {
		t.Errorf("err = %v", err)
	}
}

func TestDropJournaled(t *testing.T) {
	e := testutil.NewEngine(t)
	testutil.Write(t, e.Store, "Docs/Design.md", "")
	_ = e.Service.SetActive("Docs/Design.md")

	results, err := e.Service.Drop(context.Background(), capture.DropEditor, []capture.DroppedFile{{Name: "a.png", Data: testutil.PNG}})
	if err != nil || len(results) != 1 {
		t.Fatalf("results = %+v, %v", results, err)
	}
	if !strings.HasPrefix(results[0].Dest, "Docs/Design/IMG-") {
		t.Errorf("dest = %q", results[0].Dest)
	}
	if got := e.Config.AttachmentFolder(); got != "/" {
		t.Errorf("ambient folder = %q", got)
	}
	entries, _, _ := e.Service.Relocations(journal.Filter{Operation: journal.OpDrop})
	if len(entries) != 1 {
		t.Errorf("entries = %+v", entries)
	}
}

func TestResolve(t *testing.T) {
	e := testutil.NewEngine(t)
	res, err := e.Service.Resolve("Docs/Design.md")
	if err != nil {
		t.Fatal(err)
	}
	if res.AttachmentDir != "Docs/Design" || !res.CouplesToNote || !strings.HasPrefix(res.NextFileName, "IMG-") {
		t.Errorf("resolution = %+v", res)
	}
	if _, err := e.Service.Resolve("Docs/a.png"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v", err)
	}
}

// gatedStore holds the first image write until release is closed.
type gatedStore struct {
	storage.Provider
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Write(p string, data []byte) error {
	if strings.HasSuffix(p, ".png") {
		g.once.Do(func() {
			close(g.entered)
			<-g.release
		})
	}
	return g.Provider.Write(p, data)
}

func TestResolveDuringDropSeesHostFolder(t *testing.T) {
	gate := &gatedStore{entered: make(chan struct{}), release: make(chan struct{})}
	e := testutil.NewEngineWithStore(t, func(p storage.Provider) storage.Provider {
		gate.Provider = p
		return gate
	})
	testutil.Write(t, e.Store, "Docs/Design.md", "")
	_ = e.Service.SetActive("Docs/Design.md")

	dropped := make(chan error, 1)
	go func() {
		_, err := e.Service.Drop(context.Background(), capture.DropEditor, []capture.DroppedFile{{Name: "a.png", Data: testutil.PNG}})
		dropped <- err
	}()
	<-gate.entered

	resolved := make(chan string, 1)
	go func() {
		res, err := e.Service.Resolve("Other/Note.md")
		if err != nil {
			t.Error(err)
		}
		resolved <- res.AttachmentDir
	}()

	select {
	case dir := <-resolved:
		t.Fatalf("Resolve returned %q while a drop held the host folder", dir)
	case <-time.After(50 * time.Millisecond):
	}
	close(gate.release)

	if err := <-dropped; err != nil {
		t.Fatal(err)
	}
	if dir := <-resolved; dir != "Other/Note" {
		t.Errorf("AttachmentDir = %q, want Other/Note", dir)
	}
}
