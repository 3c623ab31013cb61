package capture

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/starford/attachsync/internal/apperr"
	"github.com/starford/attachsync/internal/host"
	"github.com/starford/attachsync/internal/models"
	"github.com/starford/attachsync/internal/notice"
	"github.com/starford/attachsync/internal/pathtmpl"
	"github.com/starford/attachsync/internal/storage"
)

var (
	pngData  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegData = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
	fixedNow = time.Date(2024, 3, 5, 6, 7, 8, 9_000_000, time.UTC)
)

const stamp = "20240305060708009"

type fixture struct {
	store   *storage.FS
	ws      *host.FileWorkspace
	cfg     *host.AppConfig
	notices *notice.Recorder
	h       *Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg := host.NewAppConfig(map[string]any{host.AttachmentFolderKey: "./"})
	f := &fixture{
		store:   store,
		ws:      host.NewFileWorkspace(store),
		cfg:     cfg,
		notices: &notice.Recorder{},
	}
	f.h = f.handler(store)
	return f
}

func (f *fixture) handler(saverStore storage.Provider) *Handler {
	settings := pathtmpl.Settings{
		Mode:       models.RootInFolder,
		Root:       "/",
		Path:       "${notepath}/${notename}",
		Name:       "IMG-${date}",
		DateFormat: "YYYYMMDDHHmmssSSS",
	}
	return New(Deps{
		Store:     f.store,
		Resolver:  pathtmpl.NewResolver(settings, f.cfg),
		Workspace: f.ws,
		Linker:    host.NewLinker(host.LinkWikilink),
		Config:    f.cfg,
		Saver:     host.NewSaver(saverStore, f.cfg),
		Notifier:  f.notices,
		Now:       func() time.Time { return fixedNow },
	})
}

func (f *fixture) write(t *testing.T, p, content string) {
	t.Helper()
	if err := f.store.Write(p, []byte(content)); err != nil {
		t.Fatal(err)
	}
}

func TestShouldCapture(t *testing.T) {
	h := New(Deps{Now: func() time.Time { return fixedNow }})
	cases := []struct {
		name string
		e    models.Entry
		want bool
	}{
		{"fresh paste", models.Entry{Kind: models.KindFile, Path: "Pasted image 1.png", ModTime: fixedNow.Add(-500 * time.Millisecond)}, true},
		{"at window edge", models.Entry{Kind: models.KindFile, Path: "Pasted image 1.png", ModTime: fixedNow.Add(-time.Second)}, true},
		{"too old", models.Entry{Kind: models.KindFile, Path: "Pasted image 1.png", ModTime: fixedNow.Add(-1001 * time.Millisecond)}, false},
		{"note", models.Entry{Kind: models.KindFile, Path: "Pasted image 1.md", ModTime: fixedNow}, false},
		{"folder", models.Entry{Kind: models.KindFolder, Path: "Pasted image 1.png", ModTime: fixedNow}, false},
		{"other name", models.Entry{Kind: models.KindFile, Path: "Docs/photo.png", ModTime: fixedNow}, false},
		{"not an image", models.Entry{Kind: models.KindFile, Path: "Pasted image 1.pdf", ModTime: fixedNow}, false},
		{"upper ext", models.Entry{Kind: models.KindFile, Path: "Pasted image 1.PNG", ModTime: fixedNow}, true},
	}
	for _, tc := range cases {
		if got := h.ShouldCapture(tc.e); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestHandleCreateMarkdown(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Docs/Design.md", "intro\n![[Pasted image 1.png]]\noutro")
	f.write(t, "Pasted image 1.png", "png")
	if err := f.ws.SetActive("Docs/Design.md"); err != nil {
		t.Fatal(err)
	}

	res, err := f.h.HandleCreate(context.Background(), models.File("Pasted image 1.png"))
	if err != nil {
		t.Fatal(err)
	}
	wantDest := "Docs/Design/IMG-" + stamp + ".png"
	if res.Dest != wantDest || !res.LinkUpdated || res.Err != nil {
		t.Fatalf("result = %+v", res)
	}
	if ok, _ := f.store.Exists(wantDest); !ok {
		t.Error("file not moved")
	}

	got, _ := f.store.Read("Docs/Design.md")
	text := string(got)
	newRef := "![[" + wantDest + "]]"
	if strings.Count(text, newRef) != 1 {
		t.Errorf("new reference should appear once: %q", text)
	}
	if strings.Contains(text, "![[Pasted image 1.png]]") {
		t.Errorf("old reference still present: %q", text)
	}
}

func TestHandleCreateCanvas(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Board.canvas", `{"nodes":[{"id":"a","type":"file","file":"Pasted image 1.png"}]}`)
	f.write(t, "Pasted image 1.png", "png")
	_ = f.ws.SetActive("Board.canvas")

	res, err := f.h.HandleCreate(context.Background(), models.File("Pasted image 1.png"))
	if err != nil {
		t.Fatal(err)
	}
	wantDest := "Board/IMG-" + stamp + ".png"
	if res.Dest != wantDest || !res.LinkUpdated {
		t.Fatalf("result = %+v", res)
	}
	got, _ := f.store.Read("Board.canvas")
	if !strings.Contains(string(got), `"file":"`+wantDest+`"`) {
		t.Errorf("canvas = %s", got)
	}
}

func TestHandleCreateStaleLink(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Docs/Design.md", "no reference here")
	f.write(t, "Pasted image 1.png", "png")
	_ = f.ws.SetActive("Docs/Design.md")

	res, err := f.h.HandleCreate(context.Background(), models.File("Pasted image 1.png"))
	if err != nil {
		t.Fatalf("stale link is a partial success: %v", err)
	}
	if !res.IsStale() || res.LinkUpdated {
		t.Errorf("result = %+v", res)
	}
	if ok, _ := f.store.Exists(res.Dest); !ok {
		t.Error("move should still happen")
	}
	kinds := f.notices.Kinds()
	if len(kinds) != 2 || kinds[1] != notice.KindStaleLinkWarning {
		t.Errorf("notices = %v", kinds)
	}
}

func TestHandleCreateNoActiveFile(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Pasted image 1.png", "png")

	res, err := f.h.HandleCreate(context.Background(), models.File("Pasted image 1.png"))
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(res.Err, apperr.ErrNoActiveFile) {
		t.Errorf("err = %v", res.Err)
	}
	if ok, _ := f.store.Exists("Pasted image 1.png"); !ok {
		t.Error("file must stay in place")
	}
	if kinds := f.notices.Kinds(); len(kinds) != 1 || kinds[0] != notice.KindNoActiveFile {
		t.Errorf("notices = %v", kinds)
	}
}

func TestHandleCreateAvoidsCollision(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Docs/Design.md", "![[Pasted image 1.png]]")
	f.write(t, "Docs/Design/IMG-"+stamp+".png", "existing")
	f.write(t, "Pasted image 1.png", "png")
	_ = f.ws.SetActive("Docs/Design.md")

	res, err := f.h.HandleCreate(context.Background(), models.File("Pasted image 1.png"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Dest != "Docs/Design/IMG-"+stamp+" 1.png" {
		t.Errorf("dest = %q", res.Dest)
	}
	if got, _ := f.store.Read("Docs/Design/IMG-" + stamp + ".png"); string(got) != "existing" {
		t.Error("existing attachment overwritten")
	}
}

func TestHandleDropEditor(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Docs/Design.md", "")
	_ = f.ws.SetActive("Docs/Design.md")

	results, err := f.h.HandleDrop(context.Background(), DropEditor, []DroppedFile{
		{Name: "shot.png", Data: pngData},
		{Name: "photo.jpg", Data: jpegData},
		{Name: "notes.txt", Data: []byte("plain text")},
		{Name: "", Data: pngData},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Dest != "Docs/Design/IMG-"+stamp+".png" {
		t.Errorf("png dest = %q", results[0].Dest)
	}
	if results[1].Dest != "Docs/Design/IMG-"+stamp+".jpeg" {
		t.Errorf("jpeg dest = %q", results[1].Dest)
	}
	if results[0].NewRef != "![[Docs/Design/IMG-"+stamp+".png]]" {
		t.Errorf("ref = %q", results[0].NewRef)
	}
	if got := f.cfg.AttachmentFolder(); got != "./" {
		t.Errorf("ambient folder not restored: %q", got)
	}
}

func TestHandleDropSourceMismatch(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Docs/Design.md", "")
	f.write(t, "Board.canvas", "{}")

	_ = f.ws.SetActive("Docs/Design.md")
	if res, _ := f.h.HandleDrop(context.Background(), DropArea, []DroppedFile{{Name: "a.png", Data: pngData}}); len(res) != 0 {
		t.Errorf("area drop on markdown handled: %+v", res)
	}
	_ = f.ws.SetActive("Board.canvas")
	if res, _ := f.h.HandleDrop(context.Background(), DropEditor, []DroppedFile{{Name: "a.png", Data: pngData}}); len(res) != 0 {
		t.Errorf("editor drop on canvas handled: %+v", res)
	}
	res, err := f.h.HandleDrop(context.Background(), DropArea, []DroppedFile{{Name: "a.png", Data: pngData}})
	if err != nil || len(res) != 1 || res[0].Dest != "Board/IMG-"+stamp+".png" {
		t.Errorf("area drop on canvas = %+v, %v", res, err)
	}
}

type failingWrite struct {
	storage.Provider
}

func (failingWrite) Write(string, []byte) error { return errors.New("read-only vault") }

func TestHandleDropRestoresFolderOnError(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Docs/Design.md", "")
	_ = f.ws.SetActive("Docs/Design.md")
	h := f.handler(failingWrite{f.store})

	_, err := h.HandleDrop(context.Background(), DropEditor, []DroppedFile{{Name: "a.png", Data: pngData}})
	if !errors.Is(err, apperr.ErrStorageFailure) {
		t.Fatalf("err = %v", err)
	}
	if got := f.cfg.AttachmentFolder(); got != "./" {
		t.Errorf("ambient folder not restored after failure: %q", got)
	}
}

func TestImageExtension(t *testing.T) {
	if ext, ok := ImageExtension(pngData); !ok || ext != "png" {
		t.Errorf("png = %q, %v", ext, ok)
	}
	if ext, ok := ImageExtension(jpegData); !ok || ext != "jpeg" {
		t.Errorf("jpeg = %q, %v", ext, ok)
	}
	if _, ok := ImageExtension([]byte("GIF89a")); ok {
		t.Error("gif accepted")
	}
}
