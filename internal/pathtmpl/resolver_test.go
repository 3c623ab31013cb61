package pathtmpl

import (
	"path"
	"testing"
	"time"

	"github.com/starford/attachsync/internal/models"
)

type staticHost string

func (h staticHost) AttachmentFolder() string { return string(h) }

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"":                 "/",
		"/":                "/",
		".":                "/",
		"./":               "/",
		"a//b/":            "a/b",
		"/a/b":             "a/b",
		`a\b\c`:            "a/b/c",
		"a/./b/../c":       "a/c",
		"../../escape":     "escape",
		"Docs/\u00a0x.png": "Docs/ x.png",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAttachmentDir_NoPlaceholders(t *testing.T) {
	notes := []models.NoteIdentity{
		{Name: "Design", Folder: "Docs"},
		{Name: "Root", Folder: ""},
		{Name: "Deep", Folder: "a/b/c"},
	}
	for _, root := range []string{"attachments", "/assets/", "x/./y"} {
		r := NewResolver(Settings{Mode: models.RootInFolder, Root: root, Path: "static/dir"}, nil)
		for _, n := range notes {
			want := Normalize(path.Join(Normalize(root), "static/dir"))
			if got := r.AttachmentDir(n); got != want {
				t.Errorf("root %q note %+v: got %q, want %q", root, n, got, want)
			}
		}
	}
}

func TestAttachmentDir_Idempotent(t *testing.T) {
	r := NewResolver(Settings{Mode: models.RootHostDefault, Path: "${notepath}/${notename}"}, staticHost("./assets"))
	n := models.NoteIdentity{Name: "Design", Folder: "Docs"}
	first := r.AttachmentDir(n)
	second := r.AttachmentDir(n)
	if first != second {
		t.Errorf("not idempotent: %q vs %q", first, second)
	}
	if first != "Docs/assets/Docs/Design" {
		t.Errorf("got %q", first)
	}
}

func TestAttachmentDir_NextToNote(t *testing.T) {
	r := NewResolver(Settings{Mode: models.RootNextToNote, Root: "./attachments"}, nil)
	got := r.AttachmentDir(models.NoteIdentity{Name: "Plan", Folder: "Projects/Alpha"})
	if got != "Projects/Alpha/attachments" {
		t.Errorf("got %q, want Projects/Alpha/attachments", got)
	}
}

func TestAttachmentDir_PathTemplate(t *testing.T) {
	r := NewResolver(Settings{Mode: models.RootHostDefault, Path: "${notepath}/${notename}-assets"}, staticHost("/"))
	got := r.AttachmentDir(models.NoteIdentity{Name: "Design", Folder: "Docs"})
	if got != "Docs/Design-assets" {
		t.Errorf("got %q, want Docs/Design-assets", got)
	}
}

func TestAttachmentDir_SubstitutionOrderIndependent(t *testing.T) {
	// The note name looks like the other variable; it must not be expanded again.
	r := NewResolver(Settings{Mode: models.RootInFolder, Root: "att", Path: "${notename}/${notepath}"}, nil)
	got := r.AttachmentDir(models.NoteIdentity{Name: "${notepath}", Folder: "Docs"})
	if got != "att/${notepath}/Docs" {
		t.Errorf("got %q", got)
	}
}

func TestAttachmentDir_MalformedTemplatePassesThrough(t *testing.T) {
	r := NewResolver(Settings{Mode: models.RootInFolder, Root: "att", Path: "${notename"}, nil)
	got := r.AttachmentDir(models.NoteIdentity{Name: "Design", Folder: "Docs"})
	if got != "att/${notename" {
		t.Errorf("got %q", got)
	}
}

func TestRootDir_HostDefault(t *testing.T) {
	cases := []struct {
		host string
		want string
	}{
		{"/", "/"},
		{"", "/"},
		{"./", "Docs/Sub"},
		{"./media", "Docs/Sub/media"},
		{"Assets/img", "Assets/img"},
	}
	for _, c := range cases {
		r := NewResolver(Settings{Mode: models.RootHostDefault}, staticHost(c.host))
		if got := r.RootDir("Docs/Sub"); got != c.want {
			t.Errorf("host %q: got %q, want %q", c.host, got, c.want)
		}
	}
}

func TestRootDir_RootNote(t *testing.T) {
	r := NewResolver(Settings{Mode: models.RootNextToNote, Root: "./attachments", Path: "${notepath}/${notename}"}, nil)
	got := r.AttachmentDir(models.NoteIdentity{Name: "Index", Folder: ""})
	if got != "attachments/Index" {
		t.Errorf("got %q", got)
	}
}

func TestCouplesToNote(t *testing.T) {
	cases := map[string]bool{
		"${notepath}/${notename}":        true,
		"${notename}/${notepath}/assets": true,
		"${notename}":                    false,
		"${notepath}/assets":             false,
		"":                               false,
	}
	for tmpl, want := range cases {
		r := NewResolver(Settings{Path: tmpl}, nil)
		if got := r.CouplesToNote(); got != want {
			t.Errorf("CouplesToNote(%q) = %v, want %v", tmpl, got, want)
		}
	}
}

func TestFileName(t *testing.T) {
	at := time.Date(2024, time.March, 5, 14, 7, 9, 42*int(time.Millisecond), time.UTC)
	cases := []struct {
		tmpl string
		want string
	}{
		{"IMG-${date}", "IMG-20240305140709042"},
		{"${notename}-${date:YYYY-MM-DD}", "Design-2024-03-05"},
		{"${notename}", "Design"},
		{"shot ${date:HHmm} ${date:[at] h A}", "shot 1407 at 2 PM"},
	}
	for _, c := range cases {
		r := NewResolver(Settings{Name: c.tmpl, DateFormat: "YYYYMMDDHHmmssSSS"}, nil)
		if got := r.FileName("Design", at); got != c.want {
			t.Errorf("FileName(%q) = %q, want %q", c.tmpl, got, c.want)
		}
	}
}
