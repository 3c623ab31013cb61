package models

import "testing"

func TestNoteFromPath(t *testing.T) {
	cases := []struct {
		in   string
		want NoteIdentity
	}{
		{"Docs/Design.md", NoteIdentity{Name: "Design", Folder: "Docs"}},
		{"Root.md", NoteIdentity{Name: "Root", Folder: ""}},
		{"a/b/Board.canvas", NoteIdentity{Name: "Board", Folder: "a/b"}},
		{"a/b/v1.2 notes.md", NoteIdentity{Name: "v1.2 notes", Folder: "a/b"}},
	}
	for _, c := range cases {
		if got := NoteFromPath(c.in); got != c.want {
			t.Errorf("NoteFromPath(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestEntryHelpers(t *testing.T) {
	f := File("Docs/img.png")
	if f.Name() != "img.png" || f.Basename() != "img" || f.Extension() != "png" || f.Parent() != "Docs" {
		t.Errorf("unexpected helpers for %+v", f)
	}
	if f.IsNote() {
		t.Error("png should not be a note")
	}
	if !File("Board.canvas").IsNote() {
		t.Error("canvas should be a note")
	}

	d := Folder("Docs/v1.2")
	if d.Basename() != "v1.2" || d.Extension() != "" || d.IsNote() {
		t.Errorf("unexpected folder helpers for %+v", d)
	}
}

func TestRenameEventKind(t *testing.T) {
	cases := []struct {
		name string
		ev   RenameEvent
		want RenameKind
	}{
		{"basename changed", RenameEvent{Entry: File("Docs/DesignV2.md"), OldPath: "Docs/Design.md"}, FileRename},
		{"parent renamed", RenameEvent{Entry: File("Papers/Design.md"), OldPath: "Docs/Design.md"}, FolderRename},
		{"moved deeper", RenameEvent{Entry: File("Archive/2024/Design.md"), OldPath: "Design.md"}, FolderRename},
		// A note renamed in place from "Design.md" to "Design.canvas" keeps its
		// basename and is therefore classified as a folder rename.
		{"extension only", RenameEvent{Entry: File("Docs/Design.canvas"), OldPath: "Docs/Design.md"}, FolderRename},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.ev.Kind(); got != c.want {
				t.Errorf("Kind() = %v, want %v", got, c.want)
			}
		})
	}
}
