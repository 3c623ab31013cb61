package models

// NoteIdentity is the name/folder pair attachment paths are derived from.
// Folder is "" for notes at the vault root.
type NoteIdentity struct {
	Name   string `json:"name"`
	Folder string `json:"folder"`
}

// NoteFromPath derives the identity of the note stored at p.
func NoteFromPath(p string) NoteIdentity {
	return NoteIdentity{Name: StripExt(p), Folder: ParentDir(p)}
}

// NoteFromEntry derives the identity of the note behind e.
func NoteFromEntry(e Entry) NoteIdentity {
	return NoteIdentity{Name: e.Basename(), Folder: e.Parent()}
}

// RootMode selects how the attachment root directory is derived.
type RootMode string

const (
	// RootInFolder keeps attachments below a fixed root, independent of the note.
	RootInFolder RootMode = "in_folder"
	// RootNextToNote keeps attachments below a root relative to the note folder.
	RootNextToNote RootMode = "next_to_note"
	// RootHostDefault follows the host's own attachment folder setting.
	RootHostDefault RootMode = "host_default"
)

// RenameKind classifies a rename event.
type RenameKind int

const (
	// FileRename means the entry's own basename changed.
	FileRename RenameKind = iota + 1
	// FolderRename means an ancestor folder changed and the basename did not.
	FolderRename
)

// String implements fmt.Stringer.
func (k RenameKind) String() string {
	switch k {
	case FileRename:
		return "file"
	case FolderRename:
		return "folder"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k RenameKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// RenameEvent reports that Entry now lives at Entry.Path and used to live at OldPath.
type RenameEvent struct {
	Entry   Entry  `json:"entry"`
	OldPath string `json:"old_path"`
}

// Kind compares basenames (extension stripped) of the old and new path.
// A move into another folder keeps the basename and is therefore a FolderRename.
func (ev RenameEvent) Kind() RenameKind {
	if StripExt(ev.OldPath) == StripExt(ev.Entry.Path) {
		return FolderRename
	}
	return FileRename
}

// StripResult holds the minimal source and destination fragments of a rename.
type StripResult struct {
	Source string `json:"source"`
	Dest   string `json:"dest"`
}
