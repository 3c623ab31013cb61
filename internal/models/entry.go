// Package models defines the domain types for attachsync.
package models

import (
	"path"
	"strings"
	"time"
)

// EntryKind tags an Entry as a file or a folder.
type EntryKind int

const (
	KindFile EntryKind = iota + 1
	KindFolder
)

// String implements fmt.Stringer.
func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	default:
		return "unknown"
	}
}

// Note extensions. Everything else in the vault is an attachment.
const (
	ExtMarkdown = "md"
	ExtCanvas   = "canvas"
)

// Entry is a vault file-tree entry. Path is vault-relative and "/"-separated.
type Entry struct {
	Kind    EntryKind `json:"kind"`
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time"`
}

// File returns a file entry for p.
func File(p string) Entry { return Entry{Kind: KindFile, Path: p} }

// Folder returns a folder entry for p.
func Folder(p string) Entry { return Entry{Kind: KindFolder, Path: p} }

// IsFile reports whether e is a file.
func (e Entry) IsFile() bool { return e.Kind == KindFile }

// IsFolder reports whether e is a folder.
func (e Entry) IsFolder() bool { return e.Kind == KindFolder }

// Name returns the last path element including its extension.
func (e Entry) Name() string { return path.Base(e.Path) }

// Basename returns the name without extension. Folders keep their full name.
func (e Entry) Basename() string {
	if e.Kind == KindFolder {
		return e.Name()
	}
	return StripExt(e.Name())
}

// Extension returns the extension without the leading dot.
func (e Entry) Extension() string {
	if e.Kind == KindFolder {
		return ""
	}
	return Ext(e.Path)
}

// Parent returns the parent folder, "" for entries at the vault root.
func (e Entry) Parent() string { return ParentDir(e.Path) }

// IsNote reports whether e is a Markdown or canvas document.
func (e Entry) IsNote() bool {
	return e.Kind == KindFile && IsNoteExt(e.Extension())
}

// IsNoteExt reports whether ext (without dot) belongs to a note document.
func IsNoteExt(ext string) bool {
	return ext == ExtMarkdown || ext == ExtCanvas
}

// Ext returns the extension of p without the leading dot.
func Ext(p string) string {
	return strings.TrimPrefix(path.Ext(p), ".")
}

// StripExt removes the extension from the last element of p.
func StripExt(p string) string {
	return strings.TrimSuffix(path.Base(p), path.Ext(p))
}

// ParentDir returns the "/"-separated parent of p, "" for the vault root.
func ParentDir(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}
