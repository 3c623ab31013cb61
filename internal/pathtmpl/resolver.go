// Package pathtmpl derives attachment directories and file names from a
// note's identity and the templated attachment settings. It performs no I/O.
package pathtmpl

import (
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/starford/attachsync/internal/models"
)

// Template variables.
const (
	VarNoteName = "${notename}"
	VarNotePath = "${notepath}"
	VarDate     = "${date}"
)

var dateVarRe = regexp.MustCompile(`\$\{date:([^}]*)\}`)

// Settings is the templated attachment configuration.
type Settings struct {
	Mode models.RootMode `yaml:"root_mode" json:"root_mode"`
	// Root is the base directory for RootInFolder and RootNextToNote.
	Root string `yaml:"root_path" json:"root_path"`
	// Path is the attachment directory template.
	Path string `yaml:"path_template" json:"path_template"`
	// Name is the attachment file name template, without extension.
	Name string `yaml:"name_template" json:"name_template"`
	// DateFormat is the moment-style format used for ${date}.
	DateFormat string `yaml:"date_format" json:"date_format"`
}

// HostFolder exposes the host's own attachment folder setting.
type HostFolder interface {
	AttachmentFolder() string
}

// Resolver computes attachment locations. It is safe for concurrent use as
// long as the HostFolder is.
type Resolver struct {
	settings Settings
	host     HostFolder
}

// NewResolver returns a Resolver for s. host is only consulted in RootHostDefault mode
// and may be nil otherwise.
func NewResolver(s Settings, host HostFolder) *Resolver {
	return &Resolver{settings: s, host: host}
}

// Settings returns the settings the resolver was built with.
func (r *Resolver) Settings() Settings { return r.settings }

// CouplesToNote reports whether the directory template references both the
// note name and the note path. Only then can a rename move the attachment directory.
func (r *Resolver) CouplesToNote() bool {
	return strings.Contains(r.settings.Path, VarNoteName) &&
		strings.Contains(r.settings.Path, VarNotePath)
}

// AttachmentDir returns the normalized attachment directory for note.
func (r *Resolver) AttachmentDir(note models.NoteIdentity) string {
	root := r.RootDir(note.Folder)
	sub := strings.NewReplacer(
		VarNotePath, note.Folder,
		VarNoteName, note.Name,
	).Replace(r.settings.Path)
	return Normalize(path.Join(root, sub))
}

// RootDir returns the attachment root for a note stored in noteFolder.
func (r *Resolver) RootDir(noteFolder string) string {
	switch r.settings.Mode {
	case models.RootInFolder:
		return Normalize(r.settings.Root)
	case models.RootNextToNote:
		return Normalize(path.Join(noteFolder, strings.TrimPrefix(r.settings.Root, "./")))
	default:
		var folder string
		if r.host != nil {
			folder = r.host.AttachmentFolder()
		}
		return HostRoot(folder, noteFolder)
	}
}

// HostRoot classifies a host attachment folder value relative to noteFolder:
// "/" is the vault root, "./" the note folder, "./sub" a subfolder of it and
// anything else a literal vault path.
func HostRoot(folder, noteFolder string) string {
	switch {
	case folder == "" || folder == "/":
		return "/"
	case folder == "./":
		return Normalize(noteFolder)
	case strings.HasPrefix(folder, "./"):
		return Normalize(path.Join(noteFolder, strings.TrimPrefix(folder, "./")))
	default:
		return Normalize(folder)
	}
}

// FileName renders the attachment name template for noteName at t.
// The extension is not included.
func (r *Resolver) FileName(noteName string, t time.Time) string {
	name := dateVarRe.ReplaceAllStringFunc(r.settings.Name, func(m string) string {
		return FormatMoment(dateVarRe.FindStringSubmatch(m)[1], t)
	})
	return strings.NewReplacer(
		VarDate, FormatMoment(r.settings.DateFormat, t),
		VarNoteName, noteName,
	).Replace(name)
}

// Normalize turns p into a clean vault path: "/" separators, no redundant
// or trailing separators, no "." or leading ".." elements. The vault root is "/".
func Normalize(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.ReplaceAll(p, "\u00a0", " ")
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "/"
	}
	return p
}
