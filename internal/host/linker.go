package host

import (
	"github.com/starford/attachsync/internal/linkrewrite"
	"github.com/starford/attachsync/internal/models"
)

// LinkStyle selects the reference syntax.
type LinkStyle string

const (
	LinkWikilink LinkStyle = "wikilink"
	LinkMarkdown LinkStyle = "markdown"
)

// Linker produces the canonical embedded reference for a vault file as it
// should appear in the document at sourcePath.
type Linker interface {
	Reference(target, sourcePath string) string
}

// MarkdownLinker renders Obsidian-flavoured references.
type MarkdownLinker struct {
	Style LinkStyle
}

// NewLinker returns a linker for style. Unknown styles fall back to wikilinks.
func NewLinker(style LinkStyle) *MarkdownLinker {
	if style != LinkMarkdown {
		style = LinkWikilink
	}
	return &MarkdownLinker{Style: style}
}

// Reference implements Linker. Everything that is not a note is embedded.
func (l *MarkdownLinker) Reference(target, sourcePath string) string {
	embed := ""
	if !models.IsNoteExt(models.Ext(target)) {
		embed = "!"
	}
	if l.Style == LinkMarkdown {
		return embed + "[](" + linkrewrite.RelativeTarget(models.ParentDir(sourcePath), target) + ")"
	}
	return embed + "[[" + target + "]]"
}
