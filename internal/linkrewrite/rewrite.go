// Package linkrewrite updates embedded attachment references inside note
// documents after an attachment moved.
package linkrewrite

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/starford/attachsync/internal/models"
)

// ErrNoMatch means the document did not contain the reference to replace.
// The content is returned unchanged alongside it.
var ErrNoMatch = errors.New("linkrewrite: reference not found")

// ErrUnsupported is returned for documents that are neither Markdown nor canvas.
var ErrUnsupported = errors.New("linkrewrite: unsupported document type")

// Replacement describes one moved attachment. OldRef/NewRef are the
// references as rendered by the linker; OldPath/NewPath are vault paths.
type Replacement struct {
	OldRef  string
	NewRef  string
	OldPath string
	NewPath string
}

// Rewrite applies r to content according to the document extension ext.
func Rewrite(ext, content string, r Replacement) (string, error) {
	switch ext {
	case models.ExtMarkdown:
		return Markdown(content, r.OldRef, r.NewRef)
	case models.ExtCanvas:
		return Canvas(content, r.OldPath, r.NewPath)
	default:
		return content, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// Markdown replaces the first literal occurrence of oldRef with newRef.
func Markdown(content, oldRef, newRef string) (string, error) {
	if oldRef == "" {
		return content, ErrNoMatch
	}
	i := strings.Index(content, oldRef)
	if i < 0 {
		return content, ErrNoMatch
	}
	return content[:i] + newRef + content[i+len(oldRef):], nil
}

// Canvas replaces the first "file" property whose value is exactly oldPath.
func Canvas(content, oldPath, newPath string) (string, error) {
	re, err := regexp.Compile(`("file"\s*:\s*")` + regexp.QuoteMeta(jsonEscape(oldPath)) + `(")`)
	if err != nil {
		return content, fmt.Errorf("linkrewrite: canvas pattern: %w", err)
	}
	loc := re.FindStringSubmatchIndex(content)
	if loc == nil {
		return content, ErrNoMatch
	}
	// loc[3] ends the key group, loc[4] starts the closing quote.
	return content[:loc[3]] + jsonEscape(newPath) + content[loc[4]:], nil
}

func jsonEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

var (
	wikiTargetRe = regexp.MustCompile(`!?\[\[([^\]|#\n]+)`)
	mdTargetRe   = regexp.MustCompile(`!?\[[^\]\n]*\]\(([^)#\s]+)`)
)

// PrefixMove describes a moved folder (or file) fragment. OldDir and NewDir
// are the folders of the note before and after its own rename; relative
// Markdown targets are resolved against OldDir and re-relativized to NewDir.
type PrefixMove struct {
	OldPrefix string
	NewPrefix string
	OldDir    string
	NewDir    string
}

// RewritePrefix rewrites every wikilink and Markdown link target that lies
// under m.OldPrefix so it points below m.NewPrefix instead. Inline code spans
// and fenced code blocks are left untouched. It returns the new content and
// the number of rewritten targets.
func RewritePrefix(content string, m PrefixMove) (string, int) {
	if m.OldPrefix == "" || (m.OldPrefix == m.NewPrefix && m.OldDir == m.NewDir) {
		return content, 0
	}
	count := 0
	wiki := func(target string) (string, bool) {
		rest, ok := under(target, m.OldPrefix)
		if !ok {
			return target, false
		}
		return m.NewPrefix + rest, true
	}
	md := func(target string) (string, bool) {
		decoded, err := url.PathUnescape(target)
		if err != nil || strings.Contains(decoded, "://") {
			return target, false
		}
		var vaultPath string
		if strings.HasPrefix(decoded, "/") {
			vaultPath = strings.TrimPrefix(path.Clean(decoded), "/")
		} else {
			vaultPath = path.Join(m.OldDir, decoded)
		}
		rest, ok := under(vaultPath, m.OldPrefix)
		if !ok {
			return target, false
		}
		return RelativeTarget(m.NewDir, m.NewPrefix+rest), true
	}

	lines := strings.Split(content, "\n")
	inFence := false
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		lines[i] = mapOutsideInlineCode(line, func(seg string) string {
			var n int
			seg, n = replaceTargets(seg, wikiTargetRe, wiki)
			count += n
			seg, n = replaceTargets(seg, mdTargetRe, md)
			count += n
			return seg
		})
	}
	return strings.Join(lines, "\n"), count
}

// under reports whether p equals prefix or lies below it and returns the remainder.
func under(p, prefix string) (string, bool) {
	if p == prefix {
		return "", true
	}
	if strings.HasPrefix(p, prefix+"/") {
		return p[len(prefix):], true
	}
	return "", false
}

// replaceTargets rewrites capture group 1 of every match of re in s.
func replaceTargets(s string, re *regexp.Regexp, fn func(string) (string, bool)) (string, int) {
	matches := re.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s, 0
	}
	var b strings.Builder
	last, n := 0, 0
	for _, m := range matches {
		start, end := m[2], m[3]
		repl, ok := fn(s[start:end])
		if !ok {
			continue
		}
		b.WriteString(s[last:start])
		b.WriteString(repl)
		last = end
		n++
	}
	b.WriteString(s[last:])
	return b.String(), n
}

// mapOutsideInlineCode applies fn to the parts of line that are outside
// backtick-delimited code spans. An unterminated span runs to end of line.
func mapOutsideInlineCode(line string, fn func(string) string) string {
	var b strings.Builder
	for {
		open := strings.IndexByte(line, '`')
		if open < 0 {
			b.WriteString(fn(line))
			return b.String()
		}
		b.WriteString(fn(line[:open]))
		end := strings.IndexByte(line[open+1:], '`')
		if end < 0 {
			b.WriteString(line[open:])
			return b.String()
		}
		b.WriteString(line[open : open+1+end+1])
		line = line[open+1+end+1:]
	}
}

// RelativeTarget returns target relative to the folder fromDir, percent-encoded
// per segment for use as a Markdown link target.
func RelativeTarget(fromDir, target string) string {
	parts := strings.Split(relPath(fromDir, target), "/")
	for i, part := range parts {
		if part == ".." || part == "." {
			continue
		}
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// relPath returns the "/"-separated path of target as seen from the folder dir.
func relPath(dir, target string) string {
	dir = strings.Trim(path.Clean("/"+dir), "/")
	target = strings.Trim(path.Clean("/"+target), "/")
	if dir == "" {
		return target
	}
	from := strings.Split(dir, "/")
	to := strings.Split(target, "/")
	if target == "" {
		to = nil
	}
	common := 0
	for common < len(from) && common < len(to) && from[common] == to[common] {
		common++
	}
	parts := make([]string, 0, len(from)-common+len(to)-common)
	for range from[common:] {
		parts = append(parts, "..")
	}
	parts = append(parts, to[common:]...)
	if len(parts) == 0 {
		return "."
	}
	return strings.Join(parts, "/")
}
