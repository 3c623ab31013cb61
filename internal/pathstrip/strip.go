// Package pathstrip reduces an old/new attachment path pair to the minimal
// fragments that actually have to move.
package pathstrip

import (
	"strings"

	"github.com/starford/attachsync/internal/models"
)

// Strip drops the segments old and new share at their tail and returns the
// remaining prefixes. Identical paths are returned unchanged.
//
// ok is false when the paths cannot be aligned: an empty path, or differing
// sections of unequal length (one side nested in or lifted out of the other).
func Strip(oldPath, newPath string) (res models.StripResult, ok bool) {
	if oldPath == "" || newPath == "" {
		return models.StripResult{}, false
	}
	if oldPath == newPath {
		return models.StripResult{Source: oldPath, Dest: newPath}, true
	}

	src := strings.Split(oldPath, "/")
	dst := strings.Split(newPath, "/")

	shorter := min(len(src), len(dst))

	lead := 0
	for lead < shorter && src[lead] == dst[lead] {
		lead++
	}
	tail := 0
	for tail < shorter-lead && src[len(src)-1-tail] == dst[len(dst)-1-tail] {
		tail++
	}

	srcMid := len(src) - lead - tail
	dstMid := len(dst) - lead - tail
	if srcMid == 0 || dstMid == 0 || srcMid != dstMid {
		return models.StripResult{}, false
	}

	return models.StripResult{
		Source: strings.Join(src[:len(src)-tail], "/"),
		Dest:   strings.Join(dst[:len(dst)-tail], "/"),
	}, true
}
