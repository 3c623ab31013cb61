// Package storage defines the vault file-tree abstraction.
package storage

import (
	"errors"

	"github.com/starford/attachsync/internal/models"
)

// ErrStopWalk can be returned from a WalkFunc to end a traversal early.
// Walk itself then returns nil.
var ErrStopWalk = errors.New("storage: stop walk")

// WalkFunc is called for every entry visited by Walk.
type WalkFunc func(e models.Entry) error

// Provider is the interface for vault file-tree queries and mutations.
// All paths are vault-relative and "/"-separated; "" and "/" mean the vault root.
type Provider interface {
	// Root returns the absolute path of the vault on disk.
	Root() string
	// Exists reports whether a file or folder exists at path.
	Exists(path string) (bool, error)
	// Stat returns the entry at path.
	Stat(path string) (models.Entry, error)
	// Mkdir creates path and any missing parents.
	Mkdir(path string) error
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent folders.
	Write(path string, content []byte) error
	// Move renames a file or folder. Missing parent folders of newPath are created.
	Move(oldPath, newPath string) error
	// Walk visits root and everything below it depth-first, parents before children.
	Walk(root string, fn WalkFunc) error
}
