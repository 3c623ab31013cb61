package host

import (
	"fmt"
	"strconv"

	"github.com/starford/attachsync/internal/models"
	"github.com/starford/attachsync/internal/pathtmpl"
	"github.com/starford/attachsync/internal/storage"
)

// maxNameAttempts bounds the search for a free attachment name.
const maxNameAttempts = 10000

// Saver stores new attachments where the host's ambient folder setting says.
type Saver struct {
	store storage.Provider
	cfg   Config
}

// NewSaver returns a Saver writing through store and reading the ambient folder from cfg.
func NewSaver(store storage.Provider, cfg Config) *Saver {
	return &Saver{store: store, cfg: cfg}
}

// Save writes data as name.ext into the ambient attachment folder of the note
// at sourcePath and returns the vault path it used. An existing file is
// never replaced; "name 1.ext", "name 2.ext" and so on are tried instead.
func (s *Saver) Save(name, ext string, data []byte, sourcePath string) (string, error) {
	dir := pathtmpl.HostRoot(s.cfg.AttachmentFolder(), models.ParentDir(sourcePath))
	if err := s.store.Mkdir(dir); err != nil {
		return "", fmt.Errorf("host: save: %w", err)
	}
	target, err := s.AvailablePath(dir, name, ext)
	if err != nil {
		return "", err
	}
	if err := s.store.Write(target, data); err != nil {
		return "", fmt.Errorf("host: save: %w", err)
	}
	return target, nil
}

// AvailablePath returns the first of dir/name.ext, dir/name 1.ext, ... that
// does not exist yet.
func (s *Saver) AvailablePath(dir, name, ext string) (string, error) {
	for i := 0; i < maxNameAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = name + " " + strconv.Itoa(i)
		}
		if ext != "" {
			candidate += "." + ext
		}
		p := JoinPath(dir, candidate)
		ok, err := s.store.Exists(p)
		if err != nil {
			return "", fmt.Errorf("host: save: %w", err)
		}
		if !ok {
			return p, nil
		}
	}
	return "", fmt.Errorf("host: save: no free name for %s.%s in %s", name, ext, dir)
}

// JoinPath joins a normalized vault folder and a file name. The root folder "/" adds no prefix.
func JoinPath(dir, name string) string {
	if dir == "" || dir == "/" {
		return name
	}
	return dir + "/" + name
}
