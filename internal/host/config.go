// Package host provides the collaborators the attachment engine consumes:
// the ambient attachment folder setting, the active document, reference
// generation and attachment saving.
package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// AttachmentFolderKey is the host setting holding the default attachment location.
const AttachmentFolderKey = "attachmentFolderPath"

// Config is the narrow accessor for the host's ambient attachment folder.
// Nothing outside this package reads host settings directly.
type Config interface {
	AttachmentFolder() string
	SetAttachmentFolder(folder string)
}

// AppConfig holds the host's raw application settings as loaded from
// .obsidian/app.json. Values are untyped on purpose; only the accessors
// below interpret them.
type AppConfig struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewAppConfig returns an AppConfig with the given raw values.
func NewAppConfig(values map[string]any) *AppConfig {
	if values == nil {
		values = map[string]any{}
	}
	return &AppConfig{values: values}
}

// LoadAppConfig reads <vault>/.obsidian/app.json. A missing file yields an
// empty configuration.
func LoadAppConfig(vaultRoot string) (*AppConfig, error) {
	data, err := os.ReadFile(filepath.Join(vaultRoot, ".obsidian", "app.json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewAppConfig(nil), nil
		}
		return nil, fmt.Errorf("host: read app config: %w", err)
	}
	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("host: parse app config: %w", err)
	}
	return NewAppConfig(values), nil
}

// Value returns the raw value stored under key.
func (c *AppConfig) Value(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// AttachmentFolder returns the ambient attachment folder, "/" when unset or not a string.
func (c *AppConfig) AttachmentFolder() string {
	v, ok := c.Value(AttachmentFolderKey)
	if !ok {
		return "/"
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "/"
	}
	return s
}

// SetAttachmentFolder overwrites the ambient attachment folder in memory.
func (c *AppConfig) SetAttachmentFolder(folder string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[AttachmentFolderKey] = folder
}

// WithAttachmentFolder sets the ambient folder for the duration of fn and
// restores the previous value afterwards, whether fn fails, succeeds or panics.
func WithAttachmentFolder(cfg Config, folder string, fn func() error) error {
	prev := cfg.AttachmentFolder()
	cfg.SetAttachmentFolder(folder)
	defer cfg.SetAttachmentFolder(prev)
	return fn()
}

// Snapshot captures the ambient folder so it can be put back on shutdown.
type Snapshot struct {
	cfg    Config
	folder string
}

// Backup records the current ambient folder of cfg.
func Backup(cfg Config) Snapshot {
	return Snapshot{cfg: cfg, folder: cfg.AttachmentFolder()}
}

// Restore writes the recorded folder back.
func (s Snapshot) Restore() {
	if s.cfg != nil {
		s.cfg.SetAttachmentFolder(s.folder)
	}
}
