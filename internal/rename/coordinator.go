// Package rename keeps a note's attachment directory in step with the note
// when the note is renamed or moved.
package rename

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/attachsync/internal/apperr"
	"github.com/starford/attachsync/internal/linkrewrite"
	"github.com/starford/attachsync/internal/models"
	"github.com/starford/attachsync/internal/notice"
	"github.com/starford/attachsync/internal/pathstrip"
	"github.com/starford/attachsync/internal/pathtmpl"
	"github.com/starford/attachsync/internal/storage"
)

// State is a step of the rename synchronization.
type State int

const (
	Idle State = iota
	Validating
	Resolving
	CheckingCollision
	Moving
	Done
	Skipped
	Failed
)

var stateNames = [...]string{
	Idle:              "idle",
	Validating:        "validating",
	Resolving:         "resolving",
	CheckingCollision: "checking_collision",
	Moving:            "moving",
	Done:              "done",
	Skipped:           "skipped",
	Failed:            "failed",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON and logs.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Outcome is the terminal result of handling one rename event.
type Outcome struct {
	State         State              `json:"state"`
	Kind          models.RenameKind  `json:"kind"`
	OldAttachPath string             `json:"old_attach_path,omitempty"`
	NewAttachPath string             `json:"new_attach_path,omitempty"`
	Moved         models.StripResult `json:"moved"`
	LinksUpdated  int                `json:"links_updated"`
	Reason        string             `json:"reason,omitempty"`
	Err           error              `json:"-"`
}

// Options toggles optional behaviour of the coordinator.
type Options struct {
	// AutoRenameFolder enables relocation at all.
	AutoRenameFolder bool
	// UpdateLinks rewrites references in the renamed note after a move.
	UpdateLinks bool
}

// Coordinator runs the rename state machine. It is not safe for concurrent
// use; callers serialize events.
type Coordinator struct {
	store    storage.Provider
	resolver *pathtmpl.Resolver
	notifier notice.Notifier
	opts     Options
	logger   *slog.Logger
}

// New creates a Coordinator.
func New(store storage.Provider, resolver *pathtmpl.Resolver, notifier notice.Notifier, opts Options, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notice.Multi{}
	}
	return &Coordinator{store: store, resolver: resolver, notifier: notifier, opts: opts, logger: logger}
}

// Handle processes a rename event to completion. Cancelling ctx does not
// interrupt an event already being handled. Only storage failures are
// returned as errors; skips and other failures are reported on the outcome.
func (c *Coordinator) Handle(_ context.Context, ev models.RenameEvent) (Outcome, error) {
	out := Outcome{State: Validating, Kind: ev.Kind()}

	if reason, ok := c.validate(ev); !ok {
		return c.skip(out, reason), nil
	}

	out.State = Resolving
	out.OldAttachPath = c.resolver.AttachmentDir(models.NoteFromPath(ev.OldPath))
	out.NewAttachPath = c.resolver.AttachmentDir(models.NoteFromEntry(ev.Entry))
	if out.OldAttachPath == "/" {
		return c.skip(out, "attachment directory is the vault root"), nil
	}
	if out.OldAttachPath == out.NewAttachPath {
		return c.skip(out, "attachment directory unchanged"), nil
	}
	exists, err := c.store.Exists(out.OldAttachPath)
	if err != nil {
		return c.storageFailure(out, err)
	}
	if !exists {
		return c.skip(out, "no attachment directory"), nil
	}

	moved, ok := pathstrip.Strip(out.OldAttachPath, out.NewAttachPath)
	if !ok {
		out.State = Failed
		out.Err = fmt.Errorf("rename: %s -> %s: %w", out.OldAttachPath, out.NewAttachPath, apperr.ErrReductionFailure)
		c.notifier.Notify(notice.New(notice.LevelError, notice.KindReductionFailure,
			fmt.Sprintf("Error rename path %s to %s", out.OldAttachPath, out.NewAttachPath)))
		c.logger.Warn("rename: reduction failed",
			slog.String("old", out.OldAttachPath), slog.String("new", out.NewAttachPath))
		return out, nil
	}
	out.Moved = moved

	out.State = CheckingCollision
	taken, err := c.store.Exists(moved.Dest)
	if err != nil {
		return c.storageFailure(out, err)
	}
	if taken {
		msg := "Folder already exists: " + moved.Dest
		if out.Kind == models.FileRename {
			msg = "Same file name exists: " + moved.Dest
		}
		out.State = Failed
		out.Err = fmt.Errorf("rename: %s: %w", moved.Dest, apperr.ErrDestinationCollision)
		c.notifier.Notify(notice.New(notice.LevelError, notice.KindDestinationCollision, msg))
		c.logger.Warn("rename: destination exists", slog.String("dest", moved.Dest))
		return out, nil
	}

	out.State = Moving
	found, err := c.moveFirst(moved)
	if err != nil {
		return c.storageFailure(out, err)
	}
	if !found {
		return c.skip(out, "reduced source not in vault tree"), nil
	}

	if c.opts.UpdateLinks {
		out.LinksUpdated = c.updateLinks(ev, moved)
	}

	out.State = Done
	c.notifier.Notify(notice.New(notice.LevelInfo, notice.KindMoved,
		fmt.Sprintf("moved %s to %s", moved.Source, moved.Dest)))
	c.logger.Info("rename: attachments moved",
		slog.String("kind", out.Kind.String()),
		slog.String("source", moved.Source),
		slog.String("dest", moved.Dest),
		slog.Int("links", out.LinksUpdated))
	return out, nil
}

func (c *Coordinator) validate(ev models.RenameEvent) (string, bool) {
	switch {
	case !c.opts.AutoRenameFolder:
		return "auto rename disabled", false
	case !c.resolver.CouplesToNote():
		return "path template does not reference the note", false
	case ev.Entry.IsFolder():
		return "folder entry", false
	case !models.IsNoteExt(models.Ext(ev.OldPath)):
		return "not a note", false
	}
	return "", true
}

// moveFirst walks the vault depth-first from the root and moves the first
// entry whose path equals the reduced source.
func (c *Coordinator) moveFirst(moved models.StripResult) (bool, error) {
	found := false
	var moveErr error
	err := c.store.Walk("", func(e models.Entry) error {
		if e.Path != moved.Source {
			return nil
		}
		found = true
		moveErr = c.store.Move(moved.Source, moved.Dest)
		return storage.ErrStopWalk
	})
	if err != nil {
		return found, err
	}
	return found, moveErr
}

// updateLinks rewrites references in the renamed note that point below the
// moved fragment. Failures are reported and never undo the move.
func (c *Coordinator) updateLinks(ev models.RenameEvent, moved models.StripResult) int {
	notePath := ev.Entry.Path
	data, err := c.store.Read(notePath)
	if err != nil {
		c.staleLinks(notePath, err)
		return 0
	}
	text, n := linkrewrite.RewritePrefix(string(data), linkrewrite.PrefixMove{
		OldPrefix: moved.Source,
		NewPrefix: moved.Dest,
		OldDir:    models.ParentDir(ev.OldPath),
		NewDir:    ev.Entry.Parent(),
	})
	if n == 0 {
		return 0
	}
	if err := c.store.Write(notePath, []byte(text)); err != nil {
		c.staleLinks(notePath, err)
		return 0
	}
	return n
}

func (c *Coordinator) staleLinks(notePath string, err error) {
	c.notifier.Notify(notice.New(notice.LevelWarning, notice.KindStaleLinkWarning,
		"Failed to update links in "+notePath))
	c.logger.Warn("rename: link update failed", slog.String("note", notePath), slog.String("error", err.Error()))
}

func (c *Coordinator) skip(out Outcome, reason string) Outcome {
	out.State = Skipped
	out.Reason = reason
	out.Err = apperr.ErrSkipped
	c.logger.Debug("rename: skipped", slog.String("reason", reason))
	return out
}

func (c *Coordinator) storageFailure(out Outcome, err error) (Outcome, error) {
	out.State = Failed
	out.Err = fmt.Errorf("rename: %w: %w", apperr.ErrStorageFailure, err)
	msg := "Failed to move attachments"
	if out.Moved.Source != "" {
		msg = fmt.Sprintf("failed to move %s to %s", out.Moved.Source, out.Moved.Dest)
	}
	c.notifier.Notify(notice.New(notice.LevelError, notice.KindStorageFailure, msg))
	c.logger.Error("rename: storage failure", slog.String("error", err.Error()))
	return out, out.Err
}

// IsSkipped reports whether o ended without any effect by design.
func (o Outcome) IsSkipped() bool { return errors.Is(o.Err, apperr.ErrSkipped) }
