package journal

import (
	"fmt"
	"strings"
	"time"
)

// Operations recorded in the journal.
const (
	OpRename = "rename"
	OpPaste  = "paste"
	OpDrop   = "drop"
)

// Entry is one row of the relocations table.
type Entry struct {
	ID        int64     `db:"id" json:"id"`
	EventID   string    `db:"event_id" json:"event_id"`
	Operation string    `db:"operation" json:"operation"`
	Kind      string    `db:"kind" json:"kind,omitempty"`
	Note      string    `db:"note" json:"note"`
	Source    string    `db:"source" json:"source"`
	Dest      string    `db:"dest" json:"dest"`
	Outcome   string    `db:"outcome" json:"outcome"`
	Message   string    `db:"message" json:"message,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Note      string
	Operation string
	Limit     int
	Offset    int
}

// Recorder is what the engine needs from the journal.
type Recorder interface {
	Record(e Entry) error
}

// Journal is the full read/write interface.
type Journal interface {
	Recorder
	List(f Filter) ([]Entry, int, error)
	Close() error
}

var _ Journal = (*DB)(nil)

// Record appends e. CreatedAt defaults to now.
func (db *DB) Record(e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := db.conn.NamedExec(`
		INSERT INTO relocations (event_id, operation, kind, note, source, dest, outcome, message, created_at)
		VALUES (:event_id, :operation, :kind, :note, :source, :dest, :outcome, :message, :created_at)
	`, e)
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

// List returns matching entries newest first plus the total match count.
func (db *DB) List(f Filter) ([]Entry, int, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	var where []string
	var args []any
	if f.Note != "" {
		where = append(where, "note = ?")
		args = append(args, f.Note)
	}
	if f.Operation != "" {
		where = append(where, "operation = ?")
		args = append(args, f.Operation)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.Get(&total, `SELECT count(*) FROM relocations`+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("journal: count: %w", err)
	}

	var out []Entry
	err := db.conn.Select(&out, `
		SELECT id, event_id, operation, kind, note, source, dest, outcome, message, created_at
		FROM relocations`+clause+`
		ORDER BY id DESC LIMIT ? OFFSET ?
	`, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("journal: list: %w", err)
	}
	return out, total, nil
}
