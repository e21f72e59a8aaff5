package reminder

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the reminder storage surface the scheduler depends on.
type Store interface {
	Add(ctx context.Context, r *Reminder) error
	Get(ctx context.Context, id int64) (*Reminder, error)
	ListOpen(ctx context.Context) ([]*Reminder, error)
	UpdateNudge(ctx context.Context, id int64, lastNudgeAt time.Time, nudgeCount int) error
	MarkDone(ctx context.Context, id int64, doneAt time.Time) error
	Close() error
}

type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the reminder database at path.
// Use ":memory:" for tests.
func NewSQLiteStore(path string) (Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening reminder db: %w", err)
	}

	s := &sqliteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating reminder db: %w", err)
	}
	return s, nil
}

func (s *sqliteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reminders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text TEXT NOT NULL,
		due_at TIMESTAMP NOT NULL,
		priority TEXT NOT NULL DEFAULT 'medium',
		project_context TEXT,
		ai_suggested_text TEXT,
		nudge_count INTEGER NOT NULL DEFAULT 0,
		last_nudge_at TIMESTAMP,
		done_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reminders_open
		ON reminders(due_at) WHERE done_at IS NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) Add(ctx context.Context, r *Reminder) error {
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (text, due_at, priority, project_context, ai_suggested_text, nudge_count, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		r.Text, r.DueAt.UTC(), string(r.Priority), nullString(r.ProjectContext), nullString(r.AISuggestedText), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting reminder: %w", err)
	}
	r.ID, err = res.LastInsertId()
	return err
}

func (s *sqliteStore) Get(ctx context.Context, id int64) (*Reminder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, text, due_at, priority, project_context, ai_suggested_text, nudge_count, last_nudge_at, done_at, created_at
		FROM reminders WHERE id = ?`, id)

	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// ListOpen returns every reminder with done_at unset, oldest due first.
// State is derived from these rows each tick; nothing is cached in memory.
func (s *sqliteStore) ListOpen(ctx context.Context) ([]*Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, due_at, priority, project_context, ai_suggested_text, nudge_count, last_nudge_at, done_at, created_at
		FROM reminders WHERE done_at IS NULL ORDER BY due_at`)
	if err != nil {
		return nil, fmt.Errorf("listing open reminders: %w", err)
	}
	defer rows.Close()

	var out []*Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateNudge writes last_nudge_at and nudge_count in one statement so a
// crash cannot leave them out of step.
func (s *sqliteStore) UpdateNudge(ctx context.Context, id int64, lastNudgeAt time.Time, nudgeCount int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET last_nudge_at = ?, nudge_count = ? WHERE id = ? AND done_at IS NULL`,
		lastNudgeAt.UTC(), nudgeCount, id,
	)
	if err != nil {
		return fmt.Errorf("updating nudge state for reminder %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("reminder %d not found or already done", id)
	}
	return nil
}

func (s *sqliteStore) MarkDone(ctx context.Context, id int64, doneAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET done_at = ? WHERE id = ? AND done_at IS NULL`,
		doneAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("marking reminder %d done: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*Reminder, error) {
	var (
		r           Reminder
		priority    string
		project     sql.NullString
		suggested   sql.NullString
		lastNudgeAt sql.NullTime
		doneAt      sql.NullTime
	)
	err := row.Scan(&r.ID, &r.Text, &r.DueAt, &priority, &project, &suggested, &r.NudgeCount, &lastNudgeAt, &doneAt, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.Priority = Priority(priority)
	r.ProjectContext = project.String
	r.AISuggestedText = suggested.String
	if lastNudgeAt.Valid {
		t := lastNudgeAt.Time.UTC()
		r.LastNudgeAt = &t
	}
	if doneAt.Valid {
		t := doneAt.Time.UTC()
		r.DoneAt = &t
	}
	r.DueAt = r.DueAt.UTC()
	return &r, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
