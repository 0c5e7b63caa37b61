package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"notesync/internal/notes/models"
)

// dialect holds the statements that differ between Postgres and SQLite.
type dialect struct {
	name      string
	schema    []string
	insert    string
	findByID  string
	list      string
	mergeBody string
	delete    string
	count     string
}

var postgresDialect = dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_snapshot_order ON notes (updated_at DESC, created_at DESC, id)`,
	},
	insert: `INSERT INTO notes (id, body, created_at, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
	findByID: `SELECT id, body, created_at, updated_at FROM notes WHERE id = $1`,
	list:     `SELECT id, body, created_at, updated_at FROM notes ORDER BY updated_at DESC, created_at DESC, id`,
	mergeBody: `INSERT INTO notes (id, body, created_at, updated_at) VALUES ($1, $2, $3, $3)
		ON CONFLICT (id) DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = GREATEST(notes.updated_at, EXCLUDED.updated_at)
		RETURNING id, body, created_at, updated_at`,
	delete: `DELETE FROM notes WHERE id = $1`,
	count:  `SELECT COUNT(*) FROM notes`,
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_snapshot_order ON notes (updated_at DESC, created_at DESC, id)`,
	},
	insert: `INSERT INTO notes (id, body, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
	findByID: `SELECT id, body, created_at, updated_at FROM notes WHERE id = ?`,
	list:     `SELECT id, body, created_at, updated_at FROM notes ORDER BY updated_at DESC, created_at DESC, id`,
	mergeBody: `INSERT INTO notes (id, body, created_at, updated_at) VALUES (?1, ?2, ?3, ?3)
		ON CONFLICT (id) DO UPDATE SET
			body = excluded.body,
			updated_at = MAX(notes.updated_at, excluded.updated_at)
		RETURNING id, body, created_at, updated_at`,
	delete: `DELETE FROM notes WHERE id = ?`,
	count:  `SELECT COUNT(*) FROM notes`,
}

// SQLStore persists notes through database/sql. Construct it with
// NewPostgres or NewSQLite; both apply the schema on construction.
type SQLStore struct {
	db *sql.DB
	d  dialect
}

// NewPostgres constructs a PostgreSQL-backed note store.
func NewPostgres(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	return newSQLStore(ctx, db, postgresDialect)
}

// NewSQLite constructs a SQLite-backed note store.
func NewSQLite(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	return newSQLStore(ctx, db, sqliteDialect)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("%s store: db is required", d.name)
	}
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("%s store: apply schema: %w", d.name, err)
		}
	}
	return &SQLStore{db: db, d: d}, nil
}

func (s *SQLStore) Create(ctx context.Context, note *models.Note) error {
	if note == nil {
		return fmt.Errorf("note is required")
	}
	res, err := s.db.ExecContext(ctx, s.d.insert, note.ID, note.Body, note.CreatedAt, note.UpdatedAt)
	if err != nil {
		return wrapErr("create note", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapErr("create note", err)
	}
	if affected == 0 {
		return fmt.Errorf("create note %s: %w", note.ID, ErrConflict)
	}
	return nil
}

func (s *SQLStore) FindByID(ctx context.Context, id string) (*models.Note, error) {
	n, err := scanNote(s.db.QueryRowContext(ctx, s.d.findByID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, wrapErr("find note", err)
	}
	return n, nil
}

func (s *SQLStore) List(ctx context.Context) ([]*models.Note, error) {
	rows, err := s.db.QueryContext(ctx, s.d.list)
	if err != nil {
		return nil, wrapErr("list notes", err)
	}
	defer rows.Close()

	notes := make([]*models.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, wrapErr("scan note", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list notes", err)
	}
	return notes, nil
}

func (s *SQLStore) MergeBody(ctx context.Context, id, body string, updatedAt int64) (*models.Note, error) {
	n, err := scanNote(s.db.QueryRowContext(ctx, s.d.mergeBody, id, body, updatedAt))
	if err != nil {
		return nil, wrapErr("merge note body", err)
	}
	return n, nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.d.delete, id)
	if err != nil {
		return false, wrapErr("delete note", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr("delete note", err)
	}
	return affected > 0, nil
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, s.d.count).Scan(&count); err != nil {
		return 0, wrapErr("count notes", err)
	}
	return count, nil
}

// wrapErr marks lost connections as ErrUnavailable so callers can retry.
func wrapErr(op string, err error) error {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*models.Note, error) {
	var n models.Note
	if err := row.Scan(&n.ID, &n.Body, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}
