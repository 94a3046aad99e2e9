package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/tileflow/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Definitions ---

const definitionColumns = `id, version, title, description, definition, checksum, switches, created_at`

// SaveDefinition stores rec as a new version. With Version 0 the next
// version is assigned, and saving a document identical to the latest
// version returns that version unchanged. An explicit Version must be newer
// than the latest one, otherwise the save fails with CONFLICT. rec is
// updated with the stored id, version, checksum and timestamps.
func (s *LibSQLStore) SaveDefinition(ctx context.Context, rec *DefinitionRecord) error {
	if rec == nil {
		return schema.NewError(schema.ErrCodeValidation, "definition record is nil")
	}
	if rec.ID == "" {
		rec.ID = rec.Definition.ID
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.Definition.ID = rec.ID
	if rec.Title == "" {
		rec.Title = rec.Definition.Label()
	}

	body, err := json.Marshal(rec.Definition)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}
	sum := sha256.Sum256(body)
	rec.Checksum = hex.EncodeToString(sum[:])
	rec.Switches = countSwitches(rec.Definition.Elements)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save definition: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	latest, err := scanRecord(tx.QueryRowContext(ctx,
		`SELECT `+definitionColumns+` FROM definitions WHERE id = ? ORDER BY version DESC LIMIT 1`, rec.ID))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		latest = nil
	case err != nil:
		return err
	}

	switch {
	case rec.Version == 0 && latest != nil && latest.Checksum == rec.Checksum:
		*rec = *latest
		return nil
	case rec.Version == 0:
		rec.Version = 1
		if latest != nil {
			rec.Version = latest.Version + 1
		}
	case rec.Version < 0:
		return schema.NewErrorf(schema.ErrCodeValidation, "definition version must be positive, got %d", rec.Version)
	case latest != nil && rec.Version <= latest.Version:
		return schema.NewErrorf(schema.ErrCodeConflict,
			"definition %q version %d already superseded (latest %d)", rec.ID, rec.Version, latest.Version).
			WithDetails(map[string]any{"id": rec.ID, "version": rec.Version, "latest": latest.Version})
	}

	rec.CreatedAt = timeOrNow(rec.CreatedAt)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO definitions (`+definitionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Version, nullStr(rec.Title), nullStr(rec.Description),
		string(body), rec.Checksum, rec.Switches, rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert definition: %w", err)
	}
	return tx.Commit()
}

// GetDefinition returns one version of a definition; version 0 means latest.
func (s *LibSQLStore) GetDefinition(ctx context.Context, id string, version int) (*DefinitionRecord, error) {
	var row *sql.Row
	if version <= 0 {
		row = s.db.QueryRowContext(ctx,
			`SELECT `+definitionColumns+` FROM definitions WHERE id = ? ORDER BY version DESC LIMIT 1`, id)
	} else {
		row = s.db.QueryRowContext(ctx,
			`SELECT `+definitionColumns+` FROM definitions WHERE id = ? AND version = ?`, id, version)
	}

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		if version > 0 {
			return nil, storeNotFound("definition", fmt.Sprintf("%s@v%d", id, version))
		}
		return nil, storeNotFound("definition", id)
	}
	return rec, err
}

// ListDefinitions returns definitions ordered by id then newest version first.
func (s *LibSQLStore) ListDefinitions(ctx context.Context, filter DefinitionFilter) ([]*DefinitionRecord, error) {
	var where []string
	var args []any

	if filter.ID != "" {
		where = append(where, "id = ?")
		args = append(args, filter.ID)
	} else if !filter.AllVersions {
		where = append(where, "version = (SELECT MAX(d2.version) FROM definitions d2 WHERE d2.id = definitions.id)")
	}

	query := "SELECT " + definitionColumns + " FROM definitions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id, version DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*DefinitionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteDefinition removes every version of a definition.
func (s *LibSQLStore) DeleteDefinition(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM definitions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "definition", id)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*DefinitionRecord, error) {
	rec := &DefinitionRecord{}
	var title, desc sql.NullString
	var body string
	if err := row.Scan(&rec.ID, &rec.Version, &title, &desc, &body, &rec.Checksum, &rec.Switches, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Title = title.String
	rec.Description = desc.String
	if err := json.Unmarshal([]byte(body), &rec.Definition); err != nil {
		return nil, fmt.Errorf("unmarshal definition %s@v%d: %w", rec.ID, rec.Version, err)
	}
	return rec, nil
}

// countSwitches counts switch elements, nested branches included.
func countSwitches(elems []schema.ElementDefinition) int {
	n := 0
	for i := range elems {
		e := &elems[i]
		if e.Kind() == schema.KindSwitch {
			n++
		}
		if e.Yes != nil {
			n += countSwitches(e.Yes.Elements)
		}
		if e.No != nil {
			n += countSwitches(e.No.Elements)
		}
	}
	return n
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.TileflowError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
