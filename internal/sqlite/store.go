package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Meta keys.
const (
	metaSchemaVersion = "schema_version"
	metaInitialized   = "initialized"
)

// schemaVersion is bumped only on breaking DDL changes. Both sides of a
// merge are required to share the current version; migration is out of
// scope for the sync core.
const schemaVersion = "1"

// Store is a handle to one relational ledger store: either the live
// on-device database or an in-memory store hydrated from a remote
// snapshot. The zero value is not usable; construct with Open or
// OpenMemory.
type Store struct {
	db   *sql.DB
	path string // Empty for in-memory stores.
}

// Open opens (or creates) the ledger database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory opens a fresh in-memory store with the schema created.
// Used for hydrating remote snapshots; discarded after the merge.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory store: %w", err)
	}
	// A pooled second connection would see a different empty database.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle. Idempotent.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// initSchema creates all tables and indexes and stamps the schema version.
func (s *Store) initSchema() error {
	for _, stmt := range schemaDDL {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	for _, stmt := range indexDDL {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating indexes: %w", err)
		}
	}
	if err := s.setMeta(metaSchemaVersion, schemaVersion); err != nil {
		return err
	}
	return nil
}

// IsInitialized reports whether the store has completed a load sequence
// (loaded from a snapshot, or explicitly initialized empty).
func (s *Store) IsInitialized() (bool, error) {
	v, err := s.getMeta(metaInitialized)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

// MarkInitialized records that the store has reached an initialized state.
func (s *Store) MarkInitialized() error {
	return s.setMeta(metaInitialized, "true")
}

func (s *Store) getMeta(key string) (string, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading meta %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) setMeta(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("writing meta %s: %w", key, err)
	}
	return nil
}

// newUUID generates a UUID v7 string.
func newUUID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Descriptor-driven row access. The merge engine and the snapshot codec
// operate on raw column values in descriptor order; only the typed
// accessors in records.go interpret them.

// Rows returns every row of the family as raw values in column order.
func (s *Store) Rows(f Family) ([][]any, error) {
	return s.queryRows(f.Table, f.Columns, "", nil)
}

// Row returns the row with the given ID, or nil when absent.
func (s *Store) Row(f Family, id string) ([]any, error) {
	rows, err := s.queryRows(f.Table, f.Columns, "id = ?", []any{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// UpsertRow inserts or replaces the row identified by vals[0].
func (s *Store) UpsertRow(f Family, vals []any) error {
	if len(vals) != len(f.Columns) {
		return fmt.Errorf("upserting %s: got %d values for %d columns", f.Table, len(vals), len(f.Columns))
	}
	return s.upsert(s.db, f.Table, f.Columns, vals)
}

// ChildRows returns the child rows owned by the given parent ID.
func (s *Store) ChildRows(c *ChildTable, parentID string) ([][]any, error) {
	return s.queryRows(c.Table, c.Columns, c.ParentCol+" = ?", []any{parentID})
}

// ReplaceChildren deletes every child row owned by parentID and inserts
// the given set in one transaction. A parent revision carries its full
// child set; partial child merges are never attempted.
func (s *Store) ReplaceChildren(c *ChildTable, parentID string, children [][]any) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning child replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", c.Table, c.ParentCol), parentID); err != nil {
		return fmt.Errorf("deleting children of %s: %w", parentID, err)
	}
	for _, vals := range children {
		if len(vals) != len(c.Columns) {
			return fmt.Errorf("inserting %s child: got %d values for %d columns", c.Table, len(vals), len(c.Columns))
		}
		if err := s.upsert(tx, c.Table, c.Columns, vals); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing child replace: %w", err)
	}
	return nil
}

// RowCount returns the number of rows in a table, tombstones included.
func (s *Store) RowCount(table string) (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return n, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *Store) upsert(e execer, table string, columns []string, vals []any) error {
	placeholders := make([]string, len(columns))
	assigns := make([]string, 0, len(columns)-1)
	for i, col := range columns {
		placeholders[i] = "?"
		if i > 0 {
			assigns = append(assigns, col+" = excluded."+col)
		}
	}
	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(assigns, ", "),
	)
	if _, err := e.Exec(stmt, vals...); err != nil {
		return fmt.Errorf("upserting into %s: %w", table, err)
	}
	return nil
}

func (s *Store) queryRows(table string, columns []string, where string, args []any) ([][]any, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), table)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", table, err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s rows: %w", table, err)
	}
	return out, nil
}
