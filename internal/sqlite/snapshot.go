package sqlite

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/tally/pkg/types"
)

// snapshotFormatVersion is bumped when the envelope layout changes.
const snapshotFormatVersion = 1

// envelope is the snapshot document exchanged between devices (after
// encryption). One snake_case record array per table; unknown fields in
// records are ignored on hydrate so newer devices can add columns without
// breaking older readers.
type envelope struct {
	FormatVersion int                         `json:"format_version"`
	ExportedAt    string                      `json:"exported_at"`
	Records       map[string][]map[string]any `json:"records"`
}

// ExportSnapshot serializes the full store (tombstones included) into the
// snapshot envelope.
func (s *Store) ExportSnapshot() ([]byte, error) {
	env := envelope{
		FormatVersion: snapshotFormatVersion,
		ExportedAt:    types.FormatTime(types.Now()),
		Records:       make(map[string][]map[string]any),
	}

	for _, f := range families {
		recs, err := s.exportTable(f.Table, f.Columns)
		if err != nil {
			return nil, err
		}
		env.Records[f.Table] = recs
		if f.Child != nil {
			recs, err := s.exportTable(f.Child.Table, f.Child.Columns)
			if err != nil {
				return nil, err
			}
			env.Records[f.Child.Table] = recs
		}
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot: %w", err)
	}
	return data, nil
}

func (s *Store) exportTable(table string, columns []string) ([]map[string]any, error) {
	rows, err := s.queryRows(table, columns, "", nil)
	if err != nil {
		return nil, err
	}
	recs := make([]map[string]any, 0, len(rows))
	for _, vals := range rows {
		rec := make(map[string]any, len(columns))
		for i, col := range columns {
			rec[col] = vals[i]
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// HydrateSnapshot parses a snapshot envelope into a fresh in-memory store.
// The caller owns the returned store and must Close it.
func HydrateSnapshot(data []byte) (*Store, error) {
	s, err := OpenMemory()
	if err != nil {
		return nil, err
	}
	if err := s.ImportSnapshot(data); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// ImportSnapshot replaces the store's record contents with the envelope's.
// Loading is transactional: all rows land or the store is left unchanged.
// Tables are loaded in dependency order; unknown record fields are
// silently ignored.
func (s *Store) ImportSnapshot(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("parsing snapshot: %w", err)
	}
	if env.FormatVersion != snapshotFormatVersion {
		return fmt.Errorf("unsupported snapshot format version %d", env.FormatVersion)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning snapshot load: %w", err)
	}
	defer tx.Rollback()

	for _, f := range families {
		if err := loadTable(tx, f.Table, f.Columns, env.Records[f.Table]); err != nil {
			return err
		}
		if f.Child != nil {
			if err := loadTable(tx, f.Child.Table, f.Child.Columns, env.Records[f.Child.Table]); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot load: %w", err)
	}
	return nil
}

// loadTable clears a table and inserts the given records. Only columns
// listed in the descriptor are extracted; extra fields from future
// generations do not cause errors.
func loadTable(e execer, table string, columns []string, recs []map[string]any) error {
	if _, err := e.Exec("DELETE FROM " + table); err != nil {
		return fmt.Errorf("clearing %s: %w", table, err)
	}

	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, joinColumns(columns), joinColumns(placeholders))

	for _, rec := range recs {
		vals := make([]any, len(columns))
		for i, col := range columns {
			vals[i] = normalizeJSONValue(rec[col])
		}
		if vals[0] == nil || vals[0] == "" {
			return fmt.Errorf("loading %s: record without id", table)
		}
		if _, err := e.Exec(stmt, vals...); err != nil {
			return fmt.Errorf("loading %s: %w", table, err)
		}
	}
	return nil
}

// normalizeJSONValue maps json.Unmarshal's generic types onto SQLite
// storage types. Whole-number floats become int64 so integer columns
// round-trip through the envelope unchanged.
func normalizeJSONValue(v any) any {
	if f, ok := v.(float64); ok {
		if f == float64(int64(f)) {
			return int64(f)
		}
	}
	return v
}

// joinColumns joins column names with commas.
func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
