package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const fetchColumns = `run_id, symbol, interval, started, finished, row_count, column_count, call_count, snapshot_id, error`

// GetFetch returns a single record by run ID.
func (j *SQLite) GetFetch(runID string) (FetchRecord, error) {
	row := j.db.QueryRow(`SELECT `+fetchColumns+` FROM fetches WHERE run_id = ?`, runID)

	rec, err := scanFetch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FetchRecord{}, fmt.Errorf("%w: %q", ErrNotFound, runID)
		}
		return FetchRecord{}, err
	}
	return rec, nil
}

// List returns matching records, oldest first.
func (j *SQLite) List(f Filter) ([]FetchRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, f.Symbol)
	}
	if !f.Since.IsZero() {
		where = append(where, "started >= ?")
		args = append(args, f.Since.UTC())
	}

	q := `SELECT ` + fetchColumns + ` FROM fetches`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY started DESC, run_id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FetchRecord
	for rows.Next() {
		rec, err := scanFetch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// newest first from the query so LIMIT keeps the latest
	for a, b := 0, len(out)-1; a < b; a, b = a+1, b-1 {
		out[a], out[b] = out[b], out[a]
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFetch(s scanner) (FetchRecord, error) {
	var rec FetchRecord
	err := s.Scan(
		&rec.RunID,
		&rec.Symbol,
		&rec.Interval,
		&rec.Started,
		&rec.Finished,
		&rec.Rows,
		&rec.Columns,
		&rec.Calls,
		&rec.SnapshotID,
		&rec.Error,
	)
	return rec, err
}
