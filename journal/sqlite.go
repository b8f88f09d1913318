package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordFetch(r FetchRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO fetches
		(run_id, symbol, interval, started, finished, row_count, column_count, call_count, snapshot_id, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Symbol, r.Interval, r.Started.UTC(), r.Finished.UTC(),
		r.Rows, r.Columns, r.Calls, r.SnapshotID, r.Error,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
