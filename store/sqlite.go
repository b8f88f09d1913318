package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/stockdata/id"
	"github.com/rustyeddy/stockdata/market"
	"go.uber.org/zap"
)

// Schema creates the snapshot table. fetched_at holds Unix nanoseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	interval TEXT NOT NULL,
	fetched_at INTEGER NOT NULL,
	data BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_key ON snapshots(symbol, interval, fetched_at);
`

// SQLite stores snapshots as xz-compressed CSV blobs in one table.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLite opens (or creates) the database at path.
func NewSQLite(path string, logger *zap.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) Save(ctx context.Context, symbol string, iv market.Interval, fetchedAt time.Time, tb *market.Table) (Info, error) {
	symbol, err := checkKey(symbol, iv)
	if err != nil {
		return Info{}, err
	}
	data, err := encodeBytes(tb)
	if err != nil {
		return Info{}, err
	}

	info := Info{
		ID:        id.NewAt(fetchedAt),
		Symbol:    symbol,
		Interval:  iv,
		FetchedAt: fetchedAt.UTC(),
		Size:      int64(len(data)),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, symbol, interval, fetched_at, data)
		VALUES (?, ?, ?, ?, ?)`,
		info.ID, info.Symbol, string(info.Interval), info.FetchedAt.UnixNano(), data,
	)
	if err != nil {
		return Info{}, fmt.Errorf("insert snapshot: %w", err)
	}

	s.logger.Info("data saved", zap.String("id", info.ID), zap.String("symbol", symbol), zap.Int("rows", tb.Len()))
	return info, nil
}

func (s *SQLite) Load(ctx context.Context, symbol string, iv market.Interval) (*market.Table, Info, error) {
	symbol, err := checkKey(symbol, iv)
	if err != nil {
		return nil, Info{}, err
	}

	var (
		info Info
		ivs  string
		ns   int64
		data []byte
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT id, symbol, interval, fetched_at, data
		FROM snapshots
		WHERE symbol = ? AND interval = ?
		ORDER BY fetched_at DESC, id DESC
		LIMIT 1`, symbol, string(iv)).Scan(&info.ID, &info.Symbol, &ivs, &ns, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Info{}, notFound(symbol, iv)
	}
	if err != nil {
		return nil, Info{}, err
	}
	info.Interval = market.Interval(ivs)
	info.FetchedAt = time.Unix(0, ns).UTC()
	info.Size = int64(len(data))

	tb, err := decodeBytes(data)
	if err != nil {
		return nil, Info{}, fmt.Errorf("decode snapshot %s: %w", info.ID, err)
	}
	s.logger.Info("data loaded", zap.String("id", info.ID), zap.String("symbol", symbol), zap.Int("rows", tb.Len()))
	return tb, info, nil
}

func (s *SQLite) List(ctx context.Context, symbol string, iv market.Interval) ([]Info, error) {
	q := `SELECT id, symbol, interval, fetched_at, length(data) FROM snapshots`
	var (
		where []string
		args  []any
	)
	if symbol = strings.ToUpper(strings.TrimSpace(symbol)); symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, symbol)
	}
	if iv != "" {
		where = append(where, "interval = ?")
		args = append(args, string(iv))
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY symbol, interval, fetched_at, id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var (
			info Info
			ivs  string
			ns   int64
		)
		if err := rows.Scan(&info.ID, &info.Symbol, &ivs, &ns, &info.Size); err != nil {
			return nil, err
		}
		info.Interval = market.Interval(ivs)
		info.FetchedAt = time.Unix(0, ns).UTC()
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
