package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rustyeddy/stockdata/market"
	"go.uber.org/zap"
)

// TimestampLayout names snapshot files. Lexical order is chronological.
const TimestampLayout = "20060102T150405.000000000"

const fileExt = ".csv.xz"

// FileStore keeps snapshots under
// <root>/<class>/<SYMBOL>/<timestamp>[_<interval>].csv.xz. Intraday
// intervals share the intra_day class and are told apart by the suffix.
type FileStore struct {
	root   string
	logger *zap.Logger
}

// NewFileStore returns a store rooted at root, creating it if needed.
func NewFileStore(root string, logger *zap.Logger) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("file store: empty root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{root: root, logger: logger}, nil
}

// Root is the cache directory.
func (s *FileStore) Root() string { return s.root }

// Path returns the file a snapshot taken at fetchedAt is written to.
func (s *FileStore) Path(symbol string, iv market.Interval, fetchedAt time.Time) string {
	return filepath.Join(s.dir(symbol, iv), fileName(iv, fetchedAt))
}

func (s *FileStore) dir(symbol string, iv market.Interval) string {
	return filepath.Join(s.root, iv.Class(), symbol)
}

func fileName(iv market.Interval, fetchedAt time.Time) string {
	name := fetchedAt.UTC().Format(TimestampLayout)
	if iv.Intraday() {
		name += "_" + string(iv)
	}
	return name + fileExt
}

// parseFileName returns the fetch time and interval suffix of a snapshot
// file. ok is false for files that are not snapshots.
func parseFileName(name string) (fetchedAt time.Time, suffix string, ok bool) {
	base, found := strings.CutSuffix(name, fileExt)
	if !found {
		return time.Time{}, "", false
	}
	ts, suffix, _ := strings.Cut(base, "_")
	t, err := time.Parse(TimestampLayout, ts)
	if err != nil {
		return time.Time{}, "", false
	}
	return t, suffix, true
}

// Save writes the snapshot through a temporary file and renames it into
// place.
func (s *FileStore) Save(ctx context.Context, symbol string, iv market.Interval, fetchedAt time.Time, tb *market.Table) (Info, error) {
	symbol, err := checkKey(symbol, iv)
	if err != nil {
		return Info{}, err
	}
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}

	dst := s.Path(symbol, iv, fetchedAt)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Info{}, err
	}

	tmp := dst + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return Info{}, err
	}
	encErr := Encode(f, tb)
	closeErr := f.Close()
	if encErr != nil {
		_ = os.Remove(tmp)
		return Info{}, fmt.Errorf("encode %s: %w", dst, encErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return Info{}, closeErr
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return Info{}, err
	}

	st, err := os.Stat(dst)
	if err != nil {
		return Info{}, err
	}

	s.logger.Info("data saved", zap.String("path", dst), zap.Int("rows", tb.Len()))
	return Info{
		ID:        filepath.Base(dst),
		Symbol:    symbol,
		Interval:  iv,
		FetchedAt: fetchedAt.UTC(),
		Size:      st.Size(),
	}, nil
}

// Load reads the latest snapshot of (symbol, iv).
func (s *FileStore) Load(ctx context.Context, symbol string, iv market.Interval) (*market.Table, Info, error) {
	symbol, err := checkKey(symbol, iv)
	if err != nil {
		return nil, Info{}, err
	}
	infos, err := s.scan(symbol, iv)
	if err != nil {
		return nil, Info{}, err
	}
	if len(infos) == 0 {
		return nil, Info{}, notFound(symbol, iv)
	}
	if err := ctx.Err(); err != nil {
		return nil, Info{}, err
	}

	latest := infos[len(infos)-1]
	path := filepath.Join(s.dir(symbol, iv), latest.ID)
	f, err := os.Open(path)
	if err != nil {
		return nil, Info{}, err
	}
	defer f.Close()

	tb, err := Decode(f)
	if err != nil {
		return nil, Info{}, fmt.Errorf("decode %s: %w", path, err)
	}
	s.logger.Info("data loaded", zap.String("path", path), zap.Int("rows", tb.Len()))
	return tb, latest, nil
}

// List walks the cache directory.
func (s *FileStore) List(ctx context.Context, symbol string, iv market.Interval) ([]Info, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	var out []Info
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) != 3 {
			return nil
		}
		info, ok := fileInfo(parts[0], parts[1], d)
		if !ok {
			return nil
		}
		if symbol != "" && info.Symbol != symbol {
			return nil
		}
		if iv != "" && info.Interval != iv {
			return nil
		}
		out = append(out, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortInfos(out)
	return out, nil
}

// scan lists the snapshots of one (symbol, iv) directory, oldest first.
func (s *FileStore) scan(symbol string, iv market.Interval) ([]Info, error) {
	entries, err := os.ReadDir(s.dir(symbol, iv))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Info
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, ok := fileInfo(iv.Class(), symbol, e)
		if !ok || info.Interval != iv {
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func fileInfo(class, symbol string, d fs.DirEntry) (Info, bool) {
	fetchedAt, suffix, ok := parseFileName(d.Name())
	if !ok {
		return Info{}, false
	}

	iv := market.Interval(class)
	if class == market.IntradayClass {
		iv = market.Interval(suffix)
		if !iv.Intraday() {
			return Info{}, false
		}
	} else if suffix != "" || !iv.Valid() {
		return Info{}, false
	}

	var size int64
	if fi, err := d.Info(); err == nil {
		size = fi.Size()
	}
	return Info{
		ID:        d.Name(),
		Symbol:    symbol,
		Interval:  iv,
		FetchedAt: fetchedAt,
		Size:      size,
	}, true
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }
