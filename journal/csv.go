package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"
)

var csvHeader = []string{
	"run_id", "symbol", "interval", "started", "finished",
	"rows", "columns", "calls", "snapshot_id", "error",
}

// CSVJournal appends records to a CSV file.
type CSVJournal struct {
	path string

	mu sync.Mutex
	w  *csv.Writer
	f  *os.File
}

// NewCSV opens path for appending, writing the header to a new file.
func NewCSV(path string) (*CSVJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	w := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			_ = f.Close()
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	return &CSVJournal{path: path, w: w, f: f}, nil
}

func (j *CSVJournal) RecordFetch(r FetchRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.w.Write([]string{
		r.RunID,
		r.Symbol,
		r.Interval,
		r.Started.UTC().Format(time.RFC3339Nano),
		r.Finished.UTC().Format(time.RFC3339Nano),
		strconv.Itoa(r.Rows),
		strconv.Itoa(r.Columns),
		strconv.Itoa(r.Calls),
		r.SnapshotID,
		r.Error,
	})
	if err != nil {
		return err
	}
	j.w.Flush()
	return j.w.Error()
}

// GetFetch scans the file for runID. A run recorded twice returns the
// last row.
func (j *CSVJournal) GetFetch(runID string) (FetchRecord, error) {
	recs, err := j.List(Filter{})
	if err != nil {
		return FetchRecord{}, err
	}
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].RunID == runID {
			return recs[i], nil
		}
	}
	return FetchRecord{}, fmt.Errorf("%w: %q", ErrNotFound, runID)
}

// List reads the file back, oldest first.
func (j *CSVJournal) List(f Filter) ([]FetchRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	in, err := os.Open(j.path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	recs, err := readCSV(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", j.path, err)
	}

	var out []FetchRecord
	for _, r := range recs {
		if f.match(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Started.Before(out[b].Started) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out, nil
}

func readCSV(r io.Reader) ([]FetchRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	var out []FetchRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseRow(row []string) (FetchRecord, error) {
	var (
		r   FetchRecord
		err error
	)
	r.RunID, r.Symbol, r.Interval = row[0], row[1], row[2]
	if r.Started, err = time.Parse(time.RFC3339Nano, row[3]); err != nil {
		return r, err
	}
	if r.Finished, err = time.Parse(time.RFC3339Nano, row[4]); err != nil {
		return r, err
	}
	if r.Rows, err = strconv.Atoi(row[5]); err != nil {
		return r, err
	}
	if r.Columns, err = strconv.Atoi(row[6]); err != nil {
		return r, err
	}
	if r.Calls, err = strconv.Atoi(row[7]); err != nil {
		return r, err
	}
	r.SnapshotID, r.Error = row[8], row[9]
	return r, nil
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.w.Flush()
	if err := j.w.Error(); err != nil {
		return err
	}
	return j.f.Close()
}
