package market

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Table is a time-indexed set of numeric columns. The index is strictly
// ascending; missing cells hold NaN.
type Table struct {
	index   []time.Time
	columns []string
	data    map[string][]float64
}

// Record is one row used to build a Table.
type Record struct {
	Time   time.Time
	Values map[string]float64
}

// NewTable returns a table over index with no columns. The index must be
// strictly ascending.
func NewTable(index []time.Time) (*Table, error) {
	for i := 1; i < len(index); i++ {
		if !index[i].After(index[i-1]) {
			return nil, fmt.Errorf("index not strictly ascending at %d (%s after %s)", i, index[i], index[i-1])
		}
	}
	idx := make([]time.Time, len(index))
	copy(idx, index)
	return &Table{index: idx, data: map[string][]float64{}}, nil
}

// FromRecords builds a table from unordered records. Columns absent from a
// record are NaN. Duplicate timestamps are an error.
func FromRecords(records []Record, columns []string) (*Table, error) {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	index := make([]time.Time, len(sorted))
	for i, r := range sorted {
		if i > 0 && r.Time.Equal(sorted[i-1].Time) {
			return nil, fmt.Errorf("duplicate timestamp %s", r.Time.Format(time.RFC3339))
		}
		index[i] = r.Time
	}

	t, err := NewTable(index)
	if err != nil {
		return nil, err
	}
	for _, c := range columns {
		vals := make([]float64, len(sorted))
		for i, r := range sorted {
			v, ok := r.Values[c]
			if !ok {
				v = math.NaN()
			}
			vals[i] = v
		}
		if err := t.AddColumn(c, vals); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AddColumn appends a column. values must match the index length.
func (t *Table) AddColumn(name string, values []float64) error {
	if _, ok := t.data[name]; ok {
		return fmt.Errorf("duplicate column %q", name)
	}
	if len(values) != len(t.index) {
		return fmt.Errorf("column %q has %d values, index has %d", name, len(values), len(t.index))
	}
	vals := make([]float64, len(values))
	copy(vals, values)
	t.columns = append(t.columns, name)
	t.data[name] = vals
	return nil
}

// Len is the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.index)
}

// Empty reports whether the table has no rows or no columns.
func (t *Table) Empty() bool {
	return t.Len() == 0 || len(t.columns) == 0
}

// Index returns a copy of the row labels.
func (t *Table) Index() []time.Time {
	idx := make([]time.Time, len(t.index))
	copy(idx, t.index)
	return idx
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	cols := make([]string, len(t.columns))
	copy(cols, t.columns)
	return cols
}

// Column returns the values of name.
func (t *Table) Column(name string) ([]float64, bool) {
	v, ok := t.data[name]
	return v, ok
}

// Time returns the label of row i.
func (t *Table) Time(i int) time.Time { return t.index[i] }

// Row returns the values of row i in column order.
func (t *Table) Row(i int) []float64 {
	row := make([]float64, len(t.columns))
	for j, c := range t.columns {
		row[j] = t.data[c][i]
	}
	return row
}

// First and Last return the bounds of the index. Both are zero for an
// empty table.
func (t *Table) First() time.Time {
	if t.Len() == 0 {
		return time.Time{}
	}
	return t.index[0]
}

func (t *Table) Last() time.Time {
	if t.Len() == 0 {
		return time.Time{}
	}
	return t.index[len(t.index)-1]
}

// SameIndex reports whether both tables have identical row labels.
func (t *Table) SameIndex(o *Table) bool {
	if t.Len() != o.Len() {
		return false
	}
	for i := range t.index {
		if !t.index[i].Equal(o.index[i]) {
			return false
		}
	}
	return true
}

// Equal compares labels, column order and values. NaN equals NaN.
func (t *Table) Equal(o *Table) bool {
	if !t.SameIndex(o) || len(t.columns) != len(o.columns) {
		return false
	}
	for i, c := range t.columns {
		if o.columns[i] != c {
			return false
		}
		a, b := t.data[c], o.data[c]
		for k := range a {
			if a[k] != b[k] && !(math.IsNaN(a[k]) && math.IsNaN(b[k])) {
				return false
			}
		}
	}
	return true
}

// RenameColumns replaces the column names positionally.
func (t *Table) RenameColumns(names []string) error {
	if len(names) != len(t.columns) {
		return fmt.Errorf("rename: have %d columns, got %d names", len(t.columns), len(names))
	}
	data := make(map[string][]float64, len(names))
	for i, n := range names {
		if _, dup := data[n]; dup {
			return fmt.Errorf("rename: duplicate column %q", n)
		}
		data[n] = t.data[t.columns[i]]
	}
	t.columns = append([]string(nil), names...)
	t.data = data
	return nil
}

// Concat joins a and b column-wise. Their indices must be identical.
func Concat(a, b *Table) (*Table, error) {
	if !a.SameIndex(b) {
		return nil, fmt.Errorf("%w: %d rows [%s .. %s] vs %d rows [%s .. %s]", ErrIndexMismatch,
			a.Len(), fmtTime(a.First()), fmtTime(a.Last()),
			b.Len(), fmtTime(b.First()), fmtTime(b.Last()))
	}
	out, err := NewTable(a.index)
	if err != nil {
		return nil, err
	}
	for _, src := range []*Table{a, b} {
		for _, c := range src.columns {
			if err := out.AddColumn(c, src.data[c]); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// OuterJoin merges tables on the union of their indices. Nil tables are
// skipped.
func OuterJoin(tables ...*Table) (*Table, error) {
	seen := map[int64]time.Time{}
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, ts := range t.index {
			seen[ts.UnixNano()] = ts
		}
	}
	index := make([]time.Time, 0, len(seen))
	for _, ts := range seen {
		index = append(index, ts)
	}
	sort.Slice(index, func(i, j int) bool { return index[i].Before(index[j]) })

	out, err := NewTable(index)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		if t == nil {
			continue
		}
		re := t.Reindex(index)
		for _, c := range re.columns {
			if err := out.AddColumn(c, re.data[c]); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Reindex returns rows at the given labels; labels not in t become NaN rows.
func (t *Table) Reindex(index []time.Time) *Table {
	pos := make(map[int64]int, len(t.index))
	for i, ts := range t.index {
		pos[ts.UnixNano()] = i
	}
	out := &Table{
		index:   append([]time.Time(nil), index...),
		columns: append([]string(nil), t.columns...),
		data:    make(map[string][]float64, len(t.columns)),
	}
	for _, c := range t.columns {
		src := t.data[c]
		vals := make([]float64, len(index))
		for i, ts := range index {
			if p, ok := pos[ts.UnixNano()]; ok {
				vals[i] = src[p]
			} else {
				vals[i] = math.NaN()
			}
		}
		out.data[c] = vals
	}
	return out
}

// Select returns the named columns in the given order.
func (t *Table) Select(columns []string) (*Table, error) {
	out := &Table{
		index: append([]time.Time(nil), t.index...),
		data:  make(map[string][]float64, len(columns)),
	}
	for _, c := range columns {
		vals, ok := t.data[c]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, c)
		}
		if _, dup := out.data[c]; dup {
			continue
		}
		out.columns = append(out.columns, c)
		out.data[c] = append([]float64(nil), vals...)
	}
	return out, nil
}

// DropNA removes rows holding any NaN.
func (t *Table) DropNA() *Table {
	keep := make([]int, 0, len(t.index))
	for i := range t.index {
		ok := true
		for _, c := range t.columns {
			if math.IsNaN(t.data[c][i]) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}
	return t.take(keep)
}

// Slice returns rows with start <= time <= end.
func (t *Table) Slice(start, end time.Time) *Table {
	lo := sort.Search(len(t.index), func(i int) bool { return !t.index[i].Before(start) })
	hi := sort.Search(len(t.index), func(i int) bool { return t.index[i].After(end) })
	keep := make([]int, 0, max(hi-lo, 0))
	for i := lo; i < hi; i++ {
		keep = append(keep, i)
	}
	return t.take(keep)
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	n = min(max(n, 0), len(t.index))
	keep := make([]int, n)
	for i := range keep {
		keep[i] = i
	}
	return t.take(keep)
}

// CheckRange reports ErrRangeOutOfBounds unless
// First() <= start <= end <= Last().
func (t *Table) CheckRange(start, end time.Time) error {
	if t.Len() == 0 {
		return fmt.Errorf("%w: table is empty", ErrRangeOutOfBounds)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: start %s after end %s", ErrRangeOutOfBounds, fmtTime(start), fmtTime(end))
	}
	if start.Before(t.First()) || end.After(t.Last()) {
		return fmt.Errorf("%w: [%s .. %s] not within [%s .. %s]", ErrRangeOutOfBounds,
			fmtTime(start), fmtTime(end), fmtTime(t.First()), fmtTime(t.Last()))
	}
	return nil
}

func (t *Table) take(rows []int) *Table {
	out := &Table{
		index:   make([]time.Time, len(rows)),
		columns: append([]string(nil), t.columns...),
		data:    make(map[string][]float64, len(t.columns)),
	}
	for k, i := range rows {
		out.index[k] = t.index[i]
	}
	for _, c := range t.columns {
		src := t.data[c]
		vals := make([]float64, len(rows))
		for k, i := range rows {
			vals[k] = src[i]
		}
		out.data[c] = vals
	}
	return out
}

func fmtTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Format("2006-01-02 15:04:05")
}
