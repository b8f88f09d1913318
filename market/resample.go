package market

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Resample returns one row per calendar period of iv between start and end.
// A period with stored rows inside [start, end] yields its latest row; an
// empty period yields a NaN row labelled at the period's last day.
func (t *Table) Resample(start, end time.Time, iv Interval) (*Table, error) {
	if !iv.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedInterval, iv)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: start %s after end %s", ErrRangeOutOfBounds, fmtTime(start), fmtTime(end))
	}

	out := &Table{
		columns: append([]string(nil), t.columns...),
		data:    make(map[string][]float64, len(t.columns)),
	}

	cur := start
	for !cur.After(end) {
		ps, pe := iv.periodBounds(cur)
		lo, hi := maxTime(ps, start), minTime(pe, end)

		// last stored row in [lo, hi]
		i := sort.Search(len(t.index), func(i int) bool { return t.index[i].After(hi) }) - 1
		if i >= 0 && !t.index[i].Before(lo) {
			out.index = append(out.index, t.index[i])
			for _, c := range t.columns {
				out.data[c] = append(out.data[c], t.data[c][i])
			}
		} else {
			label := ps
			if !iv.Intraday() {
				label = time.Date(pe.Year(), pe.Month(), pe.Day(), 0, 0, 0, 0, pe.Location())
			}
			out.index = append(out.index, minTime(maxTime(label, lo), hi))
			for _, c := range t.columns {
				out.data[c] = append(out.data[c], math.NaN())
			}
		}
		cur = pe.Add(time.Nanosecond)
	}

	for _, c := range out.columns {
		if out.data[c] == nil {
			out.data[c] = []float64{}
		}
	}
	return out, nil
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
