package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

// WriteCSV writes the table as time,<columns...>. NaN cells are empty.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"time"}, t.columns...)); err != nil {
		return err
	}

	row := make([]string, len(t.columns)+1)
	for i, ts := range t.index {
		row[0] = ts.UTC().Format(time.RFC3339Nano)
		for j, c := range t.columns {
			row[j+1] = formatFloat(t.data[c][i])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a table written by WriteCSV.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) == 0 || header[0] != "time" {
		return nil, fmt.Errorf("bad header: first column must be time, got %q", strings.Join(header, ","))
	}
	cols := header[1:]

	var (
		index []time.Time
		data  = make([][]float64, len(cols))
	)
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		ts, err := time.Parse(time.RFC3339Nano, rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: parse time: %w", line, err)
		}
		index = append(index, ts)
		for j := range cols {
			v, err := ParseFloat(rec[j+1])
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, cols[j], err)
			}
			data[j] = append(data[j], v)
		}
	}

	t, err := NewTable(index)
	if err != nil {
		return nil, err
	}
	for j, c := range cols {
		vals := data[j]
		if vals == nil {
			vals = []float64{}
		}
		if err := t.AddColumn(c, vals); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Fprint writes an aligned, human readable rendering of the table.
func (t *Table) Fprint(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "time\t%s\t\n", strings.Join(t.columns, "\t"))
	for i, ts := range t.index {
		cells := make([]string, len(t.columns))
		for j, c := range t.columns {
			v := t.data[c][i]
			if math.IsNaN(v) {
				cells[j] = "NaN"
			} else {
				cells[j] = strconv.FormatFloat(v, 'f', 4, 64)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", ts.Format("2006-01-02 15:04:05"), strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ParseFloat parses a provider numeric string. Empty and placeholder values
// become NaN.
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || s == "None" || s == "-" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
