package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatFetchOrg renders a FetchRecord as an Org-mode block with the
// facts in a PROPERTIES drawer.
func FormatFetchOrg(r FetchRecord) string {
	status := "DONE"
	if !r.OK() {
		status = "FAILED"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "** %s Fetch: %s %s (%s)\n", status, r.Symbol, r.Interval, shortID(r.RunID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":RUN_ID: %s\n", r.RunID)
	fmt.Fprintf(&b, ":SYMBOL: %s\n", r.Symbol)
	fmt.Fprintf(&b, ":INTERVAL: %s\n", r.Interval)
	fmt.Fprintf(&b, ":STARTED: %s\n", r.Started.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":DURATION: %s\n", r.Duration().Round(time.Millisecond))
	fmt.Fprintf(&b, ":ROWS: %d\n", r.Rows)
	fmt.Fprintf(&b, ":COLUMNS: %d\n", r.Columns)
	fmt.Fprintf(&b, ":CALLS: %d\n", r.Calls)
	if r.SnapshotID != "" {
		fmt.Fprintf(&b, ":SNAPSHOT: %s\n", r.SnapshotID)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, ":ERROR: %s\n", r.Error)
	}
	b.WriteString(":END:\n")
	return b.String()
}

// FormatFetchesOrg renders records under a single heading.
func FormatFetchesOrg(recs []FetchRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "* Fetches (%d)\n", len(recs))
	for _, r := range recs {
		b.WriteString(FormatFetchOrg(r))
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
