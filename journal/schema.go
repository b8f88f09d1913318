package journal

const Schema = `
CREATE TABLE IF NOT EXISTS fetches (
	run_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	interval TEXT NOT NULL,
	started DATETIME NOT NULL,
	finished DATETIME NOT NULL,
	row_count INTEGER NOT NULL,
	column_count INTEGER NOT NULL,
	call_count INTEGER NOT NULL,
	snapshot_id TEXT NOT NULL,
	error TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fetches_started ON fetches(started);
CREATE INDEX IF NOT EXISTS idx_fetches_symbol ON fetches(symbol);
`
