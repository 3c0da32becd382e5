package model

import "time"

// ImportRow is one raw login read from a browser credential store.
// Password holds the browser-native encrypted value.
type ImportRow struct {
	Index       int // Position within the batch, for error reporting.
	OriginURL   string
	SignonRealm string
	Username    string
	Password    []byte

	CreatedAt          time.Time
	LastUsedAt         time.Time
	PasswordModifiedAt time.Time

	// ReadErr is set when the row could not be decoded from the source.
	// The remaining fields are then unreliable.
	ReadErr error
}

// ImportBatch is the transient set of rows read from one browser store.
type ImportBatch struct {
	Browser Browser
	Rows    []ImportRow
}

// RowError reports a row that was skipped because it could not be imported.
type RowError struct {
	Index     int    `json:"index"`
	OriginURL string `json:"origin_url"`
	Reason    string `json:"reason"`
}

// ImportSummary reports the result of one import run.
type ImportSummary struct {
	RunID    string
	Browser  Browser
	Outcome  ImportOutcome
	Read     int
	Inserted int
	Skipped  int // Already present in the vault.
	Failed   []RowError
}

// BreachSummary reports the result of checking every credential a user owns.
type BreachSummary struct {
	Checked       int
	Breached      int
	Clean         int
	Unavailable   int // Oracle could not be reached; status left as it was.
	Undecryptable int
}
