package types

import "time"

// TranslationRun is the journal record of one Translate call.
type TranslationRun struct {
	ID          RunID     `db:"id" json:"id"`
	Unit        string    `db:"unit" json:"unit"`
	Source      string    `db:"source" json:"source"`
	Output      string    `db:"output" json:"output"`
	Verified    bool      `db:"verified" json:"verified"`
	Repaired    bool      `db:"repaired" json:"repaired"`
	Diagnostics string    `db:"diagnostics" json:"diagnostics"`
	Unknowns    int       `db:"unknowns" json:"unknowns"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Feedback is a user correction attached to a run.
type Feedback struct {
	ID        FeedbackID `db:"id" json:"id"`
	RunID     RunID      `db:"run_id" json:"run_id"`
	Feedback  string     `db:"feedback" json:"feedback"`
	Output    string     `db:"output" json:"output"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// ProcessedFile marks a source file already mined for rules.
type ProcessedFile struct {
	Root        string    `db:"root"`
	Path        string    `db:"path"`
	Fingerprint string    `db:"fingerprint"`
	ProcessedAt time.Time `db:"processed_at"`
}
