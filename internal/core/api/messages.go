package api

import "github.com/solatis/dialectc/internal/types"

type TranslateRequest struct {
	Source string `json:"source"`
}

type TranslateResponse struct {
	Text        string `json:"text"`
	Verified    bool   `json:"verified"`
	Repaired    bool   `json:"repaired"`
	Diagnostics string `json:"diagnostics,omitempty"`
	Unknowns    int    `json:"unknowns"`
	RunID       string `json:"run_id"`
}

// FixRequest asks for a corrected translation. Current is the Java the
// reviewer saw; Feedback is their note.
type FixRequest struct {
	Source   string `json:"source"`
	Current  string `json:"current"`
	Feedback string `json:"feedback"`
}

type FixResponse struct {
	Text string `json:"text"`
}

// ListRulesRequest filters by kind; an empty kind lists every rule.
type ListRulesRequest struct {
	Kind string `json:"kind,omitempty"`
}

type ListRulesResponse struct {
	Rules   []types.Rule `json:"rules"`
	Version uint64       `json:"version"`
}

// UpsertRulesRequest carries rules as JSONL, coerced the same way as
// learned oracle output.
type UpsertRulesRequest struct {
	JSONL string `json:"jsonl"`
}

type UpsertRulesResponse struct {
	Accepted int      `json:"accepted"`
	IDs      []string `json:"ids"`
	Total    int      `json:"total"`
}
