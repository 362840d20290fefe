package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/dialectc/internal/types"
)

// ErrRunNotFound indicates no journal entry exists for a run ID.
var ErrRunNotFound = errors.New("translation run not found")

// Journal records translation runs, reviewer feedback and the set of
// corpus files already mined for rules.
type Journal struct {
	q *Queries
}

// NewJournal creates a journal over loaded queries.
func NewJournal(q *Queries) *Journal {
	return &Journal{q: q}
}

// RecordRun inserts one translation run.
func (j *Journal) RecordRun(ctx context.Context, run *types.TranslationRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := j.q.ExecContext(ctx, "insert-run",
		string(run.ID), run.Unit, run.Source, run.Output,
		run.Verified, run.Repaired, run.Diagnostics, run.Unknowns,
		run.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun loads one run. Returns ErrRunNotFound for unknown IDs.
func (j *Journal) GetRun(ctx context.Context, id types.RunID) (*types.TranslationRun, error) {
	var run types.TranslationRun
	err := j.q.GetContext(ctx, "get-run", &run, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &run, nil
}

// ListRuns returns up to limit runs, newest first.
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]types.TranslationRun, error) {
	var runs []types.TranslationRun
	if err := j.q.SelectContext(ctx, "list-runs", &runs, limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// RecentSources returns up to limit translated sources, newest first.
// Used to warm the similarity index at startup.
func (j *Journal) RecentSources(ctx context.Context, limit int) ([]string, error) {
	var sources []string
	if err := j.q.SelectContext(ctx, "recent-sources", &sources, limit); err != nil {
		return nil, fmt.Errorf("recent sources: %w", err)
	}
	return sources, nil
}

// RecordFeedback inserts reviewer feedback. An empty RunID is stored as NULL.
func (j *Journal) RecordFeedback(ctx context.Context, fb *types.Feedback) error {
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	runID := sql.NullString{String: string(fb.RunID), Valid: fb.RunID != ""}
	_, err := j.q.ExecContext(ctx, "insert-feedback",
		string(fb.ID), runID, fb.Feedback, fb.Output, fb.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record feedback %s: %w", fb.ID, err)
	}
	return nil
}

// FeedbackForRun returns the feedback attached to a run, oldest first.
func (j *Journal) FeedbackForRun(ctx context.Context, id types.RunID) ([]types.Feedback, error) {
	var out []types.Feedback
	if err := j.q.SelectContext(ctx, "list-feedback-for-run", &out, string(id)); err != nil {
		return nil, fmt.Errorf("list feedback for %s: %w", id, err)
	}
	return out, nil
}

// IsProcessed reports whether root/path was mined with this exact fingerprint.
func (j *Journal) IsProcessed(ctx context.Context, root, path, fingerprint string) (bool, error) {
	var stored string
	err := j.q.GetContext(ctx, "get-processed-fingerprint", &stored, root, path)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check processed %s: %w", path, err)
	}
	return stored == fingerprint, nil
}

// MarkProcessed records root/path as mined with fingerprint.
func (j *Journal) MarkProcessed(ctx context.Context, root, path, fingerprint string) error {
	_, err := j.q.ExecContext(ctx, "upsert-processed-file", root, path, fingerprint, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark processed %s: %w", path, err)
	}
	return nil
}
