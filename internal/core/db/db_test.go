package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/dialectc/internal/types"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	database, err := Open("sqlite://" + filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := MigrateUp(database); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	return database
}

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	q, err := LoadQueries(openTestDB(t))
	if err != nil {
		t.Fatalf("LoadQueries failed: %v", err)
	}
	return NewJournal(q)
}

func TestOpen(t *testing.T) {
	t.Run("unsupported scheme", func(t *testing.T) {
		if _, err := Open("mysql://localhost/db"); err == nil {
			t.Error("expected error for mysql scheme")
		}
	})

	t.Run("sqlite creates parent dir", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "j.db")
		database, err := Open("sqlite://" + path)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		database.Close()
	})
}

func TestMigrations(t *testing.T) {
	database := openTestDB(t)

	// Second run is a no-op.
	if err := MigrateUp(database); err != nil {
		t.Fatalf("second MigrateUp failed: %v", err)
	}

	statuses, err := MigrateStatus(database)
	if err != nil {
		t.Fatalf("MigrateStatus failed: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(statuses))
	}
	for _, s := range statuses {
		if !s.Applied || s.AppliedAt == nil {
			t.Errorf("migration %s not applied", s.ID)
		}
	}
	if statuses[0].ID != "001_journal.sql" {
		t.Errorf("unexpected first migration %s", statuses[0].ID)
	}

	for _, table := range []string{"translation_runs", "feedback", "processed_files", "api_keys"} {
		var n int
		if err := database.Get(&n, "SELECT COUNT(*) FROM "+table); err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestMigrations_ChecksumMismatch(t *testing.T) {
	database := openTestDB(t)
	if _, err := database.Exec("UPDATE migrations SET checksum = 'tampered' WHERE migration_id = '001_journal.sql'"); err != nil {
		t.Fatal(err)
	}
	if err := MigrateUp(database); err == nil {
		t.Error("expected checksum validation error")
	}
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("-- header; with semicolon\nCREATE TABLE a (x INT);\n\n-- note\nCREATE INDEX i ON a (x);\n")
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if got[0] != "CREATE TABLE a (x INT)" {
		t.Errorf("unexpected first statement %q", got[0])
	}
}

func TestJournal_Runs(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var ids []types.RunID
	for i := 0; i < 3; i++ {
		run := &types.TranslationRun{
			ID:          types.NewRunID(),
			Unit:        "T",
			Source:      []string{"a := 1;", "b := 2;", "c := 3;"}[i],
			Output:      "public class T {}",
			Verified:    i%2 == 0,
			Diagnostics: "",
			Unknowns:    i,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := j.RecordRun(ctx, run); err != nil {
			t.Fatalf("RecordRun failed: %v", err)
		}
		ids = append(ids, run.ID)
	}

	got, err := j.GetRun(ctx, ids[1])
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Source != "b := 2;" || got.Verified || got.Unknowns != 1 {
		t.Errorf("unexpected run %+v", got)
	}
	if !got.CreatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, base.Add(time.Minute))
	}

	if _, err := j.GetRun(ctx, types.NewRunID()); err != ErrRunNotFound {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}

	runs, err := j.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Errorf("ListRuns not newest first: %+v", runs)
	}

	sources, err := j.RecentSources(ctx, 10)
	if err != nil {
		t.Fatalf("RecentSources failed: %v", err)
	}
	if len(sources) != 3 || sources[0] != "c := 3;" {
		t.Errorf("unexpected sources %q", sources)
	}
}

func TestJournal_Feedback(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	run := &types.TranslationRun{ID: types.NewRunID(), Unit: "T", Source: "x", Output: "y"}
	if err := j.RecordRun(ctx, run); err != nil {
		t.Fatal(err)
	}

	attached := &types.Feedback{ID: types.NewFeedbackID(), RunID: run.ID, Feedback: "rename", Output: "class Z {}"}
	if err := j.RecordFeedback(ctx, attached); err != nil {
		t.Fatalf("RecordFeedback failed: %v", err)
	}
	adhoc := &types.Feedback{ID: types.NewFeedbackID(), Feedback: "style", Output: "class W {}"}
	if err := j.RecordFeedback(ctx, adhoc); err != nil {
		t.Fatalf("RecordFeedback without run failed: %v", err)
	}

	fbs, err := j.FeedbackForRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("FeedbackForRun failed: %v", err)
	}
	if len(fbs) != 1 || fbs[0].Feedback != "rename" || fbs[0].RunID != run.ID {
		t.Errorf("unexpected feedback %+v", fbs)
	}
}

func TestJournal_Processed(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	done, err := j.IsProcessed(ctx, "/corpus", "a.sql", "fp1")
	if err != nil || done {
		t.Fatalf("IsProcessed on empty journal = %v, %v", done, err)
	}

	if err := j.MarkProcessed(ctx, "/corpus", "a.sql", "fp1"); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if done, _ := j.IsProcessed(ctx, "/corpus", "a.sql", "fp1"); !done {
		t.Error("expected processed after MarkProcessed")
	}
	if done, _ := j.IsProcessed(ctx, "/corpus", "a.sql", "fp2"); done {
		t.Error("changed fingerprint must not count as processed")
	}
	if done, _ := j.IsProcessed(ctx, "/other", "a.sql", "fp1"); done {
		t.Error("processed flag leaked across roots")
	}

	if err := j.MarkProcessed(ctx, "/corpus", "a.sql", "fp2"); err != nil {
		t.Fatalf("MarkProcessed upsert failed: %v", err)
	}
	if done, _ := j.IsProcessed(ctx, "/corpus", "a.sql", "fp2"); !done {
		t.Error("expected upserted fingerprint")
	}
}
