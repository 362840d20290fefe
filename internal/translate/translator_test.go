package translate

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/dialectc/internal/index"
	"github.com/solatis/dialectc/internal/oracle"
	"github.com/solatis/dialectc/internal/rules"
	"github.com/solatis/dialectc/internal/seed"
	"github.com/solatis/dialectc/internal/types"
)

const letRule = `{"id":"stmt_let","type":"stmt","irType":"Assign","regex":"^\\s*LET\\s+(\\w+)\\s*=\\s*(.+?);?\\s*$","fields":["name","expr"]}`

type fakeVerifier struct {
	result Verification
	err    error
	units  []string
}

func (f *fakeVerifier) Compile(_ context.Context, unit, _ string) (Verification, error) {
	f.units = append(f.units, unit)
	return f.result, f.err
}

type fakeJournal struct {
	mu       sync.Mutex
	runs     []*types.TranslationRun
	feedback []*types.Feedback
}

func (j *fakeJournal) RecordRun(_ context.Context, run *types.TranslationRun) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs = append(j.runs, run)
	return nil
}

func (j *fakeJournal) RecordFeedback(_ context.Context, fb *types.Feedback) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.feedback = append(j.feedback, fb)
	return nil
}

func seededRepo(t *testing.T) *rules.Repository {
	t.Helper()
	repo := rules.NewMemoryRepository()
	_, errs := seed.Apply(repo, seed.Default())
	require.Empty(t, errs)
	return repo
}

func newTranslator(repo *rules.Repository, o oracle.Oracle, v Verifier, opts ...Option) *Translator {
	if o != nil {
		opts = append(opts, WithRefiner(NewRefiner(o, repo, nil)))
	}
	return New(rules.NewEngine(repo, nil), o, v, opts...)
}

func lastUserPrompt(c oracle.Call) string {
	return c.Messages[len(c.Messages)-1].Content
}

func TestTranslate_VerifiedRefinesWithOK(t *testing.T) {
	repo := seededRepo(t)
	o := oracle.NewScripted(letRule)
	v := &fakeVerifier{result: Verification{OK: true}}
	j := &fakeJournal{}
	tr := newTranslator(repo, o, v, WithJournal(j), WithUnit("Payroll"))

	res, err := tr.Translate(context.Background(), "P_X := 1;")
	require.NoError(t, err)

	assert.True(t, res.Verified)
	assert.False(t, res.Repaired)
	assert.Zero(t, res.Unknowns)
	assert.Contains(t, res.Text, "public class Payroll {")
	assert.Contains(t, res.Text, "var P_X = 1;")
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{"Payroll"}, v.units)

	calls := o.Calls()
	require.Len(t, calls, 1)
	assert.True(t, strings.HasSuffix(lastUserPrompt(calls[0]), "Notes or diagnostics:\nOK"))

	_, ok := repo.Get("stmt_let")
	assert.True(t, ok, "refined rule not merged")

	require.Len(t, j.runs, 1)
	assert.Equal(t, res.RunID, j.runs[0].ID)
	assert.Equal(t, "P_X := 1;", j.runs[0].Source)
	assert.True(t, j.runs[0].Verified)
}

func TestTranslate_RepairAccepted(t *testing.T) {
	repo := seededRepo(t)
	o := oracle.NewScripted("```java\npublic class Fixed {}\n```", "")
	v := &fakeVerifier{result: Verification{OK: false, Diagnostics: "Payroll.java:3: error"}}
	tr := newTranslator(repo, o, v)

	res, err := tr.Translate(context.Background(), "P_X := 1;")
	require.NoError(t, err)

	assert.Equal(t, "public class Fixed {}", res.Text)
	assert.True(t, res.Repaired)
	assert.False(t, res.Verified)
	assert.Equal(t, "Payroll.java:3: error", res.Diagnostics)

	calls := o.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, lastUserPrompt(calls[0]), "Payroll.java:3: error")
	assert.Equal(t, repairTemperature, calls[0].Temperature)
	assert.Contains(t, lastUserPrompt(calls[1]), "public class Fixed {}")
}

func TestTranslate_RepairRejected(t *testing.T) {
	repo := seededRepo(t)
	o := oracle.NewScripted("I cannot help with that.")
	v := &fakeVerifier{result: Verification{OK: false, Diagnostics: "boom"}}
	tr := newTranslator(repo, o, v)

	res, err := tr.Translate(context.Background(), "P_X := 1;")
	require.NoError(t, err)

	assert.False(t, res.Repaired)
	assert.Contains(t, res.Text, "var P_X = 1;")
	assert.Equal(t, "boom", res.Diagnostics)
	assert.Len(t, o.Calls(), 1, "rejected repair must not trigger refinement")
}

func TestTranslate_OracleErrorsAreNotFatal(t *testing.T) {
	repo := seededRepo(t)
	o := oracle.NewScripted()
	o.PushError(errors.New("upstream down"))
	v := &fakeVerifier{result: Verification{OK: false, Diagnostics: "boom"}}
	tr := newTranslator(repo, o, v)

	res, err := tr.Translate(context.Background(), "P_X := 1;")
	require.NoError(t, err)
	assert.False(t, res.Repaired)
	assert.Contains(t, res.Text, "var P_X = 1;")
}

func TestTranslate_WithoutOracleOrVerifier(t *testing.T) {
	tr := newTranslator(seededRepo(t), nil, nil)

	res, err := tr.Translate(context.Background(), "IF TRUE THEN P_A := 1; ELSE P_A := 2; END IF;")
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Zero(t, res.Unknowns)
	assert.NotContains(t, res.Text, "UNKNOWN")
}

func TestTranslate_VerifierFailure(t *testing.T) {
	v := &fakeVerifier{err: errors.New("disk full")}
	tr := newTranslator(seededRepo(t), nil, v)

	_, err := tr.Translate(context.Background(), "P_X := 1;")
	assert.ErrorContains(t, err, "disk full")
}

func TestTranslate_SourceTooLarge(t *testing.T) {
	tr := newTranslator(seededRepo(t), nil, nil)
	_, err := tr.Translate(context.Background(), strings.Repeat("x", types.MaxSourceSize+1))
	assert.ErrorIs(t, err, types.ErrSourceTooLarge)
}

func TestTranslate_HintForMostlyUnknownInput(t *testing.T) {
	repo := rules.NewMemoryRepository(types.Rule{
		ID: "semi", Type: types.KindSegment, Strategy: types.StrategyOutsideQuotesParens,
		Regex: ";", Priority: 100,
	})
	x := index.New()
	x.AddDocument("LET a = 1;")
	o := oracle.NewScripted("Use Assign\nfor LET lines")
	tr := newTranslator(repo, o, nil, WithIndex(x))

	res, err := tr.Translate(context.Background(), "a b; c d; e f;")
	require.NoError(t, err)

	assert.Equal(t, 3, res.Unknowns)
	assert.Contains(t, res.Text, "LLM_HINT: Use Assign for LET lines")
	require.Len(t, o.Calls(), 1)
	assert.Contains(t, lastUserPrompt(o.Calls()[0]), "LET a = 1;")
	assert.Equal(t, 2, x.Len(), "translated source not indexed")
}

func TestTranslate_NoHintBelowThreshold(t *testing.T) {
	repo := rules.NewMemoryRepository(types.Rule{
		ID: "semi", Type: types.KindSegment, Strategy: types.StrategyOutsideQuotesParens,
		Regex: ";", Priority: 100,
	})
	o := oracle.NewScripted()
	tr := newTranslator(repo, o, nil, WithIndex(index.New()))

	res, err := tr.Translate(context.Background(), "a b; c d;")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Unknowns)
	assert.Empty(t, o.Calls())
}

func TestFix(t *testing.T) {
	repo := seededRepo(t)
	o := oracle.NewScripted("```\npublic class Reviewed {}\n```", letRule)
	j := &fakeJournal{}
	tr := newTranslator(repo, o, nil, WithJournal(j))

	got, err := tr.Fix(context.Background(), "LET a = 1;", "public class T {}", "use LET")
	require.NoError(t, err)
	assert.Equal(t, "public class Reviewed {}", got)

	calls := o.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, repairTemperature, calls[0].Temperature)
	assert.Contains(t, lastUserPrompt(calls[0]), "use LET")
	assert.True(t, strings.HasSuffix(lastUserPrompt(calls[1]), "Notes or diagnostics:\nuse LET"))

	require.Len(t, j.feedback, 1)
	assert.Equal(t, "use LET", j.feedback[0].Feedback)
	_, ok := repo.Get("stmt_let")
	assert.True(t, ok)
}

func TestFix_NoOracle(t *testing.T) {
	tr := newTranslator(seededRepo(t), nil, nil)
	_, err := tr.Fix(context.Background(), "", "", "")
	assert.ErrorIs(t, err, types.ErrNoOracle)
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"public class A {}", "public class A {}"},
		{"```java\nclass A {}\n```", "class A {}"},
		{"  ```\n\nclass A {}\n  ```  \n", "class A {}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripFences(tt.in))
	}
}

func TestSample(t *testing.T) {
	assert.Equal(t, "abc", sample("abc", 10))
	assert.Equal(t, "ab", sample("abcdef", 2))
	// "é" is two bytes; cutting inside it backs off to the boundary.
	assert.Equal(t, "a", sample("aé", 2))
}

func TestFix_ConfiguredTemperature(t *testing.T) {
	o := oracle.NewScripted("public class A {}")
	tr := New(rules.NewEngine(seededRepo(t), nil), o, nil, WithTemperature(0.7))

	_, err := tr.Fix(context.Background(), "P_X := 1;", "class A {}", "rename")
	require.NoError(t, err)
	require.Len(t, o.Calls(), 1)
	assert.Equal(t, 0.7, o.Calls()[0].Temperature)
}

// brokenStore returns a file-backed seeded repository whose rules.jsonl path
// is a directory, so every save fails at the rename.
func brokenStore(t *testing.T) *rules.Repository {
	t.Helper()
	repo, err := rules.OpenRepository(t.TempDir())
	require.NoError(t, err)
	_, errs := seed.Apply(repo, seed.Default())
	require.Empty(t, errs)
	require.NoError(t, os.Mkdir(repo.Path(), 0o755))
	return repo
}

func assertStoreUntouched(t *testing.T, repo *rules.Repository) {
	t.Helper()
	info, err := os.Stat(repo.Path())
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "rule path replaced by failed save")
	entries, err := os.ReadDir(repo.Path())
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, err = os.Stat(repo.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file left behind")
}

func TestTranslate_SaveFailureIsReturned(t *testing.T) {
	repo := brokenStore(t)
	o := oracle.NewScripted(letRule)
	v := &fakeVerifier{result: Verification{OK: true}}
	j := &fakeJournal{}
	tr := newTranslator(repo, o, v, WithJournal(j))

	res, err := tr.Translate(context.Background(), "P_X := 1;")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorContains(t, err, "save learned rules")
	var linkErr *os.LinkError
	assert.ErrorAs(t, err, &linkErr)
	assert.Empty(t, j.runs, "failed translation must not be journaled")
	assertStoreUntouched(t, repo)
}

func TestFix_SaveFailureIsReturned(t *testing.T) {
	repo := brokenStore(t)
	o := oracle.NewScripted("public class Reviewed {}", letRule)
	j := &fakeJournal{}
	tr := newTranslator(repo, o, nil, WithJournal(j))

	got, err := tr.Fix(context.Background(), "LET a = 1;", "public class T {}", "use LET")
	require.Error(t, err)
	assert.Empty(t, got)
	assert.ErrorContains(t, err, "save learned rules")
	assert.Empty(t, j.feedback)
	assertStoreUntouched(t, repo)
}
