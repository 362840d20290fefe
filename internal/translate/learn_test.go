package translate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/dialectc/internal/index"
	"github.com/solatis/dialectc/internal/oracle"
	"github.com/solatis/dialectc/internal/rules"
	"github.com/solatis/dialectc/internal/types"
)

const ifRuleJSONL = `{"id":"block_if","type":"block","irType":"If","open":"IF\\s+(.+?)\\s+THEN","middle":["ELSE"],"close":"END\\s*IF\\s*;?","fields":["cond"]}`

type memoryStore map[string]string

func (m memoryStore) IsProcessed(_ context.Context, root, path, fp string) (bool, error) {
	return m[root+"|"+path] == fp, nil
}

func (m memoryStore) MarkProcessed(_ context.Context, root, path, fp string) error {
	m[root+"|"+path] = fp
	return nil
}

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return dir
}

func TestLearnDir(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{
		"a.sql":        "LET a = 1;",
		"b.txt":        "not dialect",
		"nested/c.sql": "IF x THEN y; END IF;",
	})
	repo, err := rules.OpenRepository(t.TempDir())
	require.NoError(t, err)

	// a.sql: unusable reply, then a corrected one. nested/c.sql: valid first time.
	o := oracle.NewScripted("Here are some rules!", letRule, ifRuleJSONL)
	store := memoryStore{}
	x := index.New()
	l := NewLearner(o, repo, x, store, nil)

	stats, err := l.LearnDir(context.Background(), corpus, []string{".sql"})
	require.NoError(t, err)
	assert.Equal(t, LearnStats{Scanned: 3, Matched: 2, Rules: 2}, stats)
	assert.Equal(t, 2, x.Len())

	calls := o.Calls()
	require.Len(t, calls, 3)
	assert.Contains(t, lastUserPrompt(calls[1]), "Here are some rules!")
	assert.Equal(t, learnTemperature, calls[0].Temperature)

	if _, ok := repo.Get("stmt_let"); !ok {
		t.Error("stmt_let not merged")
	}
	if r, ok := repo.Get("block_if"); assert.True(t, ok) {
		assert.Equal(t, "^IF\\s+(.+?)\\s+THEN$", r.Open)
	}

	reloaded, err := rules.OpenRepository(filepath.Dir(repo.Path()))
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len(), "learned rules not saved")

	// Second pass skips unchanged files without calling the oracle.
	stats, err = l.LearnDir(context.Background(), corpus, []string{".sql"})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Skipped)
	assert.Len(t, o.Calls(), 3)
}

func TestLearnDir_ChangedFileIsRelearned(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{"a.sql": "LET a = 1;"})
	repo := rules.NewMemoryRepository()
	store := memoryStore{}
	o := oracle.NewScripted(letRule, letRule)
	l := NewLearner(o, repo, nil, store, nil)

	_, err := l.LearnDir(context.Background(), corpus, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(corpus, "a.sql"), []byte("LET b = 2;"), 0o644))
	stats, err := l.LearnDir(context.Background(), corpus, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Skipped)
	assert.Len(t, o.Calls(), 2)
}

func TestLearnDir_OracleFailureLeavesFileUnprocessed(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{"a.sql": "LET a = 1;"})
	store := memoryStore{}
	o := oracle.NewScripted()
	o.PushError(assert.AnError)
	l := NewLearner(o, rules.NewMemoryRepository(), nil, store, nil)

	stats, err := l.LearnDir(context.Background(), corpus, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Empty(t, store)
}

// failingStore fails the nth MarkProcessed call (1-based) and optionally
// runs hook after each successful one.
type failingStore struct {
	memoryStore
	failAt int
	calls  int
	hook   func()
}

func (f *failingStore) MarkProcessed(ctx context.Context, root, path, fp string) error {
	f.calls++
	if f.calls == f.failAt {
		return errors.New("disk full")
	}
	if err := f.memoryStore.MarkProcessed(ctx, root, path, fp); err != nil {
		return err
	}
	if f.hook != nil {
		f.hook()
	}
	return nil
}

func TestLearnDir_AbortedWalkKeepsProcessedRules(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{
		"a.sql": "LET a = 1;",
		"b.sql": "IF x THEN y; END IF;",
	})
	dir := t.TempDir()
	repo, err := rules.OpenRepository(dir)
	require.NoError(t, err)
	store := &failingStore{memoryStore: memoryStore{}, failAt: 2}
	l := NewLearner(oracle.NewScripted(letRule, ifRuleJSONL), repo, nil, store, nil)

	_, err = l.LearnDir(context.Background(), corpus, []string{".sql"})
	require.ErrorContains(t, err, "disk full")
	require.Len(t, store.memoryStore, 1)

	reloaded, err := rules.OpenRepository(dir)
	require.NoError(t, err)
	_, ok := reloaded.Get("stmt_let")
	assert.True(t, ok, "rules of a processed file were not saved")
}

func TestLearnDir_CancelledWalkKeepsProcessedRules(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{
		"a.sql": "LET a = 1;",
		"b.sql": "IF x THEN y; END IF;",
	})
	dir := t.TempDir()
	repo, err := rules.OpenRepository(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := &failingStore{memoryStore: memoryStore{}, hook: cancel}
	o := oracle.NewScripted(letRule, ifRuleJSONL)
	l := NewLearner(o, repo, nil, store, nil)

	_, err = l.LearnDir(ctx, corpus, []string{".sql"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, o.Calls(), 1)
	assert.Len(t, store.memoryStore, 1)

	reloaded, err := rules.OpenRepository(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Len())
	_, ok := reloaded.Get("stmt_let")
	assert.True(t, ok, "rules of a processed file were not saved")
}

func TestLearnDir_SaveFailureLeavesFileUnprocessed(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{"a.sql": "LET a = 1;"})
	repo, err := rules.OpenRepository(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(repo.Path(), 0o755))
	store := memoryStore{}
	l := NewLearner(oracle.NewScripted(letRule), repo, nil, store, nil)

	_, err = l.LearnDir(context.Background(), corpus, nil)
	require.ErrorContains(t, err, "save rules from a.sql")
	assert.Empty(t, store)
}

func TestLearnDir_SamplesLongFiles(t *testing.T) {
	long := strings.Repeat("x := 1;\n", 1000)
	corpus := writeCorpus(t, map[string]string{"big.sql": long})
	o := oracle.NewScripted(letRule)
	l := NewLearner(o, rules.NewMemoryRepository(), nil, nil, nil)

	_, err := l.LearnDir(context.Background(), corpus, nil)
	require.NoError(t, err)
	prompt := lastUserPrompt(o.Calls()[0])
	assert.Less(t, len(prompt), len(long))
	assert.Contains(t, prompt, long[:learnSampleChars])
}

func TestLearnDir_NoOracle(t *testing.T) {
	l := NewLearner(nil, rules.NewMemoryRepository(), nil, nil, nil)
	_, err := l.LearnDir(context.Background(), t.TempDir(), nil)
	assert.ErrorIs(t, err, types.ErrNoOracle)
}

func TestJavacVerifier_MissingCompiler(t *testing.T) {
	v := &JavacVerifier{Javac: filepath.Join(t.TempDir(), "no-such-javac")}
	res, err := v.Compile(context.Background(), "T", "public class T {}")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Diagnostics)
}
