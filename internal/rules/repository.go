// internal/rules/repository.go
package rules

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/solatis/dialectc/internal/types"
)

/*
 * Rule repository backed by a newline-delimited JSON file.
 *
 * Rules are kept in insertion order and keyed by id. AddOrMerge replaces a
 * same-id rule in place, so the file order is the merge order. OfKind returns
 * a priority-ordered view without disturbing that order.
 *
 * Save writes rules.jsonl.tmp and renames it over rules.jsonl; readers never
 * observe a partial file. Save refuses to replace a non-empty file with an
 * empty rule set: an empty in-memory set after a failed learning pass must
 * not wipe the store.
 *
 * Load skips undecodable lines, ignores unknown fields and treats a blank
 * type as stmt (older stores carried no type).
 */

const (
	// RulesFileName is the rule store file inside the rules directory.
	RulesFileName = "rules.jsonl"

	rulesTempSuffix = ".tmp"
)

// Repository is the ordered, id-keyed rule store.
type Repository struct {
	mu      sync.RWMutex
	path    string
	rules   []types.Rule
	version uint64
	logger  *zap.Logger
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithLogger sets the repository logger.
func WithLogger(logger *zap.Logger) RepositoryOption {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// OpenRepository creates dir if needed and loads dir/rules.jsonl.
func OpenRepository(dir string, opts ...RepositoryOption) (*Repository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create rules dir: %w", err)
	}

	r := &Repository{
		path:   filepath.Join(dir, RulesFileName),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewMemoryRepository returns a repository with no backing file.
// Save is a no-op.
func NewMemoryRepository(rules ...types.Rule) *Repository {
	r := &Repository{logger: zap.NewNop()}
	for _, rule := range rules {
		r.addOrMergeLocked(rule)
	}
	return r
}

// Path returns the backing file path ("" for memory repositories).
func (r *Repository) Path() string {
	return r.path
}

// Version increases on every mutation or reload.
func (r *Repository) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Len returns the number of rules.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// All returns a copy of every rule in store order.
func (r *Repository) All() []types.Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Get returns the rule with the given id.
func (r *Repository) Get(id string) (types.Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rule := range r.rules {
		if rule.ID == id {
			return rule, true
		}
	}
	return types.Rule{}, false
}

// OfKind returns rules of one kind ordered by descending priority.
// Ties keep store order.
func (r *Repository) OfKind(kind types.RuleKind) []types.Rule {
	r.mu.RLock()
	var out []types.Rule
	for _, rule := range r.rules {
		if rule.NormalizedKind() == kind {
			out = append(out, rule)
		}
	}
	r.mu.RUnlock()
	return SortByPriority(out)
}

// AddOrMerge replaces the same-id rule in place or appends.
func (r *Repository) AddOrMerge(rule types.Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addOrMergeLocked(rule)
}

func (r *Repository) addOrMergeLocked(rule types.Rule) {
	r.version++
	for i := range r.rules {
		if r.rules[i].ID == rule.ID {
			r.rules[i] = rule
			return
		}
	}
	r.rules = append(r.rules, rule)
}

// Remove deletes the rule with the given id and reports whether it existed.
func (r *Repository) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rules {
		if r.rules[i].ID == id {
			r.rules = append(r.rules[:i], r.rules[i+1:]...)
			r.version++
			return true
		}
	}
	return false
}

// Save atomically replaces the rule file with the in-memory set.
func (r *Repository) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked()
}

// MergeAndSave merges rs and saves under one write lock, so a concurrent
// Reload cannot drop the merged rules between the two steps. On a failed
// save the merged rules stay in memory.
func (r *Repository) MergeAndSave(rs []types.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range rs {
		r.addOrMergeLocked(rule)
	}
	return r.saveLocked()
}

func (r *Repository) saveLocked() error {
	if r.path == "" {
		return nil
	}

	if len(r.rules) == 0 {
		if info, err := os.Stat(r.path); err == nil && info.Size() > 0 {
			r.logger.Warn("skipping save of empty rule set",
				zap.String("path", r.path))
			return types.ErrEmptyOverwrite
		}
	}

	var buf bytes.Buffer
	for _, rule := range r.rules {
		line, err := json.Marshal(rule)
		if err != nil {
			return fmt.Errorf("failed to encode rule %q: %w", rule.ID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	tmp := r.path + rulesTempSuffix
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", r.path, err)
	}

	r.logger.Debug("saved rules",
		zap.String("path", r.path),
		zap.Int("count", len(r.rules)))
	return nil
}

// Reload replaces the in-memory set with the file contents.
// A missing file loads as an empty set. The write lock is held across the
// read, so a reload never installs a file older than a concurrent save.
func (r *Repository) Reload() error {
	if r.path == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.path)
	if os.IsNotExist(err) {
		r.rules = nil
		r.version++
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", r.path, err)
	}
	defer f.Close()

	loaded, skipped, err := decodeRules(f)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", r.path, err)
	}
	r.rules = loaded
	r.version++

	if skipped > 0 {
		r.logger.Warn("skipped undecodable rule lines",
			zap.String("path", r.path),
			zap.Int("skipped", skipped))
	}
	r.logger.Debug("loaded rules",
		zap.String("path", r.path),
		zap.Int("count", len(loaded)))
	return nil
}

func decodeRules(f *os.File) ([]types.Rule, int, error) {
	var loaded []types.Rule
	skipped := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), types.MaxSourceSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rule types.Rule
		if err := json.Unmarshal([]byte(line), &rule); err != nil {
			skipped++
			continue
		}
		if strings.TrimSpace(string(rule.Type)) == "" {
			rule.Type = types.KindStmt
		}
		loaded = append(loaded, rule)
	}
	return loaded, skipped, scanner.Err()
}
