package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/solatis/dialectc/internal/index"
	"github.com/solatis/dialectc/internal/oracle"
	"github.com/solatis/dialectc/internal/rules"
	"github.com/solatis/dialectc/internal/types"
)

// ProcessedStore remembers which files have already been mined for rules.
type ProcessedStore interface {
	IsProcessed(ctx context.Context, root, path, fingerprint string) (bool, error)
	MarkProcessed(ctx context.Context, root, path, fingerprint string) error
}

// LearnStats summarises one LearnDir pass.
type LearnStats struct {
	Scanned int
	Matched int
	Skipped int
	Failed  int
	Rules   int
}

// Learner bootstraps rules from a corpus of dialect sources.
type Learner struct {
	oracle oracle.Oracle
	repo   *rules.Repository
	index  *index.Index
	store  ProcessedStore
	logger *zap.Logger
}

// NewLearner creates a learner. x and store may be nil.
func NewLearner(o oracle.Oracle, repo *rules.Repository, x *index.Index, store ProcessedStore, logger *zap.Logger) *Learner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Learner{oracle: o, repo: repo, index: x, store: store, logger: logger}
}

// LearnDir walks root and mines every regular file whose name ends in one of
// exts (all files when exts is empty). Files whose content fingerprint is
// already recorded are skipped. Each file's rules are saved before the file is
// marked processed, so an aborted walk never leaves a processed file whose
// rules were not persisted.
func (l *Learner) LearnDir(ctx context.Context, root string, exts []string) (LearnStats, error) {
	var stats LearnStats
	if l.oracle == nil {
		return stats, types.ErrNoOracle
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		stats.Scanned++
		if !hasExt(path, exts) {
			return nil
		}
		stats.Matched++
		return l.learnFile(ctx, root, path, &stats)
	})
	if err != nil {
		return stats, fmt.Errorf("walk %s: %w", root, err)
	}
	l.logger.Info("learning pass complete",
		zap.String("root", root),
		zap.Int("scanned", stats.Scanned),
		zap.Int("matched", stats.Matched),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("rules", stats.Rules))
	return stats, nil
}

func (l *Learner) learnFile(ctx context.Context, root, path string, stats *LearnStats) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(data)
	fingerprint := hex.EncodeToString(sum[:])
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	if l.store != nil {
		done, err := l.store.IsProcessed(ctx, root, rel, fingerprint)
		if err != nil {
			return fmt.Errorf("check %s: %w", rel, err)
		}
		if done {
			stats.Skipped++
			return nil
		}
	}

	text := string(data)
	if l.index != nil {
		l.index.AddDocument(text)
	}
	snippet := sample(text, learnSampleChars)

	learned, err := l.ask(ctx, snippet)
	if err != nil {
		l.logger.Warn("rule learning failed", zap.String("path", rel), zap.Error(err))
		stats.Failed++
		return nil
	}
	if len(learned) == 0 {
		l.logger.Warn("no rules parsed from oracle reply", zap.String("path", rel))
	} else {
		if err := l.repo.MergeAndSave(learned); err != nil {
			return fmt.Errorf("save rules from %s: %w", rel, err)
		}
		stats.Rules += len(learned)
	}

	if l.store != nil {
		if err := l.store.MarkProcessed(ctx, root, rel, fingerprint); err != nil {
			return fmt.Errorf("mark %s: %w", rel, err)
		}
	}
	return nil
}

// ask requests rules for snippet and retries once with a correction prompt
// that echoes the unusable reply.
func (l *Learner) ask(ctx context.Context, snippet string) ([]types.Rule, error) {
	reply, err := l.oracle.Chat(ctx, learnMessages(snippet), learnTemperature)
	if err != nil {
		return nil, err
	}
	if rs := rules.CoerceJSONL(reply); len(rs) > 0 {
		return rs, nil
	}
	retry, err := l.oracle.Chat(ctx, learnCorrectionMessages(snippet, reply), learnTemperature)
	if err != nil {
		return nil, err
	}
	return rules.CoerceJSONL(retry), nil
}

func hasExt(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	for _, ext := range exts {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
