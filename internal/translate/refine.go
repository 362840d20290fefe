package translate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/solatis/dialectc/internal/oracle"
	"github.com/solatis/dialectc/internal/rules"
)

// Refiner asks the oracle for rule improvements drawn from a finished
// translation and merges them into the repository.
type Refiner struct {
	oracle oracle.Oracle
	repo   *rules.Repository
	logger *zap.Logger
}

// NewRefiner creates a refiner. A nil oracle makes Refine a no-op.
func NewRefiner(o oracle.Oracle, repo *rules.Repository, logger *zap.Logger) *Refiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refiner{oracle: o, repo: repo, logger: logger}
}

// Refine prompts for JSONL rules about the source/output pair and merges
// every rule that survives coercion, returning the number merged. Oracle
// failures are logged and yield zero; only a failed repository save is
// returned as an error.
func (r *Refiner) Refine(ctx context.Context, source, output, feedback string) (int, error) {
	if r == nil || r.oracle == nil {
		return 0, nil
	}
	reply, err := r.oracle.Chat(ctx, refineMessages(source, output, feedback), refineTemperature)
	if err != nil {
		r.logger.Warn("rule refinement skipped", zap.Error(err))
		return 0, nil
	}
	return r.merge(reply)
}

func (r *Refiner) merge(reply string) (int, error) {
	learned := rules.CoerceJSONL(reply)
	if len(learned) == 0 {
		r.logger.Debug("refinement reply held no usable rules", zap.Int("reply_bytes", len(reply)))
		return 0, nil
	}
	if err := r.repo.MergeAndSave(learned); err != nil {
		return len(learned), fmt.Errorf("save learned rules: %w", err)
	}
	r.logger.Info("merged learned rules",
		zap.Int("rules", len(learned)),
		zap.Int("total", r.repo.Len()))
	return len(learned), nil
}
