// Package translate orchestrates the full translation pipeline: parse with
// the rule engine, generate Java, verify, and fall back to the oracle for
// repair, hints and rule refinement.
package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/solatis/dialectc/internal/codegen"
	"github.com/solatis/dialectc/internal/index"
	"github.com/solatis/dialectc/internal/ir"
	"github.com/solatis/dialectc/internal/oracle"
	"github.com/solatis/dialectc/internal/rules"
	"github.com/solatis/dialectc/internal/types"
)

// hintPrefix marks oracle hints appended to the forest as Unknown roots.
const hintPrefix = "LLM_HINT: "

// Journal records translation runs and user feedback.
type Journal interface {
	RecordRun(ctx context.Context, run *types.TranslationRun) error
	RecordFeedback(ctx context.Context, fb *types.Feedback) error
}

// Result is the outcome of one Translate call.
type Result struct {
	Text        string
	Verified    bool
	Repaired    bool
	Diagnostics string
	Unknowns    int
	RunID       types.RunID
}

// Translator is safe for concurrent use.
type Translator struct {
	engine   *rules.Engine
	oracle   oracle.Oracle
	verifier Verifier
	index    *index.Index
	journal  Journal
	refiner  *Refiner
	unit     string
	temp     float64
	logger   *zap.Logger
}

// Option configures a Translator.
type Option func(*Translator)

// WithIndex enables similarity hints and indexes every translated source.
func WithIndex(x *index.Index) Option {
	return func(t *Translator) { t.index = x }
}

// WithJournal records every run and fix.
func WithJournal(j Journal) Option {
	return func(t *Translator) { t.journal = j }
}

// WithRefiner merges oracle-proposed rules after each translation.
func WithRefiner(r *Refiner) Option {
	return func(t *Translator) { t.refiner = r }
}

// WithUnit sets the generated class name.
func WithUnit(unit string) Option {
	return func(t *Translator) { t.unit = unit }
}

// WithTemperature sets the sampling temperature for repair, hint and fix
// prompts. Rule learning always runs at zero.
func WithTemperature(temp float64) Option {
	return func(t *Translator) { t.temp = temp }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Translator) { t.logger = logger }
}

// New creates a translator. o may be nil for rule-only operation; v may be
// nil to skip verification.
func New(engine *rules.Engine, o oracle.Oracle, v Verifier, opts ...Option) *Translator {
	t := &Translator{
		engine:   engine,
		oracle:   o,
		verifier: v,
		unit:     types.DefaultUnitName,
		temp:     repairTemperature,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	if strings.TrimSpace(t.unit) == "" {
		t.unit = types.DefaultUnitName
	}
	return t
}

// Unit returns the generated class name.
func (t *Translator) Unit() string {
	return t.unit
}

// Translate runs the pipeline on source. A produced translation is returned
// even when verification, repair or refinement fail; only oversized input
// and failures to persist learned rules are errors.
func (t *Translator) Translate(ctx context.Context, source string) (*Result, error) {
	if len(source) > types.MaxSourceSize {
		return nil, fmt.Errorf("%w: %d bytes", types.ErrSourceTooLarge, len(source))
	}
	start := time.Now()

	parsed := t.engine.Parse(source)
	forest := parsed.Forest
	unknowns := ir.CountUnknown(forest)

	if t.needsHint(unknowns, len(forest)) {
		forest = t.appendHint(ctx, source, forest)
	}

	res := &Result{
		Text:     codegen.Generate(forest, t.unit),
		Unknowns: unknowns,
	}

	if t.verifier != nil {
		v, err := t.verifier.Compile(ctx, t.unit, res.Text)
		if err != nil {
			return nil, fmt.Errorf("verify %s: %w", t.unit, err)
		}
		res.Verified = v.OK
		res.Diagnostics = v.Diagnostics

		if v.OK {
			if _, err := t.refiner.Refine(ctx, source, res.Text, "OK"); err != nil {
				return nil, err
			}
		} else if fixed, ok := t.repair(ctx, res.Text, v.Diagnostics); ok {
			res.Text = fixed
			res.Repaired = true
			if _, err := t.refiner.Refine(ctx, source, fixed, v.Diagnostics); err != nil {
				return nil, err
			}
		}
	}

	res.RunID = types.NewRunID()
	t.record(ctx, source, res)
	if t.index != nil {
		t.index.AddDocument(source)
	}

	t.logger.Info("translated",
		zap.String("run_id", string(res.RunID)),
		zap.Int("tokens", parsed.Tokens),
		zap.Int("unknowns", unknowns),
		zap.Bool("verified", res.Verified),
		zap.Bool("repaired", res.Repaired),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// Fix applies reviewer feedback to a previous translation through the
// oracle and refines the rules with the feedback.
func (t *Translator) Fix(ctx context.Context, source, current, feedback string) (string, error) {
	if t.oracle == nil {
		return "", types.ErrNoOracle
	}
	reply, err := t.oracle.Chat(ctx, fixMessages(current, feedback), t.temp)
	if err != nil {
		return "", fmt.Errorf("fix: %w", err)
	}
	fixed := stripFences(reply)
	if fixed == "" {
		return "", types.ErrOracleEmpty
	}
	if _, err := t.refiner.Refine(ctx, source, fixed, feedback); err != nil {
		return "", err
	}

	if t.journal != nil {
		fb := &types.Feedback{
			ID:        types.NewFeedbackID(),
			Feedback:  feedback,
			Output:    fixed,
			CreatedAt: time.Now().UTC(),
		}
		if err := t.journal.RecordFeedback(ctx, fb); err != nil {
			t.logger.Warn("failed to journal feedback", zap.Error(err))
		}
	}
	return fixed, nil
}

func (t *Translator) needsHint(unknowns, roots int) bool {
	if t.oracle == nil || t.index == nil {
		return false
	}
	threshold := roots / 3
	if threshold < 2 {
		threshold = 2
	}
	return unknowns > threshold
}

func (t *Translator) appendHint(ctx context.Context, source string, forest ir.Forest) ir.Forest {
	neighbours := t.index.TopKSimilar(source, hintNeighbours)
	hint, err := t.oracle.Chat(ctx, hintMessages(source, neighbours), t.temp)
	if err != nil {
		t.logger.Warn("hint request failed", zap.Error(err))
		return forest
	}
	flat := strings.Join(strings.Fields(hint), " ")
	return append(forest, ir.Unknown{Raw: hintPrefix + flat})
}

// repair asks the oracle once to fix compile errors. The reply is accepted
// only if it still looks like a class.
func (t *Translator) repair(ctx context.Context, java, diagnostics string) (string, bool) {
	if t.oracle == nil {
		return "", false
	}
	reply, err := t.oracle.Chat(ctx, repairMessages(java, diagnostics), t.temp)
	if err != nil {
		t.logger.Warn("repair request failed", zap.Error(err))
		return "", false
	}
	fixed := stripFences(reply)
	if !strings.Contains(fixed, "class") {
		t.logger.Info("repair reply rejected", zap.Error(types.ErrRepairRejected))
		return "", false
	}
	return fixed, true
}

func (t *Translator) record(ctx context.Context, source string, res *Result) {
	if t.journal == nil {
		return
	}
	run := &types.TranslationRun{
		ID:          res.RunID,
		Unit:        t.unit,
		Source:      source,
		Output:      res.Text,
		Verified:    res.Verified,
		Repaired:    res.Repaired,
		Diagnostics: res.Diagnostics,
		Unknowns:    res.Unknowns,
		CreatedAt:   time.Now().UTC(),
	}
	if err := t.journal.RecordRun(ctx, run); err != nil {
		t.logger.Warn("failed to journal run",
			zap.String("run_id", string(res.RunID)),
			zap.Error(err))
	}
}
