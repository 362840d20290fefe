package rules

import (
	"sync"

	"go.uber.org/zap"

	"github.com/solatis/dialectc/internal/ir"
	"github.com/solatis/dialectc/internal/types"
)

// Matcher turns single tokens into IR nodes using statement rules.
//
// Rules are tried in descending priority; the first rule whose regex matches
// the whole token (case-insensitive) and whose node builds wins. A token no
// rule accepts becomes ir.Unknown. Match is safe for concurrent use with
// Refresh.
type Matcher struct {
	mu     sync.RWMutex
	rules  []*CompiledRule
	logger *zap.Logger
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithMatcherLogger sets the logger used to report rejected rules.
func WithMatcherLogger(logger *zap.Logger) MatcherOption {
	return func(m *Matcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMatcher compiles the statement rules among rules.
func NewMatcher(rules []types.Rule, opts ...MatcherOption) *Matcher {
	m := &Matcher{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	m.Refresh(rules)
	return m
}

// Refresh replaces the rule set. Rules that fail to compile are skipped and
// returned as errors.
func (m *Matcher) Refresh(rules []types.Rule) []error {
	stmts := make([]types.Rule, 0, len(rules))
	for _, r := range rules {
		if r.NormalizedKind() == types.KindStmt {
			stmts = append(stmts, r)
		}
	}
	compiled, errs := CompileAll(stmts)
	for _, err := range errs {
		m.logger.Debug("skipping statement rule", zap.Error(err))
	}

	m.mu.Lock()
	m.rules = compiled
	m.mu.Unlock()
	return errs
}

// Len returns the number of usable statement rules.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}

// Match returns the node built by the first accepting rule, or
// ir.Unknown{Raw: token}.
func (m *Matcher) Match(token string) ir.Node {
	if m == nil {
		return ir.Unknown{Raw: token}
	}

	m.mu.RLock()
	rules := m.rules
	m.mu.RUnlock()

	for _, c := range rules {
		groups, ok := captures(c.Regex, token)
		if !ok {
			continue
		}
		node, err := BuildNode(c.Rule, groups)
		if err != nil {
			m.logger.Debug("statement rule matched but did not build",
				zap.String("rule_id", c.Rule.ID),
				zap.Error(err))
			continue
		}
		return node
	}
	return ir.Unknown{Raw: token}
}
