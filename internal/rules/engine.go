package rules

import (
	"sync"

	"go.uber.org/zap"

	"github.com/solatis/dialectc/internal/types"
)

// Engine runs the parse half of the pipeline (rewrite, segment, statement
// match, block assembly) against the current repository contents. The
// statement matcher is rebuilt only when the repository version changes.
type Engine struct {
	repo   *Repository
	logger *zap.Logger

	mu      sync.Mutex
	matcher *Matcher
	version uint64
	built   bool
}

// NewEngine creates an engine over repo.
func NewEngine(repo *Repository, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{repo: repo, logger: logger}
}

// Repository returns the backing rule repository.
func (e *Engine) Repository() *Repository {
	return e.repo
}

// Rewrite applies the rewrite rules to source.
func (e *Engine) Rewrite(source string) string {
	return ApplyRewrites(source, e.repo.OfKind(types.KindRewrite))
}

// Tokens rewrites and segments source.
func (e *Engine) Tokens(source string) []string {
	return Segment(e.Rewrite(source), e.repo.OfKind(types.KindSegment))
}

// Parse returns the assembled forest for source.
func (e *Engine) Parse(source string) AssembleResult {
	tokens := e.Tokens(source)
	asm := NewAssembler(e.repo.OfKind(types.KindBlock), e.Matcher(), e.logger)
	res := asm.Run(tokens)
	if res.ForceClosed > 0 {
		e.logger.Warn("unterminated blocks closed at end of input",
			zap.Int("force_closed", res.ForceClosed),
			zap.Int("tokens", res.Tokens))
	}
	return res
}

// Matcher returns a statement matcher current with the repository.
func (e *Engine) Matcher() *Matcher {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.repo.Version()
	if e.built && v == e.version {
		return e.matcher
	}
	stmts := e.repo.OfKind(types.KindStmt)
	if e.matcher == nil {
		e.matcher = NewMatcher(stmts, WithMatcherLogger(e.logger))
	} else {
		e.matcher.Refresh(stmts)
	}
	e.version, e.built = v, true
	e.logger.Debug("statement matcher refreshed",
		zap.Uint64("version", v),
		zap.Int("rules", e.matcher.Len()))
	return e.matcher
}
