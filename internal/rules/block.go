package rules

import (
	"strings"

	"go.uber.org/zap"

	"github.com/solatis/dialectc/internal/ir"
	"github.com/solatis/dialectc/internal/types"
)

/*
 * Block assembly: a stack machine that nests a flat token sequence.
 *
 * Each open block is a frame holding its rule, the container node built from
 * the open captures, two node lists (then/try and else/catch) and which of
 * them is receiving tokens. Per token, first match wins:
 *
 *   1. close pattern of the top frame: pop, finish the node, append it to
 *      the enclosing frame (or the forest root)
 *   2. middle pattern of the top frame, only for branching containers:
 *      switch to the secondary list; capture 1 is the branch label
 *      (exception name), capture 2 is a trailing statement on the same token
 *   3. open pattern of any block rule, in priority order: push a frame
 *   4. otherwise: the statement matcher's node joins the current list
 *
 * Frames still open at end of input are closed innermost first and each is
 * appended to the forest root. Unbalanced input therefore still yields a
 * forest; ForceClosed reports how many frames were closed this way.
 */

type branch int

const (
	branchPrimary branch = iota
	branchSecondary
)

type frame struct {
	rule      *CompiledRule
	node      ir.Container
	branch    branch
	primary   []ir.Node
	secondary []ir.Node
	label     string
	branched  bool
}

func (f *frame) add(n ir.Node) {
	if f.branch == branchSecondary {
		f.secondary = append(f.secondary, n)
		return
	}
	f.primary = append(f.primary, n)
}

func (f *frame) finish() ir.Node {
	return f.node.Close(f.primary, f.secondary, f.label, f.branched)
}

// AssembleResult is the outcome of one assembly run.
type AssembleResult struct {
	Forest      ir.Forest
	Tokens      int
	ForceClosed int
}

// Assembler nests tokens using compiled block rules.
type Assembler struct {
	blocks  []*CompiledRule
	matcher *Matcher
	logger  *zap.Logger
}

// NewAssembler compiles the block rules among rules. Rules that fail to
// compile are skipped.
func NewAssembler(rules []types.Rule, m *Matcher, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	blocks := make([]types.Rule, 0, len(rules))
	for _, r := range rules {
		if r.NormalizedKind() == types.KindBlock {
			blocks = append(blocks, r)
		}
	}
	compiled, errs := CompileAll(blocks)
	for _, err := range errs {
		logger.Debug("skipping block rule", zap.Error(err))
	}
	return &Assembler{blocks: compiled, matcher: m, logger: logger}
}

// Assemble nests tokens with the given block rules and statement matcher.
func Assemble(tokens []string, blockRules []types.Rule, m *Matcher) ir.Forest {
	return NewAssembler(blockRules, m, nil).Run(tokens).Forest
}

// Run assembles one token sequence.
func (a *Assembler) Run(tokens []string) AssembleResult {
	var root ir.Forest
	var stack []*frame

	appendNode := func(n ir.Node) {
		if len(stack) > 0 {
			stack[len(stack)-1].add(n)
			return
		}
		root = append(root, n)
	}

	for _, tok := range tokens {
		if len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.rule.Close.MatchString(tok) {
				stack = stack[:len(stack)-1]
				appendNode(top.finish())
				continue
			}
			if top.node.Branching() && a.middle(top, tok) {
				continue
			}
		}
		if f := a.open(tok); f != nil {
			stack = append(stack, f)
			continue
		}
		appendNode(a.matcher.Match(tok))
	}

	forced := len(stack)
	for i := len(stack) - 1; i >= 0; i-- {
		a.logger.Debug("closing unterminated block",
			zap.String("rule_id", stack[i].rule.Rule.ID))
		root = append(root, stack[i].finish())
	}

	return AssembleResult{Forest: root, Tokens: len(tokens), ForceClosed: forced}
}

func (a *Assembler) middle(f *frame, tok string) bool {
	for _, re := range f.rule.Middle {
		groups, ok := captures(re, tok)
		if !ok {
			continue
		}
		f.branch = branchSecondary
		f.branched = true
		if len(groups) > 0 && groups[0] != nil {
			f.label = strings.TrimSpace(*groups[0])
		}
		if len(groups) > 1 && groups[1] != nil {
			if inline := strings.TrimSpace(*groups[1]); inline != "" {
				f.add(a.matcher.Match(inline))
			}
		}
		return true
	}
	return false
}

func (a *Assembler) open(tok string) *frame {
	for _, c := range a.blocks {
		groups, ok := captures(c.Open, tok)
		if !ok {
			continue
		}
		node, err := BuildNode(c.Rule, groups)
		if err != nil {
			a.logger.Debug("block rule opened but did not build",
				zap.String("rule_id", c.Rule.ID),
				zap.Error(err))
			continue
		}
		return &frame{rule: c, node: ir.Wrap(node)}
	}
	return nil
}
