// internal/rules/compile.go
package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/solatis/dialectc/internal/ir"
	"github.com/solatis/dialectc/internal/types"
)

/*
 * Rule compilation and validation.
 *
 * Compiles types.Rule to CompiledRule with every pattern pre-compiled in the
 * form its engine uses, after validating kind-specific required fields and
 * resource limits.
 *
 * Compilation workflow:
 *   1. Validate required fields for the rule kind
 *   2. Validate resource limits (pattern length, middle count)
 *   3. Compile patterns (statement/block: case-insensitive full match;
 *      boundary-keep/split-after segments: case-insensitive search;
 *      other segments and rewrites: as written)
 *   4. Order rules by descending priority (stable sort for determinism)
 *
 * Equal-priority rules keep insertion order so that merging a rule in place
 * never changes which of two equally ranked rules wins.
 */

// CompiledRule is a validated rule with its patterns ready for matching.
type CompiledRule struct {
	Rule    types.Rule
	Kind    types.RuleKind
	Regex   *regexp.Regexp   // stmt (full match) or segment
	Open    *regexp.Regexp   // block
	Close   *regexp.Regexp   // block
	Middle  []*regexp.Regexp // block
	Pattern *regexp.Regexp   // rewrite (nil for the macro unwrapper)
	Replace string           // rewrite, Go expansion template
}

// Validate checks the fields a rule of its kind must carry.
func Validate(rule types.Rule) error {
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }

	switch rule.NormalizedKind() {
	case types.KindStmt:
		if blank(rule.Regex) || blank(rule.IRType) {
			return fmt.Errorf("%w: stmt %q needs regex and irType", types.ErrInvalidRule, rule.ID)
		}
	case types.KindBlock:
		if blank(rule.Open) || blank(rule.Close) || blank(rule.IRType) {
			return fmt.Errorf("%w: block %q needs open, close and irType", types.ErrInvalidRule, rule.ID)
		}
		if len(rule.Middle) > types.MaxMiddlePatterns {
			return types.ErrTooManyMiddles
		}
	case types.KindSegment:
		if blank(string(rule.Strategy)) || blank(rule.Regex) {
			return fmt.Errorf("%w: segment %q needs strategy and regex", types.ErrInvalidRule, rule.ID)
		}
	case types.KindRewrite:
		if rule.IsMacroUnwrap() {
			return nil
		}
		if blank(rule.Pattern) || rule.Replace == nil {
			return fmt.Errorf("%w: rewrite %q needs pattern and replace", types.ErrInvalidRule, rule.ID)
		}
	default:
		return fmt.Errorf("%w: %q", types.ErrUnknownKind, rule.Type)
	}

	if kind := rule.NormalizedKind(); kind == types.KindStmt || kind == types.KindBlock {
		if _, err := ir.Lookup(rule.IRType); err != nil {
			return fmt.Errorf("%w: %s %q: %w", types.ErrInvalidRule, kind, rule.ID, err)
		}
	}

	for _, p := range append([]string{rule.Regex, rule.Open, rule.Close, rule.Pattern}, rule.Middle...) {
		if len(p) > types.MaxRegexLength {
			return types.ErrRegexTooLong
		}
	}
	return nil
}

// Compile validates a rule and pre-compiles its patterns.
func Compile(rule types.Rule) (*CompiledRule, error) {
	if err := Validate(rule); err != nil {
		return nil, err
	}

	c := &CompiledRule{Rule: rule, Kind: rule.NormalizedKind()}
	var err error

	switch c.Kind {
	case types.KindStmt:
		if c.Regex, err = compileFull(rule.Regex, true); err != nil {
			return nil, fmt.Errorf("stmt %q regex: %w", rule.ID, err)
		}
	case types.KindBlock:
		if c.Open, err = compileFull(rule.Open, true); err != nil {
			return nil, fmt.Errorf("block %q open: %w", rule.ID, err)
		}
		if c.Close, err = compileFull(rule.Close, true); err != nil {
			return nil, fmt.Errorf("block %q close: %w", rule.ID, err)
		}
		for _, m := range rule.Middle {
			re, err := compileFull(m, true)
			if err != nil {
				return nil, fmt.Errorf("block %q middle: %w", rule.ID, err)
			}
			c.Middle = append(c.Middle, re)
		}
	case types.KindSegment:
		if c.Regex, err = compileSegment(rule); err != nil {
			return nil, fmt.Errorf("segment %q regex: %w", rule.ID, err)
		}
	case types.KindRewrite:
		if rule.IsMacroUnwrap() {
			return c, nil
		}
		if c.Pattern, err = compileSearch(rule.Pattern, false); err != nil {
			return nil, fmt.Errorf("rewrite %q pattern: %w", rule.ID, err)
		}
		c.Replace = expandTemplate(rule.ReplaceText())
	}

	return c, nil
}

func compileSegment(rule types.Rule) (*regexp.Regexp, error) {
	switch Strategy(rule) {
	case types.StrategyOutsideQuotesParens:
		return compileFull(rule.Regex, false)
	case types.StrategyBoundaryKeep, types.StrategySplitAfter:
		return compileSearch(rule.Regex, true)
	default:
		return compileSearch(rule.Regex, false)
	}
}

// Strategy returns the normalized segment strategy of a rule.
func Strategy(rule types.Rule) types.Strategy {
	return types.Strategy(strings.ToLower(strings.TrimSpace(string(rule.Strategy))))
}

// CompileAll compiles every rule, returning the compiled rules ordered by
// descending priority and one error per rejected rule.
func CompileAll(rules []types.Rule) ([]*CompiledRule, []error) {
	compiled := make([]*CompiledRule, 0, len(rules))
	var errs []error

	for _, r := range rules {
		c, err := Compile(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		compiled = append(compiled, c)
	}

	// Stable sort: equal-priority rules keep insertion order
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Rule.Priority > compiled[j].Rule.Priority
	})

	return compiled, errs
}

// SortByPriority returns a copy of rules ordered by descending priority.
func SortByPriority(rules []types.Rule) []types.Rule {
	out := make([]types.Rule, len(rules))
	copy(out, rules)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// expandTemplate converts a replacement string written with $1 group
// references and backslash escapes into a regexp.Expand template.
func expandTemplate(repl string) string {
	var sb strings.Builder
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		switch {
		case c == '\\' && i+1 < len(repl):
			i++
			if repl[i] == '$' {
				sb.WriteString("$$")
			} else {
				sb.WriteByte(repl[i])
			}
		case c == '$' && i+1 < len(repl) && isDigit(repl[i+1]):
			j := i + 1
			for j < len(repl) && isDigit(repl[j]) {
				j++
			}
			sb.WriteString("${" + repl[i+1:j] + "}")
			i = j - 1
		case c == '$' && i+1 < len(repl) && repl[i+1] == '{':
			end := strings.IndexByte(repl[i:], '}')
			if end < 0 {
				sb.WriteString("$$")
				continue
			}
			sb.WriteString(repl[i : i+end+1])
			i += end
		case c == '$':
			sb.WriteString("$$")
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
