// internal/types/rules.go
package types

import "strings"

/*
 * Rule records consumed by the rewrite, segment, statement and block engines.
 *
 * A Rule is a flat record whose populated fields depend on Type. The JSON
 * field names are the persisted rules.jsonl format and must not change:
 *
 *   segment: strategy, regex
 *   stmt:    irType, regex, fields, listFields
 *   block:   irType, open, middle, close, fields
 *   rewrite: pattern, replace (or the reserved id MacroUnwrapRuleID)
 *
 * Confidence and Support are learning metadata. They round-trip through the
 * store but no engine reads them.
 */

// RuleKind identifies which engine consumes a rule.
type RuleKind string

const (
	KindSegment RuleKind = "segment"
	KindStmt    RuleKind = "stmt"
	KindBlock   RuleKind = "block"
	KindRewrite RuleKind = "rewrite"
)

// Strategy selects how a segment rule splits its input.
type Strategy string

const (
	// StrategyOutsideQuotesParens splits on single separator characters at
	// paren depth 0 and outside quotes, keeping the separator.
	StrategyOutsideQuotesParens Strategy = "regex_outside_quotes_parens"
	// StrategyBoundaryKeep emits each match as a standalone token.
	StrategyBoundaryKeep Strategy = "regex_boundary_keep"
	// StrategySplitAfter ends a token at each match end.
	StrategySplitAfter Strategy = "regex_split_after"
	// StrategyPlain is a conventional regex split.
	StrategyPlain Strategy = "regex"
	// StrategyRegexReplace only appears in learning output; ingestion turns
	// such segment rules into rewrite rules.
	StrategyRegexReplace Strategy = "regex_replace"
)

// MacroUnwrapRuleID selects the built-in balanced-paren macro unwrapper
// instead of pattern/replace substitution.
const MacroUnwrapRuleID = "rw_amp_macro_strict"

// Rule is one persisted grammar rule.
type Rule struct {
	ID         string   `json:"id"`
	Type       RuleKind `json:"type"`
	Strategy   Strategy `json:"strategy,omitempty"`
	Regex      string   `json:"regex,omitempty"`
	IRType     string   `json:"irType,omitempty"`
	Fields     []string `json:"fields,omitempty"`
	ListFields []string `json:"listFields,omitempty"`
	Open       string   `json:"open,omitempty"`
	Middle     []string `json:"middle,omitempty"`
	Close      string   `json:"close,omitempty"`
	Pattern    string   `json:"pattern,omitempty"`
	Replace    *string  `json:"replace,omitempty"` // nil = absent, "" = delete match
	Priority   int      `json:"priority"`
	Confidence float64  `json:"confidence,omitempty"`
	Support    int      `json:"support,omitempty"`
}

// NormalizedKind returns the lower-cased kind, defaulting blank to stmt.
func (r Rule) NormalizedKind() RuleKind {
	k := RuleKind(strings.ToLower(strings.TrimSpace(string(r.Type))))
	if k == "" {
		return KindStmt
	}
	return k
}

// IsMacroUnwrap reports whether the rule selects the built-in unwrapper.
func (r Rule) IsMacroUnwrap() bool {
	return r.ID == MacroUnwrapRuleID
}

// ReplaceText returns the replacement text, or "" when absent.
func (r Rule) ReplaceText() string {
	if r.Replace == nil {
		return ""
	}
	return *r.Replace
}

// StringPtr returns a pointer to s. Used for Rule.Replace literals.
func StringPtr(s string) *string {
	return &s
}
