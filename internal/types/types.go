// Package types provides domain models shared across dialectc components.
//
// Zero-dependency design: types.go, rules.go and errors.go use only the
// standard library so the rule model can be imported by every layer. ID
// utilities in ids.go import uuid and are isolated from the rule model.
package types

// RunID represents a UUIDv7 translation run identifier.
// UUIDv7 time-ordering keeps journal inserts clustered in B-tree indexes.
type RunID string

// FeedbackID represents a UUIDv7 feedback record identifier.
type FeedbackID string

// Message is one chat turn sent to an oracle.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles understood by every oracle implementation.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Resource limits enforced at rule compilation and translation entry.
const (
	// MaxRegexLength bounds a single rule pattern. Learned rules come from an
	// oracle; an unbounded pattern makes every token match expensive.
	MaxRegexLength = 4096

	// MaxMiddlePatterns bounds branch transition patterns per block rule.
	MaxMiddlePatterns = 8

	// MaxSourceSize limits one source unit accepted for translation.
	MaxSourceSize = 1024 * 1024

	// DefaultUnitName names the generated class when callers pass none.
	DefaultUnitName = "TranslatedProgram"
)

// Default priorities assigned to ingested rules that carry none.
const (
	DefaultBlockPriority   = 50
	DefaultStmtPriority    = 20
	DefaultSegmentPriority = 10
	DefaultRewritePriority = 5
	DefaultOtherPriority   = 1
)

// DefaultPriority returns the ingestion default priority for a kind.
func DefaultPriority(kind RuleKind) int {
	switch kind {
	case KindBlock:
		return DefaultBlockPriority
	case KindStmt:
		return DefaultStmtPriority
	case KindSegment:
		return DefaultSegmentPriority
	case KindRewrite:
		return DefaultRewritePriority
	default:
		return DefaultOtherPriority
	}
}
