// Package ir defines the intermediate tree produced by block assembly and
// consumed by code generation.
//
// The variant set is closed: every node type lives in this file and
// implements the unexported node marker. Nodes are value types; a finished
// node is never mutated, and each node is owned by exactly one parent list or
// by the forest root.
package ir

// Kind identifies an IR node variant.
type Kind int

const (
	KindAssign Kind = iota
	KindCall
	KindDecl
	KindIf
	KindLoop
	KindTryCatch
	KindPragma
	KindBlock
	KindUnknown
)

var kindNames = [...]string{
	KindAssign:   "Assign",
	KindCall:     "Call",
	KindDecl:     "Decl",
	KindIf:       "If",
	KindLoop:     "Loop",
	KindTryCatch: "TryCatch",
	KindPragma:   "Pragma",
	KindBlock:    "Block",
	KindUnknown:  "Unknown",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(?)"
}

// Node is the root IR interface.
type Node interface {
	Kind() Kind
	node()
}

// Forest is the ordered list of root nodes for one source unit.
type Forest []Node

// Assign binds Expr to Name.
type Assign struct {
	Name string
	Expr string
}

// Call invokes Callee, optionally qualified by Namespace.
type Call struct {
	Namespace string
	Callee    string
	Args      []string // raw expression text per argument
}

// Decl declares Name with an explicit Type.
type Decl struct {
	Name string
	Type string
}

// If is a two-branch conditional.
type If struct {
	Cond string
	Then []Node
	Else []Node
}

// Loop carries its header text unparsed.
type Loop struct {
	Header string
	Body   []Node
}

// TryCatch guards Try with a single handler for ExceptionName.
type TryCatch struct {
	Try           []Node
	ExceptionName string
	Catch         []Node
}

// Pragma is a compiler directive; only "error" has an effect.
type Pragma struct {
	Name string
	Args []string
}

// Block is an anonymous grouping such as BEGIN/END.
type Block struct {
	Body []Node
}

// Unknown preserves a token no rule recognised.
type Unknown struct {
	Raw string
}

func (Assign) Kind() Kind   { return KindAssign }
func (Call) Kind() Kind     { return KindCall }
func (Decl) Kind() Kind     { return KindDecl }
func (If) Kind() Kind       { return KindIf }
func (Loop) Kind() Kind     { return KindLoop }
func (TryCatch) Kind() Kind { return KindTryCatch }
func (Pragma) Kind() Kind   { return KindPragma }
func (Block) Kind() Kind    { return KindBlock }
func (Unknown) Kind() Kind  { return KindUnknown }

func (Assign) node()   {}
func (Call) node()     {}
func (Decl) node()     {}
func (If) node()       {}
func (Loop) node()     {}
func (TryCatch) node() {}
func (Pragma) node()   {}
func (Block) node()    {}
func (Unknown) node()  {}

// Container is implemented by variants that a block rule can open.
//
// Branching reports whether the variant owns a secondary list (else/catch).
// Close returns the finished node built from the accumulated branch lists.
// label is the text captured by the middle pattern that switched branches
// and branched reports whether any middle pattern matched.
type Container interface {
	Node
	Branching() bool
	Close(primary, secondary []Node, label string, branched bool) Node
}

func (If) Branching() bool { return true }

func (n If) Close(primary, secondary []Node, _ string, _ bool) Node {
	return If{Cond: n.Cond, Then: primary, Else: secondary}
}

func (Loop) Branching() bool { return false }

func (n Loop) Close(primary, _ []Node, _ string, _ bool) Node {
	return Loop{Header: n.Header, Body: primary}
}

func (TryCatch) Branching() bool { return true }

// Close degrades to a plain Block when no handler was seen, so a single
// BEGIN/END rule serves both guarded and unguarded blocks.
func (n TryCatch) Close(primary, secondary []Node, label string, branched bool) Node {
	if !branched {
		return Block{Body: primary}
	}
	name := n.ExceptionName
	if label != "" {
		name = label
	}
	return TryCatch{Try: primary, ExceptionName: name, Catch: secondary}
}

func (Block) Branching() bool { return false }

func (Block) Close(primary, _ []Node, _ string, _ bool) Node {
	return Block{Body: primary}
}

// Wrap adapts a node that a block rule opened but that owns no child lists,
// such as an Unknown header. The finished node is a Block whose first entry
// is the header.
func Wrap(n Node) Container {
	if c, ok := n.(Container); ok {
		return c
	}
	return wrapped{head: n}
}

type wrapped struct {
	head Node
}

func (wrapped) Kind() Kind      { return KindBlock }
func (wrapped) node()           {}
func (wrapped) Branching() bool { return false }

func (w wrapped) Close(primary, _ []Node, _ string, _ bool) Node {
	body := make([]Node, 0, len(primary)+1)
	body = append(body, w.head)
	return Block{Body: append(body, primary...)}
}

// Children returns the child lists of n in source order.
func Children(n Node) [][]Node {
	switch v := n.(type) {
	case If:
		return [][]Node{v.Then, v.Else}
	case Loop:
		return [][]Node{v.Body}
	case TryCatch:
		return [][]Node{v.Try, v.Catch}
	case Block:
		return [][]Node{v.Body}
	default:
		return nil
	}
}

// Walk visits nodes depth-first in source order. Returning false from fn
// skips the children of that node.
func Walk(nodes []Node, fn func(Node) bool) {
	for _, n := range nodes {
		if !fn(n) {
			continue
		}
		for _, list := range Children(n) {
			Walk(list, fn)
		}
	}
}

// CountUnknown returns the number of Unknown nodes anywhere in nodes.
func CountUnknown(nodes []Node) int {
	count := 0
	Walk(nodes, func(n Node) bool {
		if n.Kind() == KindUnknown {
			count++
		}
		return true
	})
	return count
}
