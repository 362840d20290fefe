// internal/ir/registry.go
package ir

import (
	"fmt"
	"sort"
	"strings"

	"github.com/solatis/dialectc/internal/types"
)

/*
 * Constructor registry for rule-declared IR variants.
 *
 * Rules name the variant they build by string (irType). The registry maps
 * each name to a Constructor: an ordered parameter list plus a build func
 * taking the ordered optional capture values and a list-field mask. New rules
 * can reference any registered variant without code changes.
 *
 * Parameter order is the positional order used when a rule declares no
 * fields. Call is (callee, namespace, args) so that a two-group rule such as
 * `name(args)` never needs field names.
 */

// Param describes one constructor parameter.
type Param struct {
	Name     string
	Aliases  []string
	List     bool // always list-split
	Required bool // blank capture is a construction error
}

// Matches reports whether a rule field name refers to this parameter.
func (p Param) Matches(field string) bool {
	field = strings.TrimSpace(field)
	if strings.EqualFold(field, p.Name) {
		return true
	}
	for _, a := range p.Aliases {
		if strings.EqualFold(field, a) {
			return true
		}
	}
	return false
}

// Constructor builds one variant from ordered capture values.
type Constructor struct {
	Variant string
	Params  []Param
	Build   func(Args) (Node, error)
}

var registry = map[string]Constructor{}

// aliases maps alternate irType spellings seen in learned rules.
var aliases = map[string]string{
	"try":         "TryCatch",
	"trycatch":    "TryCatch",
	"unknownnode": "Unknown",
	"ifnode":      "If",
	"begin":       "Block",
}

func register(c Constructor) {
	registry[c.Variant] = c
}

func init() {
	register(Constructor{
		Variant: "Assign",
		Params: []Param{
			{Name: "name", Aliases: []string{"target", "var"}, Required: true},
			{Name: "expr", Aliases: []string{"value", "rhs"}},
		},
		Build: func(a Args) (Node, error) {
			if err := a.requireScalars("Assign", 2); err != nil {
				return nil, err
			}
			return Assign{Name: a.String(0), Expr: a.String(1)}, nil
		},
	})
	register(Constructor{
		Variant: "Call",
		Params: []Param{
			{Name: "callee", Aliases: []string{"name", "fn", "func"}, Required: true},
			{Name: "namespace", Aliases: []string{"ns", "pkg", "package", "owner"}},
			{Name: "args", Aliases: []string{"arguments", "params"}, List: true},
		},
		Build: func(a Args) (Node, error) {
			if err := a.requireScalars("Call", 2); err != nil {
				return nil, err
			}
			return Call{Callee: a.String(0), Namespace: a.String(1), Args: a.List(2)}, nil
		},
	})
	register(Constructor{
		Variant: "Decl",
		Params: []Param{
			{Name: "name", Aliases: []string{"var"}, Required: true},
			{Name: "type", Aliases: []string{"typ", "datatype"}},
		},
		Build: func(a Args) (Node, error) {
			if err := a.requireScalars("Decl", 2); err != nil {
				return nil, err
			}
			return Decl{Name: a.String(0), Type: a.String(1)}, nil
		},
	})
	register(Constructor{
		Variant: "If",
		Params:  []Param{{Name: "cond", Aliases: []string{"condition", "raw"}}},
		Build: func(a Args) (Node, error) {
			if err := a.requireScalars("If", 1); err != nil {
				return nil, err
			}
			return If{Cond: a.String(0)}, nil
		},
	})
	register(Constructor{
		Variant: "Loop",
		Params:  []Param{{Name: "header", Aliases: []string{"cond", "condition", "raw"}}},
		Build: func(a Args) (Node, error) {
			if err := a.requireScalars("Loop", 1); err != nil {
				return nil, err
			}
			return Loop{Header: a.String(0)}, nil
		},
	})
	register(Constructor{
		Variant: "TryCatch",
		Params:  []Param{{Name: "exceptionName", Aliases: []string{"exception", "name"}}},
		Build: func(a Args) (Node, error) {
			if err := a.requireScalars("TryCatch", 1); err != nil {
				return nil, err
			}
			return TryCatch{ExceptionName: a.String(0)}, nil
		},
	})
	register(Constructor{
		Variant: "Pragma",
		Params: []Param{
			{Name: "name", Required: true},
			{Name: "args", Aliases: []string{"arguments"}, List: true},
		},
		Build: func(a Args) (Node, error) {
			if err := a.requireScalars("Pragma", 1); err != nil {
				return nil, err
			}
			return Pragma{Name: a.String(0), Args: a.List(1)}, nil
		},
	})
	register(Constructor{
		Variant: "Block",
		Build: func(Args) (Node, error) {
			return Block{}, nil
		},
	})
	register(Constructor{
		Variant: "Unknown",
		Params:  []Param{{Name: "raw"}},
		Build: func(a Args) (Node, error) {
			return Unknown{Raw: a.String(0)}, nil
		},
	})
}

// Lookup returns the constructor for a variant name. Exact names win; a
// case-insensitive match and a few learned-rule spellings are accepted.
func Lookup(variant string) (Constructor, error) {
	variant = strings.TrimSpace(variant)
	if c, ok := registry[variant]; ok {
		return c, nil
	}
	lower := strings.ToLower(variant)
	if name, ok := aliases[lower]; ok {
		return registry[name], nil
	}
	for name, c := range registry {
		if strings.ToLower(name) == lower {
			return c, nil
		}
	}
	return Constructor{}, fmt.Errorf("%w: %q", types.ErrUnknownVariant, variant)
}

// Variants returns the registered variant names, sorted.
func Variants() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Construct runs the constructor and enforces required parameters.
func (c Constructor) Construct(a Args) (Node, error) {
	for i, p := range c.Params {
		if p.Required && strings.TrimSpace(a.String(i)) == "" {
			return nil, fmt.Errorf("%w: %s.%s", types.ErrMissingField, c.Variant, p.Name)
		}
	}
	return c.Build(a)
}
