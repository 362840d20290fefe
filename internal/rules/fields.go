package rules

import (
	"regexp"
	"strings"

	"github.com/solatis/dialectc/internal/ir"
	"github.com/solatis/dialectc/internal/types"
)

/*
 * Capture binding: turns a rule's regex captures into constructor arguments.
 *
 * The layout is the rule's fields list, one name per capture group in group
 * order. Each constructor parameter looks its name (or an alias) up in the
 * layout and takes group 1+index; a parameter absent from the layout gets no
 * value. A rule with no fields uses a positional layout built from the
 * constructor's parameters, with the trailing list parameter taking the last
 * group when there are fewer groups than parameters, so `name(args)` needs no
 * field names.
 *
 * Call keeps one layout heuristic: with exactly three slots and args in the
 * third, the first two groups are read as (first, second). A blank second
 * group means first is the callee with no namespace, otherwise second is the
 * callee and first its namespace. One regex with an optional qualifier then
 * covers both `name(args)` and `ns.name(args)`.
 */

// captures runs re against s and returns groups 1..N. A nil entry is a group
// that did not participate.
func captures(re *regexp.Regexp, s string) ([]*string, bool) {
	loc := re.FindStringSubmatchIndex(s)
	if loc == nil {
		return nil, false
	}
	groups := make([]*string, len(loc)/2-1)
	for g := 1; g < len(loc)/2; g++ {
		if loc[2*g] >= 0 {
			v := s[loc[2*g]:loc[2*g+1]]
			groups[g-1] = &v
		}
	}
	return groups, true
}

// BuildNode constructs the rule's irType from the capture groups.
func BuildNode(rule types.Rule, groups []*string) (ir.Node, error) {
	ctor, err := ir.Lookup(rule.IRType)
	if err != nil {
		return nil, err
	}

	layout := rule.Fields
	if len(layout) == 0 {
		layout = positionalLayout(ctor, len(groups))
	}

	group := func(i int) *string {
		if i < 0 || i >= len(groups) {
			return nil
		}
		return groups[i]
	}

	args := ir.Args{Values: make([]*string, len(ctor.Params))}
	for i, p := range ctor.Params {
		if idx := indexOf(layout, p); idx >= 0 {
			args.Values[i] = group(idx)
		}
		if p.List || named(rule.ListFields, p) {
			args.Lists = args.Lists.With(i)
		}
	}

	if ctor.Variant == "Call" && callShift(ctor, layout) {
		first, second := group(0), group(1)
		if second == nil || strings.TrimSpace(*second) == "" {
			args.Values[0], args.Values[1] = first, nil
		} else {
			args.Values[0], args.Values[1] = second, first
		}
	}

	return ctor.Construct(args)
}

func positionalLayout(ctor ir.Constructor, ngroups int) []string {
	n := len(ctor.Params)
	if ngroups >= n {
		layout := make([]string, n)
		for i, p := range ctor.Params {
			layout[i] = p.Name
		}
		return layout
	}
	if ngroups == 0 {
		return nil
	}

	layout := make([]string, 0, ngroups)
	last := ctor.Params[n-1]
	for _, p := range ctor.Params[:ngroups-1] {
		layout = append(layout, p.Name)
	}
	if last.List {
		return append(layout, last.Name)
	}
	return append(layout, ctor.Params[ngroups-1].Name)
}

func callShift(ctor ir.Constructor, layout []string) bool {
	return len(layout) == 3 && len(ctor.Params) == 3 && ctor.Params[2].Matches(layout[2])
}

func indexOf(layout []string, p ir.Param) int {
	for i, f := range layout {
		if p.Matches(f) {
			return i
		}
	}
	return -1
}

func named(names []string, p ir.Param) bool {
	return indexOf(names, p) >= 0
}
