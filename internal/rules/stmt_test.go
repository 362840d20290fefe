package rules

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/dialectc/internal/ir"
	"github.com/solatis/dialectc/internal/types"
)

var callRule = types.Rule{
	ID:         "call",
	Type:       types.KindStmt,
	IRType:     "Call",
	Regex:      `([A-Za-z_]\w*)(?:\s*\.\s*([A-Za-z_]\w*))?\s*\((.*)\)\s*;?`,
	Fields:     []string{"ns", "callee", "args"},
	ListFields: []string{"args"},
	Priority:   20,
}

var assignRule = types.Rule{
	ID:       "assign",
	Type:     types.KindStmt,
	IRType:   "Assign",
	Regex:    `\s*([A-Za-z_][\w.]*)\s*:=\s*(.+?)\s*;?\s*`,
	Fields:   []string{"name", "expr"},
	Priority: 30,
}

func TestMatcher_Match(t *testing.T) {
	m := NewMatcher([]types.Rule{callRule, assignRule})

	tests := []struct {
		token string
		want  ir.Node
	}{
		{"x := 1;", ir.Assign{Name: "x", Expr: "1"}},
		{"X := lookup('a, b');", ir.Assign{Name: "X", Expr: "lookup('a, b')"}},
		{"msg(foo(bar));", ir.Call{Callee: "msg", Args: []string{"foo(bar)"}}},
		{"pkg.run(a, f(b, c));", ir.Call{Namespace: "pkg", Callee: "run", Args: []string{"a", "f(b, c)"}}},
		{"flush();", ir.Call{Callee: "flush", Args: []string{}}},
		{"END;", ir.Unknown{Raw: "END;"}},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got := m.Match(tt.token)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Match(%q) mismatch (-want +got):\n%s", tt.token, diff)
			}
		})
	}
}

func TestMatcher_FieldsResolvedByName(t *testing.T) {
	// Groups appear in the opposite order of the Assign constructor.
	r := types.Rule{
		ID: "rev", Type: types.KindStmt, IRType: "Assign",
		Regex:  `LET\s+(.+?)\s+INTO\s+(\w+);?`,
		Fields: []string{"expr", "name"},
	}
	got := NewMatcher([]types.Rule{r}).Match("LET 1 + 2 INTO total;")
	if diff := cmp.Diff(ir.Assign{Name: "total", Expr: "1 + 2"}, got); diff != "" {
		t.Errorf("Match() mismatch (-want +got):\n%s", diff)
	}
}

func TestMatcher_PositionalWithoutFields(t *testing.T) {
	r := types.Rule{ID: "p", Type: types.KindStmt, IRType: "Call", Regex: `(\w+)\((.*)\);?`}
	got := NewMatcher([]types.Rule{r}).Match("go(1, 2);")
	if diff := cmp.Diff(ir.Call{Callee: "go", Args: []string{"1", "2"}}, got); diff != "" {
		t.Errorf("Match() mismatch (-want +got):\n%s", diff)
	}
}

func TestMatcher_FallsThroughOnConstructionFailure(t *testing.T) {
	rs := []types.Rule{
		{ID: "ghost", Type: types.KindStmt, IRType: "Lambda", Regex: `.*`, Priority: 99},
		{ID: "shape", Type: types.KindStmt, IRType: "Assign", Regex: `(\w+)=(.*)`,
			Fields: []string{"name", "expr"}, ListFields: []string{"expr"}, Priority: 50},
		{ID: "blank", Type: types.KindStmt, IRType: "Assign", Regex: `()=(.*)`, Priority: 40},
		{ID: "ok", Type: types.KindStmt, IRType: "Unknown", Regex: `(.*)`, Fields: []string{"raw"}, Priority: 1},
	}
	got := NewMatcher(rs).Match("a=1")
	if diff := cmp.Diff(ir.Unknown{Raw: "a=1"}, got); diff != "" {
		t.Errorf("Match() mismatch (-want +got):\n%s", diff)
	}
}

func TestMatcher_Refresh(t *testing.T) {
	m := NewMatcher(nil)
	if got := m.Match("x := 1;"); got.Kind() != ir.KindUnknown {
		t.Fatalf("empty matcher returned %v", got)
	}
	errs := m.Refresh([]types.Rule{assignRule, {ID: "bad", Type: types.KindStmt, IRType: "Assign", Regex: "("}})
	if len(errs) != 1 {
		t.Errorf("Refresh() errors = %d, want 1", len(errs))
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
	if got := m.Match("x := 1;"); got.Kind() != ir.KindAssign {
		t.Errorf("refreshed matcher returned %v", got)
	}
}

func TestMatcher_NilReceiver(t *testing.T) {
	var m *Matcher
	if got := m.Match("anything"); got != (ir.Unknown{Raw: "anything"}) {
		t.Errorf("nil Matcher.Match() = %v", got)
	}
}

func TestBuildNode_CallShift(t *testing.T) {
	s := func(v string) *string { return &v }
	tests := []struct {
		name   string
		fields []string
		groups []*string
		want   ir.Call
	}{
		{"unqualified", []string{"ns", "callee", "args"}, []*string{s("msg"), nil, s("x")},
			ir.Call{Callee: "msg", Args: []string{"x"}}},
		{"qualified", []string{"ns", "callee", "args"}, []*string{s("pkg"), s("fn"), s("")},
			ir.Call{Namespace: "pkg", Callee: "fn", Args: []string{}}},
		{"positional", nil, []*string{s("a"), s(" "), s("1,2")},
			ir.Call{Callee: "a", Args: []string{"1", "2"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := types.Rule{ID: "c", Type: types.KindStmt, IRType: "Call", Regex: "x", Fields: tt.fields}
			got, err := BuildNode(r, tt.groups)
			if err != nil {
				t.Fatalf("BuildNode() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("BuildNode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// Property: a token no rule matches always comes back as Unknown with the
// token unchanged.
func TestMatcher_PropertyUnmatchedIsUnknown(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	// Only matches tokens starting with '#', which the generator never emits.
	rs := []types.Rule{
		{ID: "hash", Type: types.KindStmt, IRType: "Assign", Regex: `#(\w+)=(.*)`, Fields: []string{"name", "expr"}},
	}
	m := NewMatcher(rs)

	properties.Property("Match(t) == Unknown{t}", prop.ForAll(
		func(tok string) bool {
			return m.Match(tok) == ir.Node(ir.Unknown{Raw: tok})
		},
		gen.AnyString().SuchThat(func(s string) bool {
			return len(s) == 0 || s[0] != '#'
		}),
	))

	properties.TestingRun(t)
}
