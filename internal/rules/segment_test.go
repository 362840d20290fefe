package rules

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/solatis/dialectc/internal/types"
)

func segRule(id string, strategy types.Strategy, regex string, prio int) types.Rule {
	return types.Rule{ID: id, Type: types.KindSegment, Strategy: strategy, Regex: regex, Priority: prio}
}

func TestSegment_Fallback(t *testing.T) {
	got := Segment(`a := 'x;y'; f(1;2);  ; b := 2`, nil)
	want := []string{`a := 'x;y';`, `f(1;2);`, `;`, `b := 2`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Segment() mismatch (-want +got):\n%s", diff)
	}
}

func TestSegment_UnknownStrategyFallsBack(t *testing.T) {
	rs := []types.Rule{segRule("odd", "regex_magic", ";", 1)}
	got := Segment("a; b;", rs)
	if diff := cmp.Diff([]string{"a;", "b;"}, got); diff != "" {
		t.Errorf("Segment() mismatch (-want +got):\n%s", diff)
	}
}

func TestSegment_Strategies(t *testing.T) {
	semi := segRule("semi", types.StrategyOutsideQuotesParens, ";", 100)
	tests := []struct {
		name  string
		rules []types.Rule
		in    string
		want  []string
	}{
		{
			name:  "outside quotes keeps separator",
			rules: []types.Rule{semi},
			in:    `createLog('log'); deleteTune('t'); msg('done');`,
			want:  []string{"createLog('log');", "deleteTune('t');", "msg('done');"},
		},
		{
			name:  "boundary keep is case-insensitive",
			rules: []types.Rule{semi, segRule("kw", types.StrategyBoundaryKeep, `\b(BEGIN|ELSE)\b`, 90)},
			in:    "begin x := 1; else y := 2;",
			want:  []string{"begin", "x := 1;", "else", "y := 2;"},
		},
		{
			name:  "boundary keep skips quoted keywords",
			rules: []types.Rule{semi, segRule("kw", types.StrategyBoundaryKeep, `\b(BEGIN|ELSE)\b`, 90)},
			in:    "x := 'ELSE';",
			want:  []string{"x := 'ELSE';"},
		},
		{
			name:  "split after",
			rules: []types.Rule{semi, segRule("if", types.StrategySplitAfter, `\bIF\s+.+?\s+THEN\b`, 80)},
			in:    "IF a THEN IF b THEN x := 1; END IF; END IF;",
			want:  []string{"IF a THEN", "IF b THEN", "x := 1;", "END IF;", "END IF;"},
		},
		{
			name:  "anchored split after re-anchors on remainder",
			rules: []types.Rule{semi, segRule("loop", types.StrategySplitAfter, `^\s*LOOP\b`, 80)},
			in:    "LOOP LOOP x := 1; END LOOP;",
			want:  []string{"LOOP", "LOOP", "x := 1;", "END LOOP;"},
		},
		{
			name:  "plain split drops separator",
			rules: []types.Rule{segRule("nl", types.StrategyPlain, `\n+`, 1)},
			in:    "a\n\nb\n",
			want:  []string{"a", "b"},
		},
		{
			name:  "invalid regex stage is a no-op",
			rules: []types.Rule{semi, segRule("bad", types.StrategyBoundaryKeep, `(`, 50)},
			in:    "a; b;",
			want:  []string{"a;", "b;"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Segment(tt.in, tt.rules)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Segment() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSegment_NoEmptyTokens(t *testing.T) {
	rs := []types.Rule{
		segRule("semi", types.StrategyOutsideQuotesParens, ";", 100),
		segRule("kw", types.StrategyBoundaryKeep, `\bBEGIN\b`, 90),
	}
	for _, tok := range Segment(" ;; BEGIN ;\n\t; BEGIN", rs) {
		if tok == "" {
			t.Fatal("Segment() produced an empty token")
		}
	}
}
