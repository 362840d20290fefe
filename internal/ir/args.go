package ir

import (
	"fmt"
	"strings"

	"github.com/solatis/dialectc/internal/types"
)

// ListMask flags argument positions whose capture is a comma list.
type ListMask uint64

// With returns m with position i set.
func (m ListMask) With(i int) ListMask {
	return m | 1<<uint(i)
}

// Has reports whether position i is flagged.
func (m ListMask) Has(i int) bool {
	return i < 64 && m&(1<<uint(i)) != 0
}

// Args is the ordered capture values handed to a constructor.
// A nil entry means the group did not participate in the match.
type Args struct {
	Values []*string
	Lists  ListMask
}

// String returns the trimmed capture at i, or "" when absent.
func (a Args) String(i int) string {
	if i >= len(a.Values) || a.Values[i] == nil {
		return ""
	}
	return strings.TrimSpace(*a.Values[i])
}

// Present reports whether position i captured anything.
func (a Args) Present(i int) bool {
	return i < len(a.Values) && a.Values[i] != nil
}

// List splits the capture at i into trimmed arguments.
// A blank or absent capture yields an empty list.
func (a Args) List(i int) []string {
	return SplitList(a.String(i))
}

func (a Args) requireScalars(variant string, n int) error {
	for i := 0; i < n; i++ {
		if a.Lists.Has(i) && !listParam(variant, i) {
			return fmt.Errorf("%w: %s position %d", types.ErrListShape, variant, i)
		}
	}
	return nil
}

func listParam(variant string, i int) bool {
	c, ok := registry[variant]
	if !ok || i >= len(c.Params) {
		return false
	}
	return c.Params[i].List
}

// SplitList splits s on commas at paren depth 0 outside quoted spans.
// Nested calls such as foo(a,b) stay one argument.
func SplitList(s string) []string {
	out := []string{}
	if strings.TrimSpace(s) == "" {
		return out
	}

	var sb strings.Builder
	depth := 0
	var quote byte

	flush := func() {
		out = append(out, strings.TrimSpace(sb.String()))
		sb.Reset()
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			sb.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"':
			quote = c
		case c == '(' || c == '[':
			depth++
		case (c == ')' || c == ']') && depth > 0:
			depth--
		case c == ',' && depth == 0:
			flush()
			continue
		}
		sb.WriteByte(c)
	}
	flush()
	return out
}
