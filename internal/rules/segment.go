package rules

import (
	"regexp"
	"strings"

	"github.com/solatis/dialectc/internal/types"
)

/*
 * Segmenter: splits a source unit into trimmed, non-empty tokens.
 *
 * Segment rules form a pipeline in the order given (callers pass them in
 * priority order). Each stage maps every token of the previous stage to zero
 * or more tokens:
 *
 *   regex_outside_quotes_parens  split after each character the regex fully
 *                                matches, at paren depth 0 outside quotes;
 *                                the separator stays on the left token
 *   regex_boundary_keep          each match becomes its own token
 *   regex_split_after            a token ends at each match end
 *   regex                        regexp.Split
 *
 * Boundary-keep and split-after ignore matches starting inside a quoted span
 * and re-run the pattern on the remainder after each match, so a pattern
 * anchored with ^ matches again at the start of what is left.
 *
 * When no rule carries a recognised strategy the text is split on ';' the
 * same way regex_outside_quotes_parens does.
 */

var fallbackSeparator = regexp.MustCompile(`^(?:;)$`)

// Segment splits text using the segment rules in the given order.
func Segment(text string, rules []types.Rule) []string {
	tokens := []string{text}
	applied := false

	for _, r := range rules {
		if r.NormalizedKind() != types.KindSegment {
			continue
		}
		strategy := Strategy(r)
		if !knownStrategy(strategy) {
			continue
		}
		applied = true

		c, err := Compile(r)
		if err != nil {
			tokens = cleanTokens(tokens)
			continue
		}

		var split func(string) []string
		switch strategy {
		case types.StrategyOutsideQuotesParens:
			split = func(s string) []string { return splitOutsideQuotesParens(s, c.Regex) }
		case types.StrategyBoundaryKeep:
			split = func(s string) []string { return splitBoundaryKeep(s, c.Regex) }
		case types.StrategySplitAfter:
			split = func(s string) []string { return splitAfterMatch(s, c.Regex) }
		default:
			split = func(s string) []string { return c.Regex.Split(s, -1) }
		}

		next := make([]string, 0, len(tokens))
		for _, t := range tokens {
			next = append(next, split(t)...)
		}
		tokens = cleanTokens(next)
	}

	if !applied {
		return cleanTokens(splitOutsideQuotesParens(text, fallbackSeparator))
	}
	return cleanTokens(tokens)
}

func knownStrategy(s types.Strategy) bool {
	switch s {
	case types.StrategyOutsideQuotesParens, types.StrategyBoundaryKeep,
		types.StrategySplitAfter, types.StrategyPlain:
		return true
	}
	return false
}

func cleanTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func splitOutsideQuotesParens(s string, sep *regexp.Regexp) []string {
	var out []string
	var sb strings.Builder
	depth := 0
	var quote rune

	for _, c := range s {
		if quote != 0 {
			sb.WriteRune(c)
			if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0 && sep.MatchString(string(c)):
			sb.WriteRune(c)
			out = append(out, sb.String())
			sb.Reset()
			continue
		}
		sb.WriteRune(c)
	}
	out = append(out, sb.String())
	return out
}

func splitBoundaryKeep(s string, re *regexp.Regexp) []string {
	var out []string
	rest := s
	for rest != "" {
		loc := firstUnquotedMatch(rest, re)
		if loc == nil {
			break
		}
		out = append(out, rest[:loc[0]], rest[loc[0]:loc[1]])
		rest = rest[loc[1]:]
	}
	return append(out, rest)
}

func splitAfterMatch(s string, re *regexp.Regexp) []string {
	var out []string
	rest := s
	for rest != "" {
		loc := firstUnquotedMatch(rest, re)
		if loc == nil {
			break
		}
		out = append(out, rest[:loc[1]])
		rest = rest[loc[1]:]
	}
	return append(out, rest)
}

// firstUnquotedMatch returns the first non-empty match of re in s that does
// not start inside a quoted span.
func firstUnquotedMatch(s string, re *regexp.Regexp) []int {
	locs := re.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return nil
	}
	quoted := quotedMask(s)
	for _, loc := range locs {
		if loc[1] > loc[0] && !quoted[loc[0]] {
			return loc
		}
	}
	return nil
}

// quotedMask reports, per byte, whether the byte lies inside a quoted span.
// Opening and closing quotes count as inside.
func quotedMask(s string) []bool {
	mask := make([]bool, len(s))
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			mask[i] = true
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
			mask[i] = true
		}
	}
	return mask
}
