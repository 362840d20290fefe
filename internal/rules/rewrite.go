package rules

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/solatis/dialectc/internal/types"
)

// ApplyRewrites runs each rewrite rule over text in the given order. A rule
// whose pattern does not compile leaves the text unchanged.
func ApplyRewrites(text string, rules []types.Rule) string {
	for _, r := range rules {
		if r.NormalizedKind() != types.KindRewrite {
			continue
		}
		if r.IsMacroUnwrap() {
			text = UnwrapMacros(text)
			continue
		}
		c, err := Compile(r)
		if err != nil {
			continue
		}
		text = c.Pattern.ReplaceAllString(text, c.Replace)
	}
	return text
}

// UnwrapMacros rewrites &name(args) to name(args).
//
// A marker is an & not preceded by an identifier character or another &,
// followed by an identifier, optional whitespace and an opening paren. The
// argument list is copied up to its balanced closing paren, with parens inside
// quoted spans ignored, and is itself unwrapped. When the list never closes
// the rest of the input is copied unchanged. Running UnwrapMacros on its own
// output returns the output.
func UnwrapMacros(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))

	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			sb.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			sb.WriteByte(c)
			continue
		}
		if c != '&' || (i > 0 && (s[i-1] == '&' || endsWithIdent(s[:i]))) {
			sb.WriteByte(c)
			continue
		}

		open, ok := macroHead(s, i+1)
		if !ok {
			sb.WriteByte(c)
			continue
		}
		end, ok := closingParen(s, open)
		if !ok {
			sb.WriteString(s[i:])
			return sb.String()
		}
		sb.WriteString(s[i+1 : open+1])
		sb.WriteString(UnwrapMacros(s[open+1 : end]))
		sb.WriteByte(')')
		i = end
	}
	return sb.String()
}

// macroHead scans an identifier and optional whitespace starting at i and
// returns the index of the following '('.
func macroHead(s string, i int) (int, bool) {
	if i >= len(s) {
		return 0, false
	}
	r, size := utf8.DecodeRuneInString(s[i:])
	if !isIdentStart(r) {
		return 0, false
	}
	j := i + size
	for j < len(s) {
		r, size := utf8.DecodeRuneInString(s[j:])
		if !isIdentPart(r) {
			break
		}
		j += size
	}
	for j < len(s) && isSpace(s[j]) {
		j++
	}
	if j < len(s) && s[j] == '(' {
		return j, true
	}
	return 0, false
}

// closingParen returns the index of the paren closing the one at open.
func closingParen(s string, open int) (int, bool) {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// Identifiers follow Java's rules: any Unicode letter, '_' or '$' to start,
// then letters, digits and combining marks.
func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r) || unicode.In(r, unicode.Mn, unicode.Mc)
}

func endsWithIdent(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r != utf8.RuneError && isIdentPart(r)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
