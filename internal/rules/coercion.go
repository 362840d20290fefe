// internal/rules/coercion.go
package rules

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/solatis/dialectc/internal/types"
)

/*
 * Coercion of learning output into rules.
 *
 * Oracle replies are loosely structured: JSONL wrapped in code fences, prose
 * between lines, rules nested under their kind, fields given as objects.
 * CoerceJSONL accepts all of these and returns only rules that compile.
 *
 * Accepted line shapes:
 *   {"type":"stmt","regex":...}                  flat
 *   {"stmt":{"regex":...}}                       wrapped, kind from the key
 *   "fields": ["a","b"] | {"a":1,"b":2} | "a,b"  object keys in document order
 *
 * Normalization:
 *   - type lower-cased
 *   - block open, close and middle patterns anchored with ^ and $
 *   - segment rules with strategy regex_replace become rewrite rules
 *   - missing id: <type>_<16 hex of SHA-1 over the defining fields>
 *   - zero priority: kind default (block 50, stmt 20, segment 10, rewrite 5)
 *
 * Anything else is dropped without error. A bad rule in learning output is
 * expected and must never reach the store.
 */

var wrapperKinds = []types.RuleKind{
	types.KindStmt, types.KindBlock, types.KindSegment, types.KindRewrite,
}

// rawRule mirrors types.Rule with the loosely typed fields left undecoded.
type rawRule struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Strategy   string          `json:"strategy"`
	Regex      string          `json:"regex"`
	IRType     string          `json:"irType"`
	Fields     json.RawMessage `json:"fields"`
	ListFields json.RawMessage `json:"listFields"`
	Open       string          `json:"open"`
	Middle     json.RawMessage `json:"middle"`
	Close      string          `json:"close"`
	Pattern    string          `json:"pattern"`
	Replace    *string         `json:"replace"`
	Priority   float64         `json:"priority"`
	Confidence float64         `json:"confidence"`
	Support    float64         `json:"support"`
}

// CoerceJSONL extracts every usable rule from raw learning output.
func CoerceJSONL(raw string) []types.Rule {
	var out []types.Rule
	for _, line := range strings.Split(raw, "\n") {
		rule, ok := CoerceLine(line)
		if ok {
			out = append(out, rule)
		}
	}
	return out
}

// CoerceLine coerces a single line. ok is false when the line carries no
// usable rule.
func CoerceLine(line string) (types.Rule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "```") {
		return types.Rule{}, false
	}
	if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
		return types.Rule{}, false
	}

	body, kind, ok := unwrapLine([]byte(line))
	if !ok {
		return types.Rule{}, false
	}

	var rr rawRule
	if err := json.Unmarshal(body, &rr); err != nil {
		return types.Rule{}, false
	}
	if kind == "" {
		kind = types.RuleKind(strings.ToLower(strings.TrimSpace(rr.Type)))
	}
	if kind == "" {
		return types.Rule{}, false
	}

	rule := types.Rule{
		ID:         strings.TrimSpace(rr.ID),
		Type:       kind,
		Strategy:   types.Strategy(strings.TrimSpace(rr.Strategy)),
		Regex:      rr.Regex,
		IRType:     strings.TrimSpace(rr.IRType),
		Fields:     decodeNames(rr.Fields),
		ListFields: decodeNames(rr.ListFields),
		Open:       anchor(rr.Open),
		Middle:     anchorAll(decodeNames(rr.Middle)),
		Close:      anchor(rr.Close),
		Pattern:    rr.Pattern,
		Replace:    rr.Replace,
		Priority:   int(rr.Priority),
		Confidence: rr.Confidence,
		Support:    int(rr.Support),
	}

	if rule.Type == types.KindSegment && Strategy(rule) == types.StrategyRegexReplace {
		rule.Type = types.KindRewrite
		rule.Pattern = rule.Regex
		rule.Regex = ""
		rule.Strategy = ""
		if rule.Replace == nil {
			rule.Replace = types.StringPtr("")
		}
	}

	if _, err := Compile(rule); err != nil {
		return types.Rule{}, false
	}

	if rule.ID == "" {
		rule.ID = ruleID(rule)
	}
	if rule.Priority == 0 {
		rule.Priority = types.DefaultPriority(rule.Type)
	}
	return rule, true
}

// unwrapLine returns the rule object and, for wrapped lines, the kind named
// by the wrapper key.
func unwrapLine(line []byte) ([]byte, types.RuleKind, bool) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(line, &top); err != nil {
		return nil, "", false
	}
	if _, flat := top["type"]; flat {
		return line, "", true
	}
	for _, kind := range wrapperKinds {
		inner, ok := top[string(kind)]
		if !ok {
			continue
		}
		inner = bytes.TrimSpace(inner)
		if len(inner) == 0 || inner[0] != '{' {
			return nil, "", false
		}
		return inner, kind, true
	}
	return nil, "", false
}

// decodeNames accepts an array of strings, an object (keys in document
// order) or a comma separated string.
func decodeNames(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	switch raw[0] {
	case '[':
		var items []any
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		var out []string
		for _, it := range items {
			if s, ok := it.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case '{':
		return objectKeys(raw)
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return nil
}

func objectKeys(raw json.RawMessage) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil
		}
		keys = append(keys, key)
	}
	return keys
}

// anchor adds ^ and $ unless already present.
func anchor(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "^") {
		p = "^" + p
	}
	if !strings.HasSuffix(p, "$") || strings.HasSuffix(p, `\$`) {
		p += "$"
	}
	return p
}

func anchorAll(ps []string) []string {
	if len(ps) == 0 {
		return nil
	}
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		if a := anchor(p); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// ruleID derives a stable id from the fields that define a rule's behavior.
func ruleID(r types.Rule) string {
	key := strings.Join([]string{
		string(r.Type), r.Regex, string(r.Strategy), r.IRType,
		r.Open, r.Close, r.Pattern, r.ReplaceText(),
	}, "|")
	sum := sha1.Sum([]byte(key))
	return fmt.Sprintf("%s_%s", r.Type, hex.EncodeToString(sum[:8]))
}
