package translate

import (
	"strings"
	"unicode/utf8"

	"github.com/solatis/dialectc/internal/types"
)

const (
	// repairTemperature is the default for repair, hint and fix prompts.
	repairTemperature = 0.2
	refineTemperature = 0.2
	learnTemperature  = 0.0

	// learnSampleChars bounds the slice of each file shown to the oracle.
	learnSampleChars = 1500

	// hintNeighbours is the number of similar documents sent with a hint request.
	hintNeighbours = 5
)

const javaSystemPrompt = "You are an experienced Java developer. Reply with compilable Java source only."

const ruleExamples = `{"id":"stmt_assign","type":"stmt","irType":"Assign","regex":"^\\s*([A-Za-z_][A-Za-z0-9_]*)\\s*:=\\s*(.+);\\s*$","fields":["name","expr"]}
{"id":"stmt_call","type":"stmt","irType":"Call","regex":"^\\s*([A-Za-z_][A-Za-z0-9_]*)\\s*\\((.*)\\)\\s*;?\\s*$","fields":["callee","args"],"listFields":["args"]}
{"id":"stmt_decl","type":"stmt","irType":"Decl","regex":"^\\s*DECLARE\\s+([A-Za-z_][A-Za-z0-9_]*)\\s*:\\s*([A-Za-z0-9_<>\\[\\]]+)\\s*;\\s*$","fields":["name","type"]}
{"id":"block_if","type":"block","irType":"If","open":"^\\s*IF\\s+(.+?)\\s+THEN\\s*$","middle":["^\\s*ELSE\\s*$"],"close":"^\\s*END\\s*IF\\s*;?\\s*$","fields":["cond"]}
{"id":"segment_semicolon","type":"segment","strategy":"regex_outside_quotes_parens","regex":";"}
{"id":"rw_is_null","type":"rewrite","pattern":"(?i)\\bis\\s+null\\b","replace":"== null"}`

const ruleSystemPrompt = `You generate grammar rules for a dialect-to-Java translator.
Reply with JSONL only: one flat JSON object per line, no wrappers, no Markdown, no commentary.
Object shape:
{"id":"<string>","type":"segment|block|stmt|rewrite","regex":"^...$","strategy":"...","irType":"Assign|Call|Decl|If|Loop|TryCatch|Pragma|Block","fields":["..."],"listFields":["..."],"open":"^...$","middle":["^...$"],"close":"^...$","pattern":"...","replace":"...","priority":<int>}
Requirements:
- type=stmt needs irType and a regex anchored with ^ and $.
- type=block needs irType, open and close (anchored). middle is optional.
- type=segment needs strategy and regex.
- type=rewrite needs pattern and replace.
- Give every rule a unique readable id and do not repeat existing rules.`

func repairMessages(java, diagnostics string) []types.Message {
	var sb strings.Builder
	sb.WriteString("Fix the compilation errors in this Java code without changing its behaviour. Reply with the code only.\n\n")
	sb.WriteString("Diagnostics:\n")
	sb.WriteString(diagnostics)
	sb.WriteString("\n\nCode:\n")
	sb.WriteString(java)
	return []types.Message{
		{Role: types.RoleSystem, Content: javaSystemPrompt},
		{Role: types.RoleUser, Content: sb.String()},
	}
}

func fixMessages(java, feedback string) []types.Message {
	var sb strings.Builder
	sb.WriteString("Revise this Java code according to the reviewer's notes while keeping its behaviour.\n\n")
	sb.WriteString("Notes:\n")
	sb.WriteString(feedback)
	sb.WriteString("\n\nCode:\n")
	sb.WriteString(java)
	sb.WriteString("\n\nReply with the corrected Java only.")
	return []types.Message{
		{Role: types.RoleSystem, Content: javaSystemPrompt},
		{Role: types.RoleUser, Content: sb.String()},
	}
}

func hintMessages(source string, neighbours []string) []types.Message {
	var sb strings.Builder
	sb.WriteString("Give short hints for building IR (Assign, Call, If, Loop, Decl) from this fragment of an unknown dialect. ")
	sb.WriteString("Use the similar fragments as reference.\n\n")
	sb.WriteString("Similar fragments:\n")
	for _, n := range neighbours {
		sb.WriteString("----\n")
		sb.WriteString(n)
		sb.WriteString("\n")
	}
	sb.WriteString("\nFragment:\n")
	sb.WriteString(source)
	sb.WriteString("\n")
	return []types.Message{
		{Role: types.RoleSystem, Content: "Answer briefly and in a structured way."},
		{Role: types.RoleUser, Content: sb.String()},
	}
}

func refineMessages(source, java, feedback string) []types.Message {
	var sb strings.Builder
	sb.WriteString("From this dialect/Java pair, propose new or improved recognition rules. ")
	sb.WriteString("Generalise and stabilise the regexes.\n\n")
	sb.WriteString("Examples of valid lines:\n")
	sb.WriteString(ruleExamples)
	sb.WriteString("\n\nDialect:\n")
	sb.WriteString(source)
	sb.WriteString("\n\nJava:\n")
	sb.WriteString(java)
	sb.WriteString("\n\nNotes or diagnostics:\n")
	sb.WriteString(feedback)
	return []types.Message{
		{Role: types.RoleSystem, Content: ruleSystemPrompt},
		{Role: types.RoleUser, Content: sb.String()},
	}
}

func learnMessages(snippet string) []types.Message {
	var sb strings.Builder
	sb.WriteString("Analyse this fragment of an unknown dialect and produce 6 to 12 rules (segment, block, stmt, rewrite).\n")
	sb.WriteString("Examples of valid lines:\n")
	sb.WriteString(ruleExamples)
	sb.WriteString("\n\nFragment:\n")
	sb.WriteString(snippet)
	return []types.Message{
		{Role: types.RoleSystem, Content: ruleSystemPrompt},
		{Role: types.RoleUser, Content: sb.String()},
	}
}

func learnCorrectionMessages(snippet, invalid string) []types.Message {
	var sb strings.Builder
	sb.WriteString("Your previous reply was in the wrong format. Flat JSONL is required, without {\"stmt\":{...}} wrappers.\n")
	sb.WriteString("Examples of valid lines:\n")
	sb.WriteString(ruleExamples)
	sb.WriteString("\n\nFragment:\n")
	sb.WriteString(snippet)
	sb.WriteString("\n\nYour previous reply, for reference only. Do not repeat this format:\n")
	sb.WriteString(invalid)
	return []types.Message{
		{Role: types.RoleSystem, Content: ruleSystemPrompt},
		{Role: types.RoleUser, Content: sb.String()},
	}
}

// stripFences removes Markdown code fence lines from an oracle reply.
func stripFences(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			continue
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// sample returns at most n leading bytes of text, cut on a rune boundary.
func sample(text string, n int) string {
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}
