// Package codegen renders an IR forest as a single Java class whose main
// method holds the translated statements.
package codegen

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/solatis/dialectc/internal/ir"
	"github.com/solatis/dialectc/internal/types"
)

const indentUnit = "    "

// Generate renders forest as the class unit. A blank unit uses
// types.DefaultUnitName.
func Generate(forest ir.Forest, unit string) string {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		unit = types.DefaultUnitName
	}

	g := &generator{}
	g.line(0, fmt.Sprintf("public class %s {", unit))
	g.line(0, "  public static void main(String[] args) {")
	g.emitList(forest, 1, NewScopes())
	g.line(0, "  }")
	g.line(0, "}")
	return g.sb.String()
}

type generator struct {
	sb strings.Builder
}

func (g *generator) line(depth int, s string) {
	g.sb.WriteString(strings.Repeat(indentUnit, depth))
	g.sb.WriteString(s)
	g.sb.WriteByte('\n')
}

func (g *generator) emitList(nodes []ir.Node, depth int, scopes *Scopes) {
	for _, n := range nodes {
		g.emit(n, depth, scopes)
	}
}

// nested emits a child list inside its own scope.
func (g *generator) nested(nodes []ir.Node, depth int, scopes *Scopes) {
	scopes.Push()
	g.emitList(nodes, depth, scopes)
	scopes.Pop()
}

func (g *generator) emit(n ir.Node, depth int, scopes *Scopes) {
	switch v := n.(type) {
	case ir.Assign:
		expr := Sanitize(v.Expr)
		// Qualified targets (rec.f, a[i]) name existing storage.
		if qualified(v.Name) || scopes.Declared(v.Name) {
			g.line(depth, fmt.Sprintf("%s = %s;", v.Name, expr))
			return
		}
		scopes.Declare(v.Name)
		g.line(depth, fmt.Sprintf("var %s = %s;", v.Name, expr))

	case ir.Call:
		callee := v.Callee
		if v.Namespace != "" {
			callee = v.Namespace + "." + callee
		}
		g.line(depth, fmt.Sprintf("%s(%s);", callee, joinArgs(v.Args)))

	case ir.Decl:
		scopes.Declare(v.Name)
		g.line(depth, fmt.Sprintf("%s %s;", v.Type, v.Name))

	case ir.If:
		g.line(depth, fmt.Sprintf("if (%s) {", Sanitize(v.Cond)))
		g.nested(v.Then, depth+1, scopes)
		if len(v.Else) > 0 {
			g.line(depth, "} else {")
			g.nested(v.Else, depth+1, scopes)
		}
		g.line(depth, "}")

	case ir.Loop:
		g.line(depth, loopHeader(v.Header)+" {")
		g.nested(v.Body, depth+1, scopes)
		g.line(depth, "}")

	case ir.TryCatch:
		name := strings.TrimSpace(v.ExceptionName)
		if name == "" {
			name = "Exception"
		}
		g.line(depth, "try {")
		g.nested(v.Try, depth+1, scopes)
		g.line(depth, fmt.Sprintf("} catch (%s e) {", name))
		g.nested(v.Catch, depth+1, scopes)
		g.line(depth, "}")

	case ir.Block:
		g.line(depth, "{")
		g.nested(v.Body, depth+1, scopes)
		g.line(depth, "}")

	case ir.Pragma:
		if strings.EqualFold(v.Name, "error") && len(v.Args) > 0 {
			g.line(depth, fmt.Sprintf("throw new RuntimeException(%s);", Sanitize(v.Args[0])))
			return
		}
		g.line(depth, fmt.Sprintf("// pragma %s(%s)", v.Name, strings.Join(v.Args, ", ")))

	case ir.Unknown:
		g.line(depth, unknownComment(v.Raw))

	default:
		g.line(depth, unknownComment(fmt.Sprintf("%v", n)))
	}
}

func joinArgs(args []string) string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = Sanitize(a)
	}
	return strings.Join(out, ", ")
}

// loopHeader reformats a loop header as a for or while clause.
func loopHeader(header string) string {
	h := strings.TrimSpace(header)
	first, rest := splitFirstWord(h)
	switch strings.ToLower(first) {
	case "for":
		return fmt.Sprintf("for (%s)", Sanitize(rest))
	case "while":
		h = rest
	}
	if h == "" {
		return "while (true)"
	}
	return fmt.Sprintf("while (%s)", Sanitize(h))
}

func splitFirstWord(s string) (string, string) {
	i := strings.IndexFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func unknownComment(raw string) string {
	raw = strings.ReplaceAll(raw, "*/", "*_/")
	return "/* UNKNOWN: " + lineBreaks.Replace(raw) + " */"
}

var (
	andOp = regexp.MustCompile(`(?i) and `)
	orOp  = regexp.MustCompile(`(?i) or `)
)

// Sanitize maps dialect operators in an expression to their Java spelling:
// := to =, <> to !=, and/or to && and ||.
func Sanitize(expr string) string {
	s := strings.TrimSpace(expr)
	s = strings.ReplaceAll(s, ":=", "=")
	s = strings.ReplaceAll(s, "<>", "!=")
	s = andOp.ReplaceAllString(s, " && ")
	s = orOp.ReplaceAllString(s, " || ")
	return s
}

func qualified(name string) bool {
	return strings.ContainsAny(name, ".[")
}
