// Package script extracts macro calls and imports from a component's
// setup script.
//
// The source is parsed with tree-sitter, the pieces of interest are copied
// out as plain byte ranges and text, and the syntax tree is released before
// Parse returns. Nothing in a Program refers to native memory.
package script

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

var (
	// ErrDuplicateMacro is returned when a macro is called more than once at top level.
	ErrDuplicateMacro = errors.New("duplicate macro call")
	// ErrInvalidMacroArgument is returned when the first macro argument is not
	// an object literal, a function expression or an arrow function.
	ErrInvalidMacroArgument = errors.New("macro only accepts a function or object argument")
)

// Kind classifies an expression.
type Kind int

const (
	KindOther Kind = iota
	KindObject
	KindArrowFunction
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArrowFunction:
		return "arrow_function"
	case KindFunction:
		return "function"
	default:
		return "other"
	}
}

// Span is a byte range in the parsed source.
type Span struct {
	Start int
	End   int
}

// Import is one top-level import declaration.
type Import struct {
	Span
	Text string
}

// Expression is a call argument copied out of the syntax tree.
type Expression struct {
	Span
	Kind Kind
	Text string

	// consoles are console.* calls inside the expression, relative to Start.
	consoles []edit
}

type edit struct {
	Span
	replacement string
}

// IsFunction reports whether the expression is a function or arrow function.
func (e Expression) IsFunction() bool {
	return e.Kind == KindFunction || e.Kind == KindArrowFunction
}

// WithoutConsole returns the expression text with every console.* call
// removed. Calls used as statements are dropped; calls used as values become
// "void 0".
func (e Expression) WithoutConsole() string {
	if len(e.consoles) == 0 {
		return e.Text
	}
	var b strings.Builder
	last := 0
	for _, c := range e.consoles {
		b.WriteString(e.Text[last:c.Start])
		b.WriteString(c.replacement)
		last = c.End
	}
	b.WriteString(e.Text[last:])
	return b.String()
}

// Call is a top-level call of a plain identifier.
type Call struct {
	Span
	Name string
	// Statement is the range of the enclosing expression statement.
	Statement Span
	Args      []Expression
}

// Arg returns the first argument, or nil when the call has none.
func (c *Call) Arg() *Expression {
	if len(c.Args) == 0 {
		return nil
	}
	return &c.Args[0]
}

// Program is the extracted view of a setup script.
type Program struct {
	Source   string
	Imports  []Import
	Calls    []Call
	HasError bool
}

// Parse parses source with the grammar matching lang ("ts", "tsx", "js", "jsx" or "").
func Parse(source string, lang string) (*Program, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(languageFor(lang)); err != nil {
		return nil, fmt.Errorf("setting %q grammar: %w", lang, err)
	}

	src := []byte(source)
	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("parsing %q script failed", lang)
	}
	defer tree.Close()

	root := tree.RootNode()
	program := &Program{Source: source, HasError: root.HasError()}

	for i := uint(0); i < root.NamedChildCount(); i++ {
		stmt := root.NamedChild(i)
		switch stmt.Kind() {
		case "import_statement":
			program.Imports = append(program.Imports, Import{
				Span: spanOf(stmt),
				Text: stmt.Utf8Text(src),
			})
		case "expression_statement":
			expr := firstNamed(stmt)
			if expr == nil || expr.Kind() != "call_expression" {
				continue
			}
			if call, ok := extractCall(expr, stmt, src); ok {
				program.Calls = append(program.Calls, call)
			}
		}
	}

	return program, nil
}

// FindMacro returns the single top-level call of name, nil when there is none.
func (p *Program) FindMacro(name string) (*Call, error) {
	var found *Call
	for i := range p.Calls {
		if p.Calls[i].Name != name {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%s(): %w", name, ErrDuplicateMacro)
		}
		found = &p.Calls[i]
	}
	if found == nil {
		return nil, nil
	}

	if arg := found.Arg(); arg != nil && arg.Kind == KindOther {
		return nil, fmt.Errorf("%s(): %w", name, ErrInvalidMacroArgument)
	}
	return found, nil
}

// FindImports returns all top-level import declarations in source order.
func (p *Program) FindImports() []Import {
	return p.Imports
}

// ImportTexts returns the source text of each import declaration.
func (p *Program) ImportTexts() []string {
	out := make([]string, len(p.Imports))
	for i, imp := range p.Imports {
		out[i] = imp.Text
	}
	return out
}

func languageFor(lang string) *tree_sitter.Language {
	switch strings.ToLower(lang) {
	case "tsx", "jsx":
		return tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTSX())
	default:
		return tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	}
}

func extractCall(node, stmt *tree_sitter.Node, src []byte) (Call, bool) {
	callee := node.ChildByFieldName("function")
	if callee == nil || callee.Kind() != "identifier" {
		return Call{}, false
	}

	call := Call{
		Span:      spanOf(node),
		Name:      callee.Utf8Text(src),
		Statement: spanOf(stmt),
	}

	args := node.ChildByFieldName("arguments")
	if args == nil {
		return call, true
	}
	for i := uint(0); i < args.NamedChildCount(); i++ {
		arg := args.NamedChild(i)
		if arg.Kind() == "comment" {
			continue
		}
		call.Args = append(call.Args, extractExpression(arg, src))
	}
	return call, true
}

func extractExpression(node *tree_sitter.Node, src []byte) Expression {
	expr := Expression{
		Span: spanOf(node),
		Kind: kindOf(node),
		Text: node.Utf8Text(src),
	}
	collectConsole(node, src, &expr.consoles)
	for i := range expr.consoles {
		expr.consoles[i].Start -= expr.Start
		expr.consoles[i].End -= expr.Start
	}
	sort.SliceStable(expr.consoles, func(i, j int) bool {
		return expr.consoles[i].Start < expr.consoles[j].Start
	})
	return expr
}

func kindOf(node *tree_sitter.Node) Kind {
	switch node.Kind() {
	case "object":
		return KindObject
	case "arrow_function":
		return KindArrowFunction
	case "function_expression", "function":
		return KindFunction
	case "parenthesized_expression":
		if inner := firstNamed(node); inner != nil {
			return kindOf(inner)
		}
	}
	return KindOther
}

// collectConsole records console.* calls under node without descending into them.
func collectConsole(node *tree_sitter.Node, src []byte, out *[]edit) {
	if node.Kind() == "call_expression" && isConsoleCall(node, src) {
		parent := node.Parent()
		if parent != nil && parent.Kind() == "expression_statement" {
			// An empty statement keeps if/else/loop bodies attached.
			*out = append(*out, edit{Span: spanOf(parent), replacement: ";"})
		} else {
			*out = append(*out, edit{Span: spanOf(node), replacement: "void 0"})
		}
		return
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		collectConsole(node.NamedChild(i), src, out)
	}
}

func isConsoleCall(node *tree_sitter.Node, src []byte) bool {
	callee := node.ChildByFieldName("function")
	if callee == nil || callee.Kind() != "member_expression" {
		return false
	}
	object := callee.ChildByFieldName("object")
	return object != nil && object.Kind() == "identifier" && object.Utf8Text(src) == "console"
}

func firstNamed(node *tree_sitter.Node) *tree_sitter.Node {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() != "comment" {
			return child
		}
	}
	return nil
}

func spanOf(node *tree_sitter.Node) Span {
	return Span{Start: int(node.StartByte()), End: int(node.EndByte())}
}
