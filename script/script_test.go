package script

import (
	"errors"
	"strings"
	"testing"
)

func mustParse(t *testing.T, src, lang string) *Program {
	t.Helper()
	p, err := Parse(src, lang)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	return p
}

func Test_Program_FindMacro_Object(t *testing.T) {
	src := "import { a } from './a'\nimport type { B } from './b'\n\ndefinePage({ needLogin: 1 + 1 })\nconst x = 1\n"
	p := mustParse(t, src, "ts")

	call, err := p.FindMacro("definePage")
	if err != nil {
		t.Fatalf("FindMacro error: %v", err)
	}
	if call == nil {
		t.Fatal("expected macro call")
	}
	arg := call.Arg()
	if arg == nil || arg.Kind != KindObject {
		t.Fatalf("unexpected argument: %+v", arg)
	}
	if arg.Text != "{ needLogin: 1 + 1 }" {
		t.Errorf("argument text = %q", arg.Text)
	}
	if arg.IsFunction() {
		t.Error("object argument reported as function")
	}
	if src[call.Statement.Start:call.Statement.End] != "definePage({ needLogin: 1 + 1 })" {
		t.Errorf("statement range = %q", src[call.Statement.Start:call.Statement.End])
	}

	imports := p.FindImports()
	if len(imports) != 2 {
		t.Fatalf("expected 2 imports, got %d", len(imports))
	}
	if imports[0].Text != "import { a } from './a'" {
		t.Errorf("first import = %q", imports[0].Text)
	}
	if !strings.HasPrefix(p.ImportTexts()[1], "import type") {
		t.Errorf("second import = %q", p.ImportTexts()[1])
	}
}

func Test_Program_FindMacro_FunctionArguments(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind Kind
	}{
		{"arrow", "definePage(() => ({ type: 'home' }))", KindArrowFunction},
		{"async arrow", "definePage(async () => ({ type: 'home' }))", KindArrowFunction},
		{"function", "definePage(function () { return {} })", KindFunction},
		{"parenthesized", "definePage((() => ({})))", KindArrowFunction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := mustParse(t, tt.src, "ts").FindMacro("definePage")
			if err != nil {
				t.Fatalf("FindMacro error: %v", err)
			}
			if call.Arg().Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", call.Arg().Kind, tt.kind)
			}
			if !call.Arg().IsFunction() {
				t.Error("expected IsFunction")
			}
		})
	}
}

func Test_Program_FindMacro_Missing(t *testing.T) {
	p := mustParse(t, "const a = definePage\nother({})\n", "ts")
	call, err := p.FindMacro("definePage")
	if err != nil || call != nil {
		t.Errorf("expected no macro and no error, got %v, %v", call, err)
	}
}

func Test_Program_FindMacro_NoArgument(t *testing.T) {
	call, err := mustParse(t, "definePage()", "").FindMacro("definePage")
	if err != nil {
		t.Fatalf("FindMacro error: %v", err)
	}
	if call == nil || call.Arg() != nil {
		t.Errorf("expected call without argument, got %+v", call)
	}
}

func Test_Program_FindMacro_Duplicate(t *testing.T) {
	p := mustParse(t, "definePage({})\ndefinePage({ a: 1 })\n", "ts")
	_, err := p.FindMacro("definePage")
	if !errors.Is(err, ErrDuplicateMacro) {
		t.Errorf("expected ErrDuplicateMacro, got %v", err)
	}
}

func Test_Program_FindMacro_InvalidArgument(t *testing.T) {
	p := mustParse(t, "const opts = {}\ndefinePage(opts)\n", "ts")
	_, err := p.FindMacro("definePage")
	if !errors.Is(err, ErrInvalidMacroArgument) {
		t.Errorf("expected ErrInvalidMacroArgument, got %v", err)
	}
}

func Test_Program_FindMacro_IgnoresNestedCalls(t *testing.T) {
	p := mustParse(t, "function f() { definePage({}) }\ndefinePage({ a: 1 })\n", "ts")
	call, err := p.FindMacro("definePage")
	if err != nil {
		t.Fatalf("FindMacro error: %v", err)
	}
	if call.Arg().Text != "{ a: 1 }" {
		t.Errorf("picked wrong call: %q", call.Arg().Text)
	}
}

func Test_Expression_WithoutConsole(t *testing.T) {
	src := "definePage(() => {\n  console.log('debug')\n  return { a: console.info(1), b: 2 }\n})"
	call, err := mustParse(t, src, "ts").FindMacro("definePage")
	if err != nil {
		t.Fatalf("FindMacro error: %v", err)
	}
	got := call.Arg().WithoutConsole()
	if strings.Contains(got, "console") {
		t.Errorf("console call left in output: %q", got)
	}
	if !strings.Contains(got, "a: void 0") {
		t.Errorf("expected value position replaced with void 0, got %q", got)
	}
	if !strings.Contains(got, "return { a: void 0, b: 2 }") {
		t.Errorf("unexpected output: %q", got)
	}
}

func Test_Expression_WithoutConsole_KeepsStatementBodies(t *testing.T) {
	src := "definePage(() => {\n  const debug = false\n  if (debug) console.log('x')\n  else console.warn('y')\n  for (const k of []) console.log(k)\n  return { needLogin: true }\n})"
	call, err := mustParse(t, src, "ts").FindMacro("definePage")
	if err != nil {
		t.Fatalf("FindMacro error: %v", err)
	}
	got := call.Arg().WithoutConsole()
	for _, want := range []string{"if (debug) ;", "else ;", "for (const k of []) ;", "return { needLogin: true }"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in output: %q", want, got)
		}
	}
	p := mustParse(t, "("+got+")", "ts")
	if p.HasError {
		t.Errorf("stripped expression does not parse: %q", got)
	}
}

func Test_Parse_TSXLang(t *testing.T) {
	p := mustParse(t, "definePage({ render: () => <div /> })", "tsx")
	if p.HasError {
		t.Error("expected tsx source to parse without errors")
	}
	if _, err := p.FindMacro("definePage"); err != nil {
		t.Errorf("FindMacro error: %v", err)
	}
}

func Test_Parse_SyntaxError(t *testing.T) {
	p := mustParse(t, "definePage({ a: })", "ts")
	if !p.HasError {
		t.Error("expected HasError for malformed source")
	}
}
