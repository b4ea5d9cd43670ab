package source

import (
	"context"
	"errors"

	"github.com/lexandro/define-pages-json/evaluator"
	"github.com/lexandro/define-pages-json/logging"
	"github.com/lexandro/define-pages-json/script"
	"github.com/lexandro/define-pages-json/sfc"
)

// Evaluator computes the value of an expression written in file.
type Evaluator interface {
	Eval(ctx context.Context, file string, expr evaluator.Expression, imports []string) (any, error)
}

// ScriptSetup is the parsed <script setup> block of a component.
type ScriptSetup struct {
	Lang    string
	Content string
	// Offset is where Content starts in the component source.
	Offset  int
	Program *script.Program

	file *File
}

// ParseScriptSetup extracts and parses the setup script of a component.
// It returns nil without error when there is no setup script or the component
// is malformed; block errors are logged.
func ParseScriptSetup(content string, file *File) (*ScriptSetup, error) {
	logger := file.scoped(logging.ScopeParseScriptSetup)

	desc, errs := sfc.Parse(content)
	if len(errs) > 0 {
		logger.Error("parsing component failed", "file", file.AbsolutePath(), "error", errors.Join(errs...))
		return nil, nil
	}
	block := desc.ScriptSetup
	if block == nil {
		return nil, nil
	}

	lang := block.Lang()
	if lang == "" {
		lang = "js"
	}

	program, err := script.Parse(block.Content, lang)
	if err != nil {
		return nil, err
	}
	if program.HasError {
		logger.Warn("setup script has syntax errors", "file", file.AbsolutePath(), "lang", lang)
	}

	return &ScriptSetup{
		Lang:    lang,
		Content: block.Content,
		Offset:  block.Start,
		Program: program,
		file:    file,
	}, nil
}

// FindMacro returns the single call of name, nil when absent.
func (s *ScriptSetup) FindMacro(name string) (*script.Call, error) {
	return s.Program.FindMacro(name)
}

// FindImports returns the top-level imports.
func (s *ScriptSetup) FindImports() []script.Import {
	return s.Program.FindImports()
}

// MacroStatement returns the byte range, in the component source, of the
// statement holding the macro call.
func (s *ScriptSetup) MacroStatement(name string) (start, end int, found bool, err error) {
	call, err := s.FindMacro(name)
	if err != nil || call == nil {
		return 0, 0, false, err
	}
	return s.Offset + call.Statement.Start, s.Offset + call.Statement.End, true, nil
}

// MacroResult evaluates the argument of the macro call. It returns nil when
// the macro is not called or called without argument.
func (s *ScriptSetup) MacroResult(ctx context.Context, ev Evaluator, name string) (any, error) {
	call, err := s.FindMacro(name)
	if err != nil {
		return nil, err
	}
	if call == nil {
		return nil, nil
	}
	arg := call.Arg()
	if arg == nil {
		return nil, nil
	}

	logger := s.file.scoped(logging.ScopeGetMacroResult)
	logger.Debug("evaluating macro", "file", s.file.AbsolutePath(), "macro", name, "kind", arg.Kind)

	return ev.Eval(ctx, s.file.AbsolutePath(), *arg, s.Program.ImportTexts())
}
