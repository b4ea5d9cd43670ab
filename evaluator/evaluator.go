// Package evaluator computes the value of a script expression by running it
// in a separate process.
//
// The expression is rendered into a small module together with the imports
// of the file it came from, executed with that file's directory as working
// directory, and the JSON printed after a one-off delimiter is decoded.
package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lexandro/define-pages-json/logging"
)

// ErrNoDelimiter is returned when the process output lacks the result delimiter.
var ErrNoDelimiter = errors.New("result delimiter not found in output")

// Expression is a script expression to evaluate.
type Expression interface {
	IsFunction() bool
	WithoutConsole() string
}

type rawExpression struct {
	code     string
	function bool
}

func (r rawExpression) IsFunction() bool       { return r.function }
func (r rawExpression) WithoutConsole() string { return r.code }

// Raw wraps plain source text as a non-function expression.
func Raw(code string) Expression {
	return rawExpression{code: code}
}

// Evaluator runs expressions through a Runner, one process per call.
type Evaluator struct {
	runner  Runner
	timeout time.Duration
	logger  *slog.Logger

	newDelimiter func() string
}

// New creates an evaluator. A zero timeout disables the deadline.
func New(runner Runner, timeout time.Duration, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		runner:       runner,
		timeout:      timeout,
		logger:       logging.Scope(logger, logging.ScopeExec),
		newDelimiter: randomDelimiter,
	}
}

// Check reports whether the runner is available.
func (e *Evaluator) Check() error {
	return e.runner.Check()
}

// Eval evaluates expr as if it were written in file, after imports.
// A result of undefined decodes to nil.
func (e *Evaluator) Eval(ctx context.Context, file string, expr Expression, imports []string) (any, error) {
	if err := e.runner.Check(); err != nil {
		return nil, err
	}

	delimiter := e.newDelimiter()
	script := BuildScript(expr, imports, delimiter)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	e.logger.Debug("evaluating", "file", file)
	start := time.Now()

	stdout, stderr, err := e.runner.Run(ctx, filepath.Dir(file), script)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("evaluating macro in %s: %w", file, ctxErr)
	}
	if err != nil || len(bytes.TrimSpace(stderr)) > 0 {
		return nil, &ProcessError{File: file, Stderr: string(stderr), Err: err}
	}

	result, err := ParseOutput(string(stdout), delimiter)
	if err != nil {
		return nil, fmt.Errorf("evaluating macro in %s: %w", file, err)
	}

	e.logger.Debug("evaluated", "file", file, "duration", time.Since(start), "result", result)
	return result, nil
}

// BuildScript renders the module executed by the runner.
func BuildScript(expr Expression, imports []string, delimiter string) string {
	var b strings.Builder
	for _, imp := range imports {
		b.WriteString(imp)
		b.WriteByte('\n')
	}

	code := expr.WithoutConsole()
	if expr.IsFunction() {
		fmt.Fprintf(&b, "let fn=%s\nlet val=fn();\n", code)
	} else {
		fmt.Fprintf(&b, "let val=%s\n", code)
	}

	fmt.Fprintf(&b, "Promise.resolve(val).then(res => { console.log('%s'); console.log(JSON.stringify(res)); })", delimiter)
	return b.String()
}

// ParseOutput decodes the JSON that follows the last delimiter in output.
// Numbers are kept as json.Number so they serialize back unchanged.
func ParseOutput(output string, delimiter string) (any, error) {
	idx := strings.LastIndex(output, delimiter)
	if idx < 0 {
		return nil, ErrNoDelimiter
	}

	tail := strings.TrimSpace(output[idx+len(delimiter):])
	if tail == "" || tail == "undefined" {
		return nil, nil
	}

	dec := json.NewDecoder(strings.NewReader(tail))
	dec.UseNumber()
	var result any
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decoding result: unexpected data after JSON value")
	}
	return result, nil
}

func randomDelimiter() string {
	return "====" + uuid.NewString()[:8] + "===="
}
