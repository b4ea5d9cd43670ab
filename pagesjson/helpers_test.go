package pagesjson

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/lexandro/define-pages-json/config"
	"github.com/lexandro/define-pages-json/evaluator"
	"github.com/lexandro/define-pages-json/logging"
)

// jsonEvaluator decodes macro arguments written as JSON object literals.
type jsonEvaluator struct {
	mu    sync.Mutex
	calls int
}

func (e *jsonEvaluator) Eval(ctx context.Context, file string, expr evaluator.Expression, imports []string) (any, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	dec := json.NewDecoder(strings.NewReader(expr.WithoutConsole()))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func (e *jsonEvaluator) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func component(macroArg string) string {
	if macroArg == "" {
		return "<template><view /></template>\n<script setup lang=\"ts\">\nconst a = 1\n</script>\n"
	}
	return "<template><view /></template>\n<script setup lang=\"ts\">\ndefinePage(" + macroArg + ")\n</script>\n"
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func newTestContext(t *testing.T, user config.UserConfig) (*Context, *jsonEvaluator) {
	t.Helper()
	if user.Root == "" {
		user.Root = t.TempDir()
	}
	ev := &jsonEvaluator{}
	ctx := New(config.Resolve(user), Options{Evaluator: ev, Logger: logging.Discard()})
	t.Cleanup(func() { ctx.Close() })
	return ctx, ev
}

func readManifest(t *testing.T, c *Context) map[string]any {
	t.Helper()
	data, err := os.ReadFile(c.Config().PagesJSONFile())
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("manifest is not JSON: %v\n%s", err, data)
	}
	return m
}
