package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lexandro/define-pages-json/evaluator"
	"github.com/lexandro/define-pages-json/logging"
)

// Evaluator computes the value of an expression written in file.
type Evaluator interface {
	Eval(ctx context.Context, file string, expr evaluator.Expression, imports []string) (any, error)
}

// BaseLoader finds and loads the user-authored base config
// (pages.json.ts, pages.json.yaml and so on) that scanned pages are merged into.
// The result is cached until Reload.
type BaseLoader struct {
	basePath   string
	name       string
	extensions []string
	evaluator  Evaluator
	logger     *slog.Logger

	mu      sync.Mutex
	loaded  bool
	config  Manifest
	sources []string
}

// NewBaseLoader looks for name.<ext> under basePath, trying extensions in order.
func NewBaseLoader(basePath, name string, extensions []string, ev Evaluator, logger *slog.Logger) *BaseLoader {
	return &BaseLoader{
		basePath:   basePath,
		name:       name,
		extensions: extensions,
		evaluator:  ev,
		logger:     logging.Scope(logger, logging.ScopeLoadPagesConfig),
	}
}

// Defaults is merged under every loaded base config.
func Defaults() Manifest {
	return Manifest{
		"pages": []any{},
		"globalStyle": map[string]any{
			"navigationBar": map[string]any{},
		},
	}
}

// Load returns a copy of the cached base config, loading it on first use.
func (l *BaseLoader) Load(ctx context.Context) (Manifest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		if err := l.load(ctx); err != nil {
			return nil, err
		}
	}
	return CloneObject(l.config), nil
}

// Reload re-reads the base config from disk.
func (l *BaseLoader) Reload(ctx context.Context) (Manifest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.load(ctx); err != nil {
		return nil, err
	}
	return CloneObject(l.config), nil
}

// Sources returns the files the cached config was loaded from.
func (l *BaseLoader) Sources() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.sources...)
}

// Candidates lists every file name the loader would accept, in priority order.
func (l *BaseLoader) Candidates() []string {
	out := make([]string, 0, len(l.extensions))
	for _, ext := range l.extensions {
		out = append(out, filepath.Join(l.basePath, l.name+"."+ext))
	}
	return out
}

func (l *BaseLoader) load(ctx context.Context) error {
	var sources []string
	config := Defaults()

	for _, candidate := range l.Candidates() {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}

		loaded, err := l.loadFile(ctx, candidate)
		if err != nil {
			return fmt.Errorf("loading %s: %w", candidate, err)
		}
		config = DeepMergeLastWins(config, loaded)
		sources = append(sources, candidate)
		break
	}

	l.config = config
	l.sources = sources
	l.loaded = true

	l.logger.Debug("base config loaded", "sources", sources)
	if l.logger.Enabled(context.Background(), slog.LevelDebug) {
		if rendered, err := Serialize(config); err == nil {
			l.logger.Debug("base config", "config", rendered)
		}
	}
	return nil
}

func (l *BaseLoader) loadFile(ctx context.Context, path string) (Manifest, error) {
	switch filepath.Ext(path) {
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return decodeJSONObject(data)
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return decodeYAMLObject(data)
	default:
		return l.evaluateModule(ctx, path)
	}
}

func (l *BaseLoader) evaluateModule(ctx context.Context, path string) (Manifest, error) {
	if l.evaluator == nil {
		return nil, errors.New("no evaluator configured for script config")
	}
	imports := []string{fmt.Sprintf("import config from './%s'", filepath.Base(path))}
	result, err := l.evaluator.Eval(ctx, path, evaluator.Raw("config"), imports)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return Manifest{}, nil
	}
	obj, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("default export is %T, want an object", result)
	}
	return obj, nil
}

func decodeJSONObject(data []byte) (Manifest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj Manifest
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		obj = Manifest{}
	}
	return obj, nil
}

func decodeYAMLObject(data []byte) (Manifest, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return Manifest{}, nil
	}
	obj, ok := normalizeYAML(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document is %T, want a mapping", raw)
	}
	return obj, nil
}

// normalizeYAML turns non-string mapping keys into strings so the result
// can be merged and encoded as JSON.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	default:
		return v
	}
}
