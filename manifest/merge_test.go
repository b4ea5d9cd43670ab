package manifest

import (
	"reflect"
	"testing"
)

func Test_DeepMergeLastWins_NestedObjects(t *testing.T) {
	a := map[string]any{"path": "a", "style": map[string]any{"x": 1}}
	b := map[string]any{"path": "a", "style": map[string]any{"y": 2}, "needLogin": true}

	got := DeepMergeLastWins(a, b)
	want := map[string]any{"path": "a", "style": map[string]any{"x": 1, "y": 2}, "needLogin": true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func Test_DeepMergeLastWins_ReplacementRules(t *testing.T) {
	tests := []struct {
		name string
		a, b map[string]any
		want map[string]any
	}{
		{
			name: "arrays replaced",
			a:    map[string]any{"list": []any{1, 2}},
			b:    map[string]any{"list": []any{3}},
			want: map[string]any{"list": []any{3}},
		},
		{
			name: "object over scalar",
			a:    map[string]any{"k": "text"},
			b:    map[string]any{"k": map[string]any{"x": 1}},
			want: map[string]any{"k": map[string]any{"x": 1}},
		},
		{
			name: "scalar over object",
			a:    map[string]any{"k": map[string]any{"x": 1}},
			b:    map[string]any{"k": false},
			want: map[string]any{"k": false},
		},
		{
			name: "null over object",
			a:    map[string]any{"k": map[string]any{"x": 1}},
			b:    map[string]any{"k": nil},
			want: map[string]any{"k": nil},
		},
		{
			name: "missing key keeps value",
			a:    map[string]any{"k": 1},
			b:    map[string]any{},
			want: map[string]any{"k": 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeepMergeLastWins(tt.a, tt.b); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_DeepMergeLastWins_DoesNotAliasInputs(t *testing.T) {
	a := map[string]any{"style": map[string]any{"x": 1}}
	merged := DeepMergeLastWins(a)
	merged["style"].(map[string]any)["x"] = 99

	if a["style"].(map[string]any)["x"] != 1 {
		t.Error("input was modified through the merge result")
	}
}

func Test_UniquePages(t *testing.T) {
	pages := []any{
		map[string]any{"path": "pages/index", "style": map[string]any{"x": 1}},
		map[string]any{"path": "pages/about"},
		map[string]any{"path": "pages/index", "style": map[string]any{"y": 2}, "needLogin": true},
	}

	got := UniquePages(pages)
	if len(got) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(got))
	}
	first := got[0].(map[string]any)
	if first["path"] != "pages/index" || first["needLogin"] != true {
		t.Errorf("unexpected first page %v", first)
	}
	if !reflect.DeepEqual(first["style"], map[string]any{"x": 1, "y": 2}) {
		t.Errorf("style not merged: %v", first["style"])
	}
	if got[1].(map[string]any)["path"] != "pages/about" {
		t.Errorf("order not kept: %v", got)
	}
}
