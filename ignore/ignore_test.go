package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

var defaultPatterns = []string{"node_modules", ".git", "**/__*__/**"}

func Test_Matcher_BareName_NodeModules(t *testing.T) {
	tmpDir := t.TempDir()
	matcher := NewMatcher(MatcherOptions{RootDir: tmpDir, Patterns: defaultPatterns})

	nodePath := filepath.Join(tmpDir, "node_modules", "uview", "index.vue")
	if !matcher.ShouldIgnore(nodePath) {
		t.Error("expected node_modules files to be ignored")
	}
}

func Test_Matcher_DoubleUnderscoreDirs(t *testing.T) {
	tmpDir := t.TempDir()
	matcher := NewMatcher(MatcherOptions{RootDir: tmpDir, Patterns: defaultPatterns})

	testPath := filepath.Join(tmpDir, "src", "pages", "__tests__", "index.vue")
	if !matcher.ShouldIgnore(testPath) {
		t.Error("expected files under __tests__ to be ignored")
	}
	if !matcher.ShouldIgnoreDir(filepath.Join(tmpDir, "src", "pages", "__tests__")) {
		t.Error("expected __tests__ directory to be pruned")
	}
}

func Test_Matcher_AllowsPages(t *testing.T) {
	tmpDir := t.TempDir()
	matcher := NewMatcher(MatcherOptions{RootDir: tmpDir, Patterns: defaultPatterns})

	pagePath := filepath.Join(tmpDir, "src", "pages", "index", "index.vue")
	if matcher.ShouldIgnore(pagePath) {
		t.Error("expected page files to NOT be ignored")
	}
	if matcher.ShouldIgnoreDir(filepath.Join(tmpDir, "src", "pages", "index")) {
		t.Error("expected page directories to NOT be pruned")
	}
}

func Test_Matcher_GlobPattern(t *testing.T) {
	tmpDir := t.TempDir()
	matcher := NewMatcher(MatcherOptions{
		RootDir:  tmpDir,
		Patterns: []string{"src/pages/**/components/*.vue"},
	})

	if !matcher.ShouldIgnore(filepath.Join(tmpDir, "src", "pages", "home", "components", "card.vue")) {
		t.Error("expected glob pattern to ignore component files")
	}
	if matcher.ShouldIgnore(filepath.Join(tmpDir, "src", "pages", "home", "index.vue")) {
		t.Error("expected page file to NOT be ignored")
	}
	if matcher.ShouldIgnoreDir(filepath.Join(tmpDir, "src", "pages", "home", "components")) {
		t.Error("expected directory to stay walkable for a non-recursive pattern")
	}
}

func Test_Matcher_GitignoreIntegration(t *testing.T) {
	tmpDir := t.TempDir()

	gitignoreContent := "*.draft.vue\nlegacy/\n"
	os.WriteFile(filepath.Join(tmpDir, ".gitignore"), []byte(gitignoreContent), 0644)
	os.MkdirAll(filepath.Join(tmpDir, "legacy"), 0755)

	matcher := NewMatcher(MatcherOptions{RootDir: tmpDir, Gitignore: true})

	if !matcher.ShouldIgnore(filepath.Join(tmpDir, "src", "pages", "a.draft.vue")) {
		t.Error("expected .gitignore pattern to ignore *.draft.vue")
	}
	if !matcher.ShouldIgnoreDir(filepath.Join(tmpDir, "legacy")) {
		t.Error("expected .gitignore directory rule to prune legacy/")
	}
	if matcher.ShouldIgnore(filepath.Join(tmpDir, "src", "pages", "a.vue")) {
		t.Error("expected normal pages to NOT be ignored by .gitignore")
	}
}

func Test_Matcher_GitignoreDisabled(t *testing.T) {
	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, ".gitignore"), []byte("*.vue\n"), 0644)

	matcher := NewMatcher(MatcherOptions{RootDir: tmpDir})

	if matcher.ShouldIgnore(filepath.Join(tmpDir, "src", "a.vue")) {
		t.Error("expected .gitignore to be skipped when disabled")
	}
}

func Test_Matcher_Reload(t *testing.T) {
	tmpDir := t.TempDir()
	matcher := NewMatcher(MatcherOptions{RootDir: tmpDir, Gitignore: true})

	target := filepath.Join(tmpDir, "src", "old.vue")
	if matcher.ShouldIgnore(target) {
		t.Fatal("expected file to be visible before .gitignore exists")
	}

	os.WriteFile(filepath.Join(tmpDir, ".gitignore"), []byte("old.vue\n"), 0644)
	matcher.Reload()

	if !matcher.ShouldIgnore(target) {
		t.Error("expected reloaded .gitignore to apply")
	}
}

func Test_Matcher_InvalidPatternsDropped(t *testing.T) {
	matcher := NewMatcher(MatcherOptions{
		RootDir:  t.TempDir(),
		Patterns: []string{"", "  ", "[unclosed", "./dist"},
	})

	patterns := matcher.Patterns()
	if len(patterns) != 1 || patterns[0] != "dist" {
		t.Errorf("Patterns() = %v, want [dist]", patterns)
	}
}
