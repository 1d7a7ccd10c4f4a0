package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/memolink/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestCorpusConfig_Validate(t *testing.T) {
	cases := []struct {
		name string
		cfg  CorpusConfig
		ok   bool
	}{
		{"defaults", NewDefaultConfig().Corpus, true},
		{"bare extension", CorpusConfig{Root: ".", Extensions: []string{"markdown"}, Scheme: "memo"}, true},
		{"no root", CorpusConfig{Extensions: []string{".md"}, Scheme: "memo"}, false},
		{"no extensions", CorpusConfig{Root: ".", Scheme: "memo"}, false},
		{"bad extension", CorpusConfig{Root: ".", Extensions: []string{"*.md"}, Scheme: "memo"}, false},
		{"bad scheme", CorpusConfig{Root: ".", Extensions: []string{".md"}, Scheme: "Memo://"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestCorpusConfig_Load(t *testing.T) {
	dir := t.TempDir()
	c := CorpusConfig{Root: dir, Extensions: []string{"MD", ".Markdown"}, Scheme: "notes", SkipHidden: true}
	got, err := c.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.Root != dir || got.Scheme != "notes" || !got.SkipHidden {
		t.Errorf("config = %+v", got)
	}
	if len(got.Extensions) != 2 || got.Extensions[0] != ".md" || got.Extensions[1] != ".markdown" {
		t.Errorf("extensions = %v", got.Extensions)
	}

	c.Root = "relative/notes"
	got, _ = c.Load()
	if !filepath.IsAbs(got.Root) {
		t.Errorf("root %q not absolute", got.Root)
	}
}

func TestWatchConfig_RenameWindow(t *testing.T) {
	cfg := WatchConfig{RenameWindow: time.Hour}
	if err := cfg.Validate(); err == nil {
		t.Error("hour-long rename window should fail")
	}
	cfg.RenameWindow = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero window falls back to the default: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("MEMOLINK_TEST_ROOT", "/srv/notes")
	file := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `app:
  log_level: debug
  http:
    port: 9090
corpus:
  root: ${MEMOLINK_TEST_ROOT}
  extensions: [".md", ".markdown"]
watch:
  rename_window: 250ms
graph:
  sse_throttle: 1s
`
	if err := os.WriteFile(file, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(file, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Corpus.Root != "/srv/notes" || cfg.App.HTTP.Port != 9090 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Corpus.Scheme != "memo" || !cfg.Corpus.SkipHidden {
		t.Error("defaults not kept for unset keys")
	}
	if cfg.Watch.RenameWindow != 250*time.Millisecond || cfg.Graph.SSEThrottle != time.Second {
		t.Errorf("durations = %v, %v", cfg.Watch.RenameWindow, cfg.Graph.SSEThrottle)
	}
	if cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("log level = %v", cfg.App.LogLevel)
	}
}
