package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/memolink/internal/corpus"
	"github.com/starford/memolink/internal/parser"
	"github.com/starford/memolink/internal/resolver"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

var (
	extensionRe = regexp.MustCompile(`^\.?[A-Za-z0-9]+$`)
	schemeRe    = regexp.MustCompile(`^[a-z][a-z0-9+.-]*$`)
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Corpus CorpusConfig      `yaml:"corpus"`
	Watch  WatchConfig       `yaml:"watch"`
	Auth   AuthConfig        `yaml:"auth"`
	Export ExportConfig      `yaml:"export"`
	Graph  GraphConfig       `yaml:"graph"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Corpus.Validate(); err != nil {
		return fmt.Errorf("corpus: %w", err)
	}
	if err := c.Watch.Validate(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if err := c.Export.Validate(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// CorpusConfig describes the document tree. It implements corpus.Provider
// so the indexes see edits to the struct on their next operation.
type CorpusConfig struct {
	Root       string   `yaml:"root"`
	Extensions []string `yaml:"extensions"`
	Scheme     string   `yaml:"scheme"`
	SkipHidden bool     `yaml:"skip_hidden"`
}

// Validate validates the corpus configuration.
func (c *CorpusConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Extensions, validation.Required, validation.Each(validation.Match(extensionRe))),
		validation.Field(&c.Scheme, validation.Required, validation.Match(schemeRe)),
	)
}

// Load implements corpus.Provider.
func (c *CorpusConfig) Load() (corpus.Config, error) {
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return corpus.Config{}, fmt.Errorf("corpus: root: %w", err)
	}
	exts := make([]string, 0, len(c.Extensions))
	for _, e := range c.Extensions {
		exts = append(exts, parser.NormalizeExtension(e))
	}
	return corpus.Config{
		Root:       root,
		Extensions: exts,
		Scheme:     c.Scheme,
		SkipHidden: c.SkipHidden,
	}, nil
}

// WatchConfig controls the file system watcher.
type WatchConfig struct {
	Enabled         bool          `yaml:"enabled"`
	RenameWindow    time.Duration `yaml:"rename_window"`
	RewriteOnRename bool          `yaml:"rewrite_on_rename"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RenameWindow, validation.Min(10*time.Millisecond), validation.Max(time.Minute)),
	)
}

// ExportConfig holds the default SQLite export destination.
type ExportConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the export configuration.
func (c *ExportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// GraphConfig tunes graph change notifications.
type GraphConfig struct {
	SSEThrottle time.Duration `yaml:"sse_throttle"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Corpus: CorpusConfig{
			Root:       "./notes",
			Extensions: []string{".md"},
			Scheme:     resolver.DefaultScheme,
			SkipHidden: true,
		},
		Watch: WatchConfig{
			Enabled:         true,
			RenameWindow:    500 * time.Millisecond,
			RewriteOnRename: true,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Export: ExportConfig{
			Path: "./memolink.db",
		},
		Graph: GraphConfig{
			SSEThrottle: 2 * time.Second,
		},
	}
}
