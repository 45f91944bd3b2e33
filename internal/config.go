package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/novelpress/internal/apperr"
	"github.com/starford/novelpress/internal/cleaner"
)

// DefaultNovel is used when a command is given no novel identifier.
const DefaultNovel = "2028ww3"

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig      `yaml:"app"`
	Workspace WorkspaceConfig        `yaml:"workspace"`
	Cleaner   CleanerConfig          `yaml:"cleaner"`
	WordPress WordPressConfig        `yaml:"wordpress"`
	Site      SiteConfig             `yaml:"site"`
	Publish   PublishConfig          `yaml:"publish"`
	Novels    map[string]NovelConfig `yaml:"novels"`
	Ledger    LedgerConfig           `yaml:"ledger"`
	Preview   PreviewConfig          `yaml:"preview"`
}

// Validate validates the configuration. WordPress credentials are checked
// separately by the publish command.
func (c *Config) Validate() error {
	if err := c.Workspace.Validate(); err != nil {
		return fmt.Errorf("workspace: %w", err)
	}
	if err := c.WordPress.Validate(); err != nil {
		return fmt.Errorf("wordpress: %w", err)
	}
	if err := c.Site.Validate(); err != nil {
		return fmt.Errorf("site: %w", err)
	}
	for id, n := range c.Novels {
		if err := n.Validate(); err != nil {
			return fmt.Errorf("novels.%s: %w", id, err)
		}
	}
	if err := c.Preview.Validate(); err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// WorkspaceConfig locates the authoring and site trees.
type WorkspaceConfig struct {
	Root            string `yaml:"root"`
	ProjectsDir     string `yaml:"projects_dir"`
	ContentDir      string `yaml:"content_dir"`
	PublicAssetsDir string `yaml:"public_assets_dir"`
	ChaptersDir     string `yaml:"chapters_dir"`
	AssetsDir       string `yaml:"assets_dir"`
}

// Validate validates the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.ProjectsDir, validation.Required),
		validation.Field(&c.ContentDir, validation.Required),
		validation.Field(&c.PublicAssetsDir, validation.Required),
		validation.Field(&c.ChaptersDir, validation.Required),
		validation.Field(&c.AssetsDir, validation.Required),
	)
}

// Path resolves p against Root unless it is absolute.
func (c *WorkspaceConfig) Path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// CleanerConfig holds the labeled bullet lines the cleaner removes.
type CleanerConfig struct {
	Labels []string `yaml:"labels"`
}

// WordPressConfig holds the REST endpoint and application-password credentials.
type WordPressConfig struct {
	URL         string        `yaml:"url"`
	User        string        `yaml:"user"`
	AppPassword string        `yaml:"app_password"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Validate validates the WordPress configuration.
func (c *WordPressConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, is.URL),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// ValidateCredentials reports apperr.ErrMissingCredentials when the user or
// application password is empty.
func (c *WordPressConfig) ValidateCredentials() error {
	if c.User == "" || c.AppPassword == "" {
		return fmt.Errorf("WP_USER and WP_APP_PASSWORD must be set: %w", apperr.ErrMissingCredentials)
	}
	return nil
}

// SiteConfig holds the public novel site.
type SiteConfig struct {
	URL string `yaml:"url"`
}

// Validate validates the site configuration.
func (c *SiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, is.URL),
	)
}

// PublishConfig controls post generation.
type PublishConfig struct {
	FullBody bool   `yaml:"full_body"`
	CoverDir string `yaml:"cover_dir"`
}

// NovelConfig is the display metadata of one project.
type NovelConfig struct {
	Title string `yaml:"title"`
	Slug  string `yaml:"slug"`
}

// Validate validates the novel configuration.
func (c *NovelConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Title, validation.Required),
		validation.Field(&c.Slug, validation.Required, is.LowerCase),
	)
}

// LedgerConfig holds the SQLite publish ledger location.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// PreviewConfig holds preview server configuration.
type PreviewConfig struct {
	Port int `yaml:"port"`
}

// Address returns the preview server address.
func (c *PreviewConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the preview configuration.
func (c *PreviewConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Workspace: WorkspaceConfig{
			Root:            ".",
			ProjectsDir:     "projects",
			ContentDir:      filepath.Join("site", "src", "content", "novels"),
			PublicAssetsDir: filepath.Join("site", "public", "assets"),
			ChaptersDir:     "chapters",
			AssetsDir:       "_assets",
		},
		Cleaner: CleanerConfig{
			Labels: cleaner.DefaultLabels,
		},
		WordPress: WordPressConfig{
			URL:     "http://localhost:8881",
			Timeout: 60 * time.Second,
		},
		Site: SiteConfig{
			URL: "http://localhost:4321",
		},
		Publish: PublishConfig{
			CoverDir: "covers",
		},
		Novels: map[string]NovelConfig{
			DefaultNovel: {Title: "2028: World War III", Slug: "2028ww3"},
		},
		Ledger: LedgerConfig{
			Path: filepath.Join(".novelpress", "ledger.db"),
		},
		Preview: PreviewConfig{
			Port: 4322,
		},
	}
}
