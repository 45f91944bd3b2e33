package internal

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/novelpress/internal/apperr"
	pkgconfig "github.com/starford/novelpress/pkg/config"
)

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestWordPressConfig_InvalidURL(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.WordPress.URL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid WordPress URL should fail validation")
	}
}

func TestWordPressConfig_Credentials(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		password string
		wantErr  bool
	}{
		{"both set", "editor", "abcd efgh", false},
		{"missing user", "", "abcd efgh", true},
		{"missing password", "editor", "", true},
		{"missing both", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := WordPressConfig{User: tt.user, AppPassword: tt.password}
			err := cfg.ValidateCredentials()
			if tt.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperr.ErrMissingCredentials) {
				t.Errorf("err = %v, want ErrMissingCredentials", err)
			}
		})
	}
}

func TestNovelConfig_RequiresLowerCaseSlug(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Novels["other"] = NovelConfig{Title: "Other", Slug: "Other"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("upper-case slug should fail validation")
	}
	if !strings.Contains(err.Error(), "novels.other") {
		t.Errorf("error = %v, want novels.other prefix", err)
	}
}

func TestPreviewConfig_PortRange(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Preview.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatal("out-of-range port should fail validation")
	}
}

func TestWorkspaceConfig_Path(t *testing.T) {
	ws := WorkspaceConfig{Root: "/srv/novel"}
	if got, want := ws.Path("projects"), filepath.Join("/srv/novel", "projects"); got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
	if got := ws.Path("/abs/dir"); got != "/abs/dir" {
		t.Errorf("Path = %q, want absolute path unchanged", got)
	}
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("NP_TEST_SITE", "https://novel.example")
	p := filepath.Join(t.TempDir(), "novelpress.yaml")
	content := "site:\n  url: ${NP_TEST_SITE}\npublish:\n  full_body: true\nwordpress:\n  timeout: 5s\n"
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(p, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Site.URL != "https://novel.example" {
		t.Errorf("site url = %q", cfg.Site.URL)
	}
	if !cfg.Publish.FullBody {
		t.Error("full_body not applied")
	}
	if cfg.WordPress.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", cfg.WordPress.Timeout)
	}
	if cfg.WordPress.URL != "http://localhost:8881" {
		t.Errorf("wordpress url = %q, want default", cfg.WordPress.URL)
	}
	if cfg.Novels[DefaultNovel].Title != "2028: World War III" {
		t.Errorf("default novel lost: %+v", cfg.Novels)
	}
}

func TestLoadOptional_MissingFileUsesDefaults(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := pkgconfig.LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), cfg); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Preview.Port != 4322 {
		t.Errorf("port = %d, want default", cfg.Preview.Port)
	}
}
