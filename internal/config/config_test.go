package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/kanbo.db")
	if cfg.Database.Path != "/tmp/kanbo.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Remote.Backend != BackendDummyJSON {
		t.Fatalf("unexpected backend %q", cfg.Remote.Backend)
	}
	if cfg.Board.PageSize != 5 || len(cfg.Board.PageSizeOptions) != 3 {
		t.Fatalf("unexpected board defaults %#v", cfg.Board)
	}
	if !cfg.Mirror.Enabled || cfg.Mirror.Key != "tasks" {
		t.Fatalf("unexpected mirror defaults %#v", cfg.Mirror)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate(defaults) error = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/kanbo.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "/custom/kanbo.db"

[remote]
backend = "google"
timeout = "3s"

[mirror]
key = "inProgressTasks"

[board]
page_size = 10

[sync]
reconcile = "last-write-wins"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/custom/kanbo.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Remote.Backend != BackendGoogle {
		t.Fatalf("unexpected backend %q", cfg.Remote.Backend)
	}
	if cfg.Remote.BaseURL != "https://dummyjson.com/todos" {
		t.Fatalf("expected untouched defaults to survive, got %q", cfg.Remote.BaseURL)
	}
	timeout, err := cfg.RemoteTimeout()
	if err != nil || timeout != 3*time.Second {
		t.Fatalf("RemoteTimeout() = %v, %v", timeout, err)
	}
	if cfg.Mirror.Key != "inProgressTasks" || cfg.Board.PageSize != 10 || cfg.Sync.Reconcile != "last-write-wins" {
		t.Fatalf("unexpected overrides %#v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]struct {
		content string
		want    string
	}{
		"backend":   {"[remote]\nbackend = \"ftp\"\n", "remote.backend"},
		"timeout":   {"[remote]\ntimeout = \"soon\"\n", "remote.timeout"},
		"page size": {"[board]\npage_size = 7\n", "board.page_size"},
		"source":    {"[board]\ninitial_source = \"disk\"\n", "board.initial_source"},
		"reconcile": {"[sync]\nreconcile = \"merge\"\n", "sync.reconcile"},
		"level":     {"[logging]\nlevel = \"loud\"\n", "logging.level"},
		"endpoint":  {"[server]\napi_endpoint = \"api\"\n", "server.api_endpoint"},
		"mirror":    {"[mirror]\nenabled = false\n[board]\ninitial_source = \"mirror\"\n", "mirror.enabled"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			_, err := Load(path, Default("/tmp/kanbo.db"))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Load() error = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default("/tmp/kanbo.db")
	cfg.Board.PageSize = 20
	if err := Write(path, cfg, false); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := Write(path, cfg, false); err == nil {
		t.Fatal("expected existing config error")
	}
	loaded, err := Load(path, Default("/other.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Board.PageSize != 20 || loaded.Database.Path != "/tmp/kanbo.db" {
		t.Fatalf("unexpected round-tripped config %#v", loaded)
	}
}

func TestApplyGoogleDefaults(t *testing.T) {
	cfg := Default("/tmp/kanbo.db")
	cfg.Google.TokenPath = "/keep/token.json"
	cfg.ApplyGoogleDefaults("/home/u/.config/kanbo/client.json", "/home/u/.config/kanbo/token.json")
	if cfg.Google.CredentialsPath != "/home/u/.config/kanbo/client.json" {
		t.Fatalf("unexpected credentials path %q", cfg.Google.CredentialsPath)
	}
	if cfg.Google.TokenPath != "/keep/token.json" {
		t.Fatalf("explicit token path overwritten: %q", cfg.Google.TokenPath)
	}
}
