package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Backend names the remote collaborator implementation.
type Backend string

const (
	BackendDummyJSON Backend = "dummyjson"
	BackendGoogle    Backend = "google"
	BackendNone      Backend = "none"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Remote   RemoteConfig   `toml:"remote"`
	Google   GoogleConfig   `toml:"google"`
	Mirror   MirrorConfig   `toml:"mirror"`
	Board    BoardConfig    `toml:"board"`
	Sync     SyncConfig     `toml:"sync"`
	Logging  LoggingConfig  `toml:"logging"`
	Server   ServerConfig   `toml:"server"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type RemoteConfig struct {
	Backend   Backend `toml:"backend"`
	BaseURL   string  `toml:"base_url"`
	UserID    int     `toml:"user_id"`
	Timeout   string  `toml:"timeout"`
	ListLimit int     `toml:"list_limit"`
}

type GoogleConfig struct {
	CredentialsPath string `toml:"credentials_path"`
	TokenPath       string `toml:"token_path"`
	ListID          string `toml:"list_id"`
}

type MirrorConfig struct {
	Enabled bool   `toml:"enabled"`
	Key     string `toml:"key"`
}

type BoardConfig struct {
	PageSize        int    `toml:"page_size"`
	PageSizeOptions []int  `toml:"page_size_options"`
	InitialSource   string `toml:"initial_source"` // auto | remote | mirror
}

type SyncConfig struct {
	Reconcile string `toml:"reconcile"` // local-wins | last-write-wins
	QueueSize int    `toml:"queue_size"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Remote: RemoteConfig{
			Backend: BackendDummyJSON,
			BaseURL: "https://dummyjson.com/todos",
			UserID:  1,
			Timeout: "10s",
		},
		Google: GoogleConfig{
			ListID: "@default",
		},
		Mirror: MirrorConfig{
			Enabled: true,
			Key:     "tasks",
		},
		Board: BoardConfig{
			PageSize:        5,
			PageSizeOptions: []int{5, 10, 20},
			InitialSource:   "auto",
		},
		Sync: SyncConfig{
			Reconcile: "local-wins",
			QueueSize: 64,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".kanbo/log",
			},
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:5437",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	switch c.Remote.Backend {
	case BackendDummyJSON, BackendGoogle, BackendNone:
	default:
		return fmt.Errorf("invalid remote.backend: %q", c.Remote.Backend)
	}
	if c.Remote.Backend == BackendDummyJSON && strings.TrimSpace(c.Remote.BaseURL) == "" {
		return errors.New("remote.base_url is required for the dummyjson backend")
	}
	if c.Remote.UserID < 0 {
		return fmt.Errorf("remote.user_id must be >= 0")
	}
	if c.Remote.ListLimit < 0 {
		return fmt.Errorf("remote.list_limit must be >= 0")
	}
	if _, err := c.RemoteTimeout(); err != nil {
		return err
	}

	if c.Mirror.Enabled && strings.TrimSpace(c.Mirror.Key) == "" {
		return errors.New("mirror.key is required when mirror.enabled is true")
	}

	if len(c.Board.PageSizeOptions) == 0 {
		return errors.New("board.page_size_options must include at least one size")
	}
	for i, size := range c.Board.PageSizeOptions {
		if size <= 0 {
			return fmt.Errorf("board.page_size_options[%d] must be > 0", i)
		}
	}
	if !slices.Contains(c.Board.PageSizeOptions, c.Board.PageSize) {
		return fmt.Errorf("board.page_size %d is not one of board.page_size_options", c.Board.PageSize)
	}
	switch strings.TrimSpace(strings.ToLower(c.Board.InitialSource)) {
	case "", "auto", "remote", "mirror":
	default:
		return fmt.Errorf("invalid board.initial_source: %q", c.Board.InitialSource)
	}
	if strings.EqualFold(strings.TrimSpace(c.Board.InitialSource), "mirror") && !c.Mirror.Enabled {
		return errors.New("board.initial_source = \"mirror\" requires mirror.enabled")
	}

	switch strings.TrimSpace(strings.ToLower(c.Sync.Reconcile)) {
	case "", "local-wins", "last-write-wins":
	default:
		return fmt.Errorf("invalid sync.reconcile: %q", c.Sync.Reconcile)
	}
	if c.Sync.QueueSize < 0 {
		return fmt.Errorf("sync.queue_size must be >= 0")
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	for name, endpoint := range map[string]string{
		"server.api_endpoint": c.Server.APIEndpoint,
		"server.mcp_endpoint": c.Server.MCPEndpoint,
	} {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" && !strings.HasPrefix(endpoint, "/") {
			return fmt.Errorf("%s must start with '/': %q", name, endpoint)
		}
	}
	return nil
}

// RemoteTimeout parses remote.timeout, which defaults to ten seconds when unset.
func (c Config) RemoteTimeout() (time.Duration, error) {
	raw := strings.TrimSpace(c.Remote.Timeout)
	if raw == "" {
		return 10 * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid remote.timeout %q: %w", c.Remote.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("remote.timeout must be > 0: %q", c.Remote.Timeout)
	}
	return d, nil
}

// ApplyGoogleDefaults fills unset Google credential paths with the given defaults.
func (c *Config) ApplyGoogleDefaults(credentialsPath, tokenPath string) {
	if strings.TrimSpace(c.Google.CredentialsPath) == "" {
		c.Google.CredentialsPath = credentialsPath
	}
	if strings.TrimSpace(c.Google.TokenPath) == "" {
		c.Google.TokenPath = tokenPath
	}
}

// Write encodes cfg as TOML at path. An existing file is only replaced when
// overwrite is set.
func Write(path string, cfg Config, overwrite bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
