package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// defaultAppName names the per-user config and data directories.
const defaultAppName = "kanbo"

// File names under the app config directory.
const (
	configFileName            = "config.toml"
	googleCredentialsFileName = "google_oauth_client.json"
	googleTokenFileName       = "google_token.json"
)

// ErrEmptyBaseDir reports a missing user config or data directory.
var ErrEmptyBaseDir = errors.New("empty base dir")

// Paths holds the resolved per-user locations for one app name.
type Paths struct {
	AppName    string
	ConfigDir  string
	ConfigPath string
	DataDir    string
	DBPath     string
	// Google OAuth client secret and cached token for the google remote.
	GoogleCredentialsPath string
	GoogleTokenPath       string
}

// Options selects the app name and whether dev-mode directories are used.
type Options struct {
	AppName string
	DevMode bool
}

// envOverride names the env vars that relocate the config and data bases on one OS.
type envOverride struct {
	config string
	data   string
}

// overrides lists the per-OS env vars honored by PathsFor. macOS keeps the
// os.UserConfigDir defaults.
var overrides = map[string]envOverride{
	"linux":   {config: "XDG_CONFIG_HOME", data: "XDG_DATA_HOME"},
	"windows": {config: "APPDATA", data: "LOCALAPPDATA"},
}

// DefaultPaths returns the paths for the default app name.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{AppName: defaultAppName})
}

// DefaultPathsWithOptions resolves paths for the running OS. Dev mode
// suffixes the app name with "-dev" so dev builds never touch real data.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = defaultAppName
	}
	if opts.DevMode {
		appName += "-dev"
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir, err := userDataDir(runtime.GOOS, configDir)
	if err != nil {
		return Paths{}, err
	}

	env := map[string]string{}
	for _, o := range overrides {
		env[o.config] = os.Getenv(o.config)
		env[o.data] = os.Getenv(o.data)
	}
	return PathsFor(runtime.GOOS, env, configDir, dataDir, appName)
}

// userDataDir picks the data base before env overrides apply.
func userDataDir(goos, configDir string) (string, error) {
	switch goos {
	case "linux":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("user home dir: %w", err)
		}
		return filepath.Join(home, ".local", "share"), nil
	case "windows":
		if v := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); v != "" {
			return v, nil
		}
	}
	return configDir, nil
}

// PathsFor resolves paths for goos from env overrides and base directories.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if strings.TrimSpace(userConfigDir) == "" || strings.TrimSpace(userDataDir) == "" {
		return Paths{}, ErrEmptyBaseDir
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, fmt.Errorf("empty app name")
	}

	configBase, dataBase := userConfigDir, userDataDir
	if o, ok := overrides[goos]; ok {
		if v := strings.TrimSpace(env[o.config]); v != "" {
			configBase = v
		}
		if v := strings.TrimSpace(env[o.data]); v != "" {
			dataBase = v
		}
	}

	configDir := filepath.Join(configBase, appName)
	dataDir := filepath.Join(dataBase, appName)
	return Paths{
		AppName:               appName,
		ConfigDir:             configDir,
		ConfigPath:            filepath.Join(configDir, configFileName),
		DataDir:               dataDir,
		DBPath:                filepath.Join(dataDir, appName+".db"),
		GoogleCredentialsPath: filepath.Join(configDir, googleCredentialsFileName),
		GoogleTokenPath:       filepath.Join(configDir, googleTokenFileName),
	}, nil
}
