package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evanschultz/kanbo/internal/adapters/remote/dummyjson"
	"github.com/evanschultz/kanbo/internal/adapters/remote/googletasks"
	"github.com/evanschultz/kanbo/internal/adapters/storage/sqlite"
	"github.com/evanschultz/kanbo/internal/app"
	"github.com/evanschultz/kanbo/internal/config"
	"github.com/evanschultz/kanbo/internal/platform"
)

// storeCloseTimeout bounds how long pending remote calls may drain on exit.
const storeCloseTimeout = 10 * time.Second

// settings is the resolved path and config state of one invocation.
type settings struct {
	paths        platform.Paths
	configPath   string
	dbPath       string
	dbOverridden bool
	defaults     config.Config
	cfg          config.Config
}

// resolveSettings applies flag, env and file precedence to paths and config.
func (c *cli) resolveSettings() (settings, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: c.appName,
		DevMode: c.devMode,
	})
	if err != nil {
		return settings{}, err
	}
	s := settings{
		paths:        paths,
		configPath:   strings.TrimSpace(c.configPath),
		dbPath:       strings.TrimSpace(c.dbPath),
		dbOverridden: strings.TrimSpace(c.dbPath) != "",
	}
	if s.configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("KANBO_CONFIG")); envPath != "" {
			s.configPath = envPath
		} else {
			s.configPath = paths.ConfigPath
		}
	}
	if !s.dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("KANBO_DB_PATH")); envPath != "" {
			s.dbPath = envPath
			s.dbOverridden = true
		} else {
			s.dbPath = paths.DBPath
		}
	}

	s.defaults = config.Default(s.dbPath)
	cfg, err := config.Load(s.configPath, s.defaults)
	if err != nil {
		return settings{}, fmt.Errorf("load config %q: %w", s.configPath, err)
	}
	if s.dbOverridden {
		cfg.Database.Path = s.dbPath
	}
	cfg.ApplyGoogleDefaults(paths.GoogleCredentialsPath, paths.GoogleTokenPath)
	if err := cfg.Validate(); err != nil {
		return settings{}, fmt.Errorf("validate config %q: %w", s.configPath, err)
	}
	s.cfg = cfg
	return s, nil
}

// session owns the logger, repository and store of one command run.
type session struct {
	settings
	logger *runtimeLogger
	repo   *sqlite.Repository
	store  *app.Store
}

// sessionOptions tunes how a session is opened.
type sessionOptions struct {
	command string
	// offline skips the remote collaborator even when one is configured.
	offline bool
	// muteConsole keeps runtime logs off the terminal.
	muteConsole bool
}

// openSession resolves settings and wires the store with its collaborators.
func (c *cli) openSession(ctx context.Context, opts sessionOptions) (*session, error) {
	s, err := c.resolveSettings()
	if err != nil {
		return nil, err
	}
	logger, err := newRuntimeLogger(c.stderr, c.appName, c.devMode, s.cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if opts.muteConsole {
		logger.SetConsoleEnabled(false)
	}
	sess := &session{settings: s, logger: logger}

	logger.Info("startup configuration resolved", "app", c.appName, "dev_mode", c.devMode, "command", opts.command)
	logger.Debug("runtime paths resolved", "config_path", s.configPath, "data_dir", s.paths.DataDir, "db_path", s.cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	logger.Info("opening sqlite repository", "db_path", s.cfg.Database.Path)
	repo, err := sqlite.Open(s.cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", s.cfg.Database.Path, "err", err)
		_ = logger.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	sess.repo = repo

	var remote app.Remote
	if !opts.offline {
		remote, err = newRemote(ctx, s.cfg)
		if err != nil {
			logger.Error("remote configure failed", "backend", s.cfg.Remote.Backend, "err", err)
			sess.Close()
			return nil, fmt.Errorf("configure remote: %w", err)
		}
	}
	var mirror app.Mirror
	if s.cfg.Mirror.Enabled {
		mirror = repo
	}
	sess.store = app.NewStore(remote, mirror, time.Now, app.StoreConfig{
		MirrorKey: s.cfg.Mirror.Key,
		Reconcile: app.ReconcilePolicy(strings.ToLower(strings.TrimSpace(s.cfg.Sync.Reconcile))),
		QueueSize: s.cfg.Sync.QueueSize,
	},
		app.WithActivityLog(repo),
		app.WithLogger(logger),
		app.WithOpIDGenerator(uuid.NewString),
	)
	logger.Info("store ready", "backend", s.cfg.Remote.Backend, "remote", sess.store.RemoteEnabled(), "mirror", s.cfg.Mirror.Enabled, "reconcile", sess.store.Reconcile())
	return sess, nil
}

// initialSource maps board.initial_source onto a load source.
func (s *session) initialSource() app.Source {
	switch app.Source(strings.ToLower(strings.TrimSpace(s.cfg.Board.InitialSource))) {
	case app.SourceRemote:
		return app.SourceRemote
	case app.SourceMirror:
		return app.SourceMirror
	default:
		return app.SourceAuto
	}
}

// oneShotSource picks where a one-shot command loads from. With source auto
// and a populated mirror the mirror wins, so local changes survive between
// invocations against a remote that does not persist writes.
func (s *session) oneShotSource(ctx context.Context) app.Source {
	source := s.initialSource()
	if source != app.SourceAuto || !s.cfg.Mirror.Enabled {
		return source
	}
	if _, ok, err := s.repo.LoadValue(ctx, s.cfg.Mirror.Key); err == nil && ok {
		return app.SourceMirror
	}
	return source
}

// load seeds the store from source.
func (s *session) load(ctx context.Context, source app.Source) error {
	if err := s.store.Initialize(ctx, source); err != nil {
		s.logger.Error("board load failed", "source", source, "err", err)
		return fmt.Errorf("load board: %w", err)
	}
	return nil
}

// Close drains queued remote calls, then releases the repository and log sinks.
func (s *session) Close() {
	if s == nil {
		return
	}
	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeCloseTimeout)
		if err := s.store.Close(ctx); err != nil {
			s.logger.Warn("store close incomplete", "err", err)
		}
		cancel()
	}
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			s.logger.Warn("sqlite close failed", "db_path", s.cfg.Database.Path, "err", err)
		}
	}
	_ = s.logger.Close()
}

// newRemote builds the configured remote collaborator; backend none yields nil.
func newRemote(ctx context.Context, cfg config.Config) (app.Remote, error) {
	timeout, err := cfg.RemoteTimeout()
	if err != nil {
		return nil, err
	}
	switch cfg.Remote.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendGoogle:
		return googletasks.New(ctx, googletasks.Options{
			CredentialsPath: cfg.Google.CredentialsPath,
			TokenPath:       cfg.Google.TokenPath,
			ListID:          cfg.Google.ListID,
			Timeout:         timeout,
		})
	case config.BackendDummyJSON, "":
		return dummyjson.New(dummyjson.Options{
			BaseURL:   cfg.Remote.BaseURL,
			UserID:    cfg.Remote.UserID,
			ListLimit: cfg.Remote.ListLimit,
			Timeout:   timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported remote backend %q", cfg.Remote.Backend)
	}
}
