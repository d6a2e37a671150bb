package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	serveradapter "github.com/evanschultz/kanbo/internal/adapters/server"
	"github.com/evanschultz/kanbo/internal/adapters/remote/googletasks"
)

// version is stamped at release time; "dev" enables dev-mode paths.
var version = "dev"

// program is the slice of tea.Program the root command drives.
type program interface {
	Run() (tea.Model, error)
}

// programFactory builds the TUI program; tests swap it for a stub.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

// loginRunner runs the Google OAuth flow.
var loginRunner = googletasks.Login

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run builds the command tree and executes args against it.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(newCLI(stdout, stderr))
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(ctx, root,
		fang.WithVersion(version),
		fang.WithoutManpage(),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	)
}

// cli holds root flag values shared by every subcommand.
type cli struct {
	stdout     io.Writer
	stderr     io.Writer
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

func newCLI(stdout, stderr io.Writer) *cli {
	c := &cli{
		stdout:  stdout,
		stderr:  stderr,
		appName: "kanbo",
		devMode: version == "dev",
	}
	if envDev, ok := parseBoolEnv("KANBO_DEV_MODE"); ok {
		c.devMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("KANBO_APP_NAME")); envApp != "" {
		c.appName = envApp
	}
	return c
}

func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "kanbo",
		Short: "A paginated three-column todo board",
		Long:  "kanbo keeps todo, in-progress and done columns in step with a remote todo service and a local sqlite mirror.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runTUI(cmd.Context())
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to config TOML (env KANBO_CONFIG)")
	flags.StringVar(&c.dbPath, "db", "", "path to sqlite database (env KANBO_DB_PATH)")
	flags.StringVar(&c.appName, "app", c.appName, "application name for config/data path resolution")
	flags.BoolVar(&c.devMode, "dev", c.devMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newBoardCommand(c),
		newAddCommand(c),
		newEditCommand(c),
		newRemoveCommand(c),
		newMoveCommand(c),
		newExportCommand(c),
		newImportCommand(c),
		newServeCommand(c),
		newPathsCommand(c),
		newInitCommand(c),
		newLoginCommand(c),
	)
	return root
}

// parseBoolEnv reads one boolean environment variable.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// parseTaskID parses one positional task id.
func parseTaskID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", raw)
	}
	return id, nil
}
