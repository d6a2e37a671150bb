package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	serveradapter "github.com/evanschultz/kanbo/internal/adapters/server"
	servercommon "github.com/evanschultz/kanbo/internal/adapters/server/common"
	"github.com/evanschultz/kanbo/internal/adapters/remote/googletasks"
	"github.com/evanschultz/kanbo/internal/app"
	"github.com/evanschultz/kanbo/internal/config"
	"github.com/evanschultz/kanbo/internal/domain"
	"github.com/evanschultz/kanbo/internal/tui"
)

// runTUI opens the interactive board.
func (c *cli) runTUI(ctx context.Context) error {
	sess, err := c.openSession(ctx, sessionOptions{command: "tui", muteConsole: true})
	if err != nil {
		return err
	}
	defer sess.Close()

	events, unsubscribe := sess.store.Subscribe()
	defer unsubscribe()

	m := tui.NewModel(
		sess.store,
		tui.WithEvents(events),
		tui.WithInitialSource(sess.initialSource()),
		tui.WithPageSizes(sess.cfg.Board.PageSize, sess.cfg.Board.PageSizeOptions),
	)
	sess.logger.Info("starting tui program loop")
	if _, err := programFactory(m).Run(); err != nil {
		sess.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	sess.logger.Info("command flow complete", "command", "tui")
	return nil
}

func newBoardCommand(c *cli) *cobra.Command {
	var (
		pageSize int
		pages    [3]int
		source   string
	)
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Print the paginated board and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := c.openSession(cmd.Context(), sessionOptions{command: "board"})
			if err != nil {
				return err
			}
			defer sess.Close()

			loadFrom := sess.oneShotSource(cmd.Context())
			if source != "" {
				loadFrom, err = parseSource(source)
				if err != nil {
					return err
				}
			}
			if err := sess.load(cmd.Context(), loadFrom); err != nil {
				return err
			}
			if pageSize == 0 {
				pageSize = sess.cfg.Board.PageSize
			}
			adapter := servercommon.NewAppServiceAdapter(sess.store, sess.cfg.Board.PageSize, sess.cfg.Board.PageSizeOptions)
			req := servercommon.BoardRequest{PageSize: pageSize, Pages: map[string]int{}}
			for i, status := range domain.Statuses() {
				if pages[i] < 1 {
					return fmt.Errorf("%s page must be >= 1", status)
				}
				req.Pages[string(status)] = pages[i] - 1
			}
			board, err := adapter.Board(cmd.Context(), req)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.stdout, renderBoardTable(c.stdout, board))
			return err
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&pageSize, "page-size", 0, "tasks per column page (defaults to board.page_size)")
	flags.IntVar(&pages[0], "todo-page", 1, "page of the todo column")
	flags.IntVar(&pages[1], "in-progress-page", 1, "page of the in-progress column")
	flags.IntVar(&pages[2], "done-page", 1, "page of the done column")
	flags.StringVar(&source, "source", "", "load from auto, remote or mirror (defaults to the mirror once populated, else board.initial_source)")
	return cmd
}

func newAddCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "add <text>",
		Short: "Add a task to the todo column",
		Long:  "Add a task to the todo column. One-shot commands read the local mirror once it holds a board; run `kanbo board --source remote` to refetch, which replaces local-only tasks.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.mutate(cmd.Context(), "add", func(ctx context.Context, store *app.Store) (string, error) {
				task, ok := store.Add(ctx, strings.Join(args, " "))
				if !ok {
					return "", errors.New("task text is required")
				}
				return fmt.Sprintf("added #%d %s", task.ID, task.Text), nil
			})
		},
	}
}

func newEditCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <text>",
		Short: "Replace the text of a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return c.mutate(cmd.Context(), "edit", func(ctx context.Context, store *app.Store) (string, error) {
				if _, err := store.Task(id); err != nil {
					return "", fmt.Errorf("task %d: %w", id, err)
				}
				if !store.Edit(ctx, id, strings.Join(args[1:], " ")) {
					return "", errors.New("task text is required")
				}
				task, err := store.Task(id)
				if err != nil {
					return "", fmt.Errorf("task %d: %w", id, err)
				}
				return fmt.Sprintf("edited #%d %s", task.ID, task.Text), nil
			})
		},
	}
}

func newRemoveCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return c.mutate(cmd.Context(), "rm", func(ctx context.Context, store *app.Store) (string, error) {
				if !store.Delete(ctx, id) {
					return "", fmt.Errorf("task %d: %w", id, app.ErrNotFound)
				}
				return fmt.Sprintf("deleted #%d", id), nil
			})
		},
	}
}

func newMoveCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <todo|in-progress|done>",
		Short: "Move a task to another column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			status := domain.NormalizeStatus(args[1])
			if !status.IsValid() {
				return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, args[1])
			}
			return c.mutate(cmd.Context(), "move", func(ctx context.Context, store *app.Store) (string, error) {
				moved, err := store.SetStatus(ctx, id, status)
				if err != nil {
					return "", err
				}
				if !moved {
					return "", fmt.Errorf("task %d: %w", id, app.ErrNotFound)
				}
				return fmt.Sprintf("moved #%d to %s", id, status.Title()), nil
			})
		},
	}
}

// mutate loads the board, applies fn and reports its summary. Queued remote
// calls drain when the session closes.
func (c *cli) mutate(ctx context.Context, command string, fn func(context.Context, *app.Store) (string, error)) error {
	sess, err := c.openSession(ctx, sessionOptions{command: command})
	if err != nil {
		return err
	}
	defer sess.Close()
	if err := sess.load(ctx, sess.oneShotSource(ctx)); err != nil {
		return err
	}
	summary, err := fn(ctx, sess.store)
	if err != nil {
		sess.logger.Error("command flow failed", "command", command, "err", err)
		return err
	}
	_, err = fmt.Fprintln(c.stdout, summary)
	return err
}

func newExportCommand(c *cli) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the mirrored board as snapshot JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := c.openSession(cmd.Context(), sessionOptions{command: "export", offline: true})
			if err != nil {
				return err
			}
			defer sess.Close()
			if err := sess.load(cmd.Context(), app.SourceMirror); err != nil {
				return err
			}
			encoded, err := json.MarshalIndent(sess.store.ExportSnapshot(), "", "  ")
			if err != nil {
				return fmt.Errorf("encode snapshot json: %w", err)
			}
			encoded = append(encoded, '\n')
			if outPath == "-" {
				if _, err := c.stdout.Write(encoded); err != nil {
					return fmt.Errorf("write snapshot to stdout: %w", err)
				}
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("create export output dir: %w", err)
			}
			if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
				return fmt.Errorf("write export file: %w", err)
			}
			sess.logger.Info("snapshot exported", "path", outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

func newImportCommand(c *cli) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the mirrored board with a snapshot",
		Long:  "Replace the mirrored board with a snapshot. Imported tasks are not pushed to the remote.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return errors.New("--in is required")
			}
			content, err := os.ReadFile(inPath)
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			snap, err := app.DecodeSnapshot(content)
			if err != nil {
				return err
			}
			sess, err := c.openSession(cmd.Context(), sessionOptions{command: "import", offline: true})
			if err != nil {
				return err
			}
			defer sess.Close()
			if err := sess.store.ImportSnapshot(cmd.Context(), snap); err != nil {
				return fmt.Errorf("import snapshot: %w", err)
			}
			_, err = fmt.Fprintf(c.stdout, "imported %d tasks\n", len(snap.Tasks))
			return err
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	return cmd
}

func newServeCommand(c *cli) *cobra.Command {
	var httpBind, apiEndpoint, mcpEndpoint string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board over HTTP REST and MCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := c.openSession(cmd.Context(), sessionOptions{command: "serve"})
			if err != nil {
				return err
			}
			defer sess.Close()
			if err := sess.load(cmd.Context(), sess.initialSource()); err != nil {
				return err
			}
			cfg := serveradapter.Config{
				HTTPBind:      firstNonEmpty(httpBind, sess.cfg.Server.HTTPBind),
				APIEndpoint:   firstNonEmpty(apiEndpoint, sess.cfg.Server.APIEndpoint),
				MCPEndpoint:   firstNonEmpty(mcpEndpoint, sess.cfg.Server.MCPEndpoint),
				ServerName:    c.appName,
				ServerVersion: version,
			}
			deps := serveradapter.Dependencies{
				Board:  servercommon.NewAppServiceAdapter(sess.store, sess.cfg.Board.PageSize, sess.cfg.Board.PageSizeOptions),
				Logger: sess.logger,
			}
			if err := serveCommandRunner(cmd.Context(), cfg, deps); err != nil {
				sess.logger.Error("command flow failed", "command", "serve", "err", err)
				return fmt.Errorf("run serve command: %w", err)
			}
			sess.logger.Info("command flow complete", "command", "serve")
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&httpBind, "http", "", "HTTP listen address (defaults to server.http_bind)")
	flags.StringVar(&apiEndpoint, "api-endpoint", "", "HTTP API base endpoint (defaults to server.api_endpoint)")
	flags.StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP endpoint (defaults to server.mcp_endpoint)")
	return cmd
}

func newPathsCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			s, err := c.resolveSettings()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.stdout, "app: %s\n", c.appName)
			_, _ = fmt.Fprintf(c.stdout, "dev_mode: %t\n", c.devMode)
			_, _ = fmt.Fprintf(c.stdout, "config: %s\n", s.configPath)
			_, _ = fmt.Fprintf(c.stdout, "data_dir: %s\n", s.paths.DataDir)
			_, _ = fmt.Fprintf(c.stdout, "db: %s\n", s.cfg.Database.Path)
			_, _ = fmt.Fprintf(c.stdout, "backend: %s\n", s.cfg.Remote.Backend)
			_, _ = fmt.Fprintf(c.stdout, "google_credentials: %s\n", s.cfg.Google.CredentialsPath)
			_, _ = fmt.Fprintf(c.stdout, "google_token: %s\n", s.cfg.Google.TokenPath)
			return nil
		},
	}
}

func newInitCommand(c *cli) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			s, err := c.resolveSettings()
			if err != nil {
				return err
			}
			if err := config.Write(s.configPath, s.defaults, force); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			_, err = fmt.Fprintf(c.stdout, "wrote config: %s\n", s.configPath)
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func newLoginCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize the Google Tasks backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := c.resolveSettings()
			if err != nil {
				return err
			}
			if err := loginRunner(cmd.Context(), googletasks.LoginOptions{
				CredentialsPath: s.cfg.Google.CredentialsPath,
				TokenPath:       s.cfg.Google.TokenPath,
				Prompt:          c.stdout,
			}); err != nil {
				return fmt.Errorf("google login: %w", err)
			}
			_, err = fmt.Fprintf(c.stdout, "google token ready: %s\n", s.cfg.Google.TokenPath)
			return err
		},
	}
}

// parseSource validates one --source value.
func parseSource(raw string) (app.Source, error) {
	switch source := app.Source(strings.ToLower(strings.TrimSpace(raw))); source {
	case app.SourceAuto, app.SourceRemote, app.SourceMirror:
		return source, nil
	default:
		return "", fmt.Errorf("%w: %q", app.ErrInvalidSource, raw)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
