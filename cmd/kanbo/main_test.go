package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	serveradapter "github.com/evanschultz/kanbo/internal/adapters/server"
	servercommon "github.com/evanschultz/kanbo/internal/adapters/server/common"
	"github.com/evanschultz/kanbo/internal/adapters/remote/googletasks"
	"github.com/evanschultz/kanbo/internal/app"
	"github.com/evanschultz/kanbo/internal/config"
	"github.com/evanschultz/kanbo/internal/domain"
	"github.com/evanschultz/kanbo/internal/tui"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("KANBO_DEV_MODE", "false")
	os.Exit(m.Run())
}

// fakeProgram records the model it was built with.
type fakeProgram struct {
	model  tea.Model
	runErr error
}

// Run returns the configured error without driving the model.
func (f fakeProgram) Run() (tea.Model, error) {
	return f.model, f.runErr
}

// testEnv holds per-test config and database paths.
type testEnv struct {
	dir        string
	configPath string
	dbPath     string
}

// newTestEnv writes an offline config with dev file logging disabled.
func newTestEnv(t *testing.T, extra string) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.toml"),
		dbPath:     filepath.Join(dir, "kanbo.db"),
	}
	content := `
[remote]
backend = "none"

[logging]
level = "error"

[logging.dev_file]
enabled = false
` + extra
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

// run executes one CLI invocation against env and returns stdout.
func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"--config", e.configPath, "--db", e.dbPath}, args...)
	err := run(context.Background(), full, &out, &errOut)
	return out.String(), err
}

// mustRun executes one CLI invocation and fails the test on error.
func (e testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("run(%v) error = %v", args, err)
	}
	return out
}

var addedPattern = regexp.MustCompile(`added #(\d+) `)

// addedID extracts the task id from add command output.
func addedID(t *testing.T, out string) int64 {
	t.Helper()
	match := addedPattern.FindStringSubmatch(out)
	if match == nil {
		t.Fatalf("expected added summary, got %q", out)
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		t.Fatalf("parse id %q: %v", match[1], err)
	}
	return id
}

// TestRunVersion verifies the version flag is wired through fang.
func TestRunVersion(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"--version"}, &out, io.Discard); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(out.String(), version) {
		t.Fatalf("expected version %q in output, got %q", version, out.String())
	}
}

// TestRunStartsProgram verifies the root command builds the board model.
func TestRunStartsProgram(t *testing.T) {
	env := newTestEnv(t, "")
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })

	var built tea.Model
	programFactory = func(m tea.Model) program {
		built = m
		return fakeProgram{model: m}
	}
	env.mustRun(t)
	if _, ok := built.(tui.Model); !ok {
		t.Fatalf("expected tui.Model, got %T", built)
	}
}

// TestRunProgramError verifies TUI failures surface as command errors.
func TestRunProgramError(t *testing.T) {
	env := newTestEnv(t, "")
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })

	programFactory = func(m tea.Model) program {
		return fakeProgram{runErr: errors.New("boom")}
	}
	_, err := env.run(t)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected program error, got %v", err)
	}
}

// TestRunTaskCommands walks one task through every column and deletes it.
func TestRunTaskCommands(t *testing.T) {
	env := newTestEnv(t, "")

	id := addedID(t, env.mustRun(t, "add", "write", "release", "notes"))
	if out := env.mustRun(t, "board"); !strings.Contains(out, "write release notes") || !strings.Contains(out, "Todo (1)") {
		t.Fatalf("expected task in todo column, got\n%s", out)
	}

	out := env.mustRun(t, "edit", strconv.FormatInt(id, 10), "publish", "release", "notes")
	if want := fmt.Sprintf("edited #%d publish release notes", id); !strings.Contains(out, want) {
		t.Fatalf("expected %q, got %q", want, out)
	}

	out = env.mustRun(t, "move", strconv.FormatInt(id, 10), "in-progress")
	if want := fmt.Sprintf("moved #%d to In progress", id); !strings.Contains(out, want) {
		t.Fatalf("expected %q, got %q", want, out)
	}
	if out := env.mustRun(t, "board"); !strings.Contains(out, "In progress (1)") {
		t.Fatalf("expected task in progress, got\n%s", out)
	}

	env.mustRun(t, "move", strconv.FormatInt(id, 10), "done")
	if out := env.mustRun(t, "board"); !strings.Contains(out, "Done (1)") || !strings.Contains(out, "Todo (0)") {
		t.Fatalf("expected task done, got\n%s", out)
	}

	out = env.mustRun(t, "delete", strconv.FormatInt(id, 10))
	if want := fmt.Sprintf("deleted #%d", id); !strings.Contains(out, want) {
		t.Fatalf("expected %q, got %q", want, out)
	}
	if out := env.mustRun(t, "board"); strings.Contains(out, "publish release notes") {
		t.Fatalf("expected task removed, got\n%s", out)
	}
}

// TestRunTaskCommandErrors verifies argument and lookup failures.
func TestRunTaskCommandErrors(t *testing.T) {
	env := newTestEnv(t, "")

	if _, err := env.run(t, "add", "   "); err == nil {
		t.Fatal("expected blank add to fail")
	}
	if _, err := env.run(t, "edit", "abc", "text"); err == nil || !strings.Contains(err.Error(), "invalid task id") {
		t.Fatalf("expected invalid id error, got %v", err)
	}
	if _, err := env.run(t, "edit", "999", "text"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for edit, got %v", err)
	}
	if _, err := env.run(t, "rm", "999"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for rm, got %v", err)
	}
	if _, err := env.run(t, "move", "1", "archived"); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := env.run(t, "board", "--source", "cloud"); !errors.Is(err, app.ErrInvalidSource) {
		t.Fatalf("expected ErrInvalidSource, got %v", err)
	}
	if _, err := env.run(t, "board", "--todo-page", "0"); err == nil {
		t.Fatal("expected page 0 to be rejected")
	}
	if _, err := env.run(t, "board", "--page-size", "7"); !errors.Is(err, servercommon.ErrInvalidRequest) {
		t.Fatalf("expected invalid page size, got %v", err)
	}
}

// TestRunBoardPagination verifies page flags select the second todo page.
func TestRunBoardPagination(t *testing.T) {
	env := newTestEnv(t, "")
	ids := make([]int64, 0, 7)
	for i := range 7 {
		ids = append(ids, addedID(t, env.mustRun(t, "add", fmt.Sprintf("task %d", i+1))))
	}

	first := env.mustRun(t, "board")
	if !strings.Contains(first, "page 1/2") || strings.Contains(first, fmt.Sprintf("#%d ", ids[5])) {
		t.Fatalf("unexpected first page\n%s", first)
	}
	second := env.mustRun(t, "board", "--todo-page", "2")
	for _, id := range ids[5:] {
		if !strings.Contains(second, fmt.Sprintf("#%d task", id)) {
			t.Fatalf("expected #%d on second page\n%s", id, second)
		}
	}
	if !strings.Contains(second, "page 2/2") {
		t.Fatalf("expected page footer 2/2\n%s", second)
	}
	wide := env.mustRun(t, "board", "--page-size", "10")
	if !strings.Contains(wide, "page 1/1") {
		t.Fatalf("expected single page at size 10\n%s", wide)
	}
}

// TestRunExportImportRoundTrip verifies snapshots survive a fresh database.
func TestRunExportImportRoundTrip(t *testing.T) {
	env := newTestEnv(t, "")
	id := addedID(t, env.mustRun(t, "add", "carry", "me", "over"))
	env.mustRun(t, "move", strconv.FormatInt(id, 10), "done")

	snapPath := filepath.Join(env.dir, "out", "snapshot.json")
	env.mustRun(t, "export", "--out", snapPath)
	content, err := os.ReadFile(snapPath)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.Tasks) != 1 || snap.Tasks[0].Todo != "carry me over" {
		t.Fatalf("unexpected snapshot tasks %#v", snap.Tasks)
	}

	stdoutSnap := env.mustRun(t, "export")
	if !strings.Contains(stdoutSnap, `"carry me over"`) {
		t.Fatalf("expected stdout export, got %q", stdoutSnap)
	}

	fresh := newTestEnv(t, "")
	out := fresh.mustRun(t, "import", "--in", snapPath)
	if !strings.Contains(out, "imported 1 tasks") {
		t.Fatalf("unexpected import output %q", out)
	}
	board := fresh.mustRun(t, "board")
	if !strings.Contains(board, "carry me over") || !strings.Contains(board, "Done (1)") {
		t.Fatalf("expected imported done task\n%s", board)
	}
}

// TestRunImportRejectsInvalidSnapshot verifies schema failures abort import.
func TestRunImportRejectsInvalidSnapshot(t *testing.T) {
	env := newTestEnv(t, "")
	if _, err := env.run(t, "import"); err == nil || !strings.Contains(err.Error(), "--in is required") {
		t.Fatalf("expected missing --in error, got %v", err)
	}
	badPath := filepath.Join(env.dir, "bad.json")
	if err := os.WriteFile(badPath, []byte(`{"version":"1","tasks":[{"id":"x"}]}`), 0o644); err != nil {
		t.Fatalf("write bad snapshot: %v", err)
	}
	if _, err := env.run(t, "import", "--in", badPath); err == nil {
		t.Fatal("expected invalid snapshot error")
	}
}

// TestRunServeUsesConfiguredEndpoints verifies serve wiring without binding a port.
func TestRunServeUsesConfiguredEndpoints(t *testing.T) {
	env := newTestEnv(t, `
[server]
api_endpoint = "/api/v2"
`)
	env.mustRun(t, "add", "served task")

	origRunner := serveCommandRunner
	t.Cleanup(func() { serveCommandRunner = origRunner })

	var (
		gotCfg   serveradapter.Config
		gotTasks []servercommon.Task
	)
	serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
		gotCfg = cfg
		if deps.Board == nil || deps.Logger == nil {
			return errors.New("missing dependencies")
		}
		var err error
		gotTasks, err = deps.Board.ListTasks(ctx, servercommon.ListTasksRequest{})
		return err
	}
	env.mustRun(t, "serve", "--http", "127.0.0.1:9999")

	if gotCfg.HTTPBind != "127.0.0.1:9999" {
		t.Fatalf("expected http flag override, got %q", gotCfg.HTTPBind)
	}
	if gotCfg.APIEndpoint != "/api/v2" || gotCfg.MCPEndpoint != "/mcp" {
		t.Fatalf("unexpected endpoints %#v", gotCfg)
	}
	if gotCfg.ServerName != "kanbo" || gotCfg.ServerVersion != version {
		t.Fatalf("unexpected server identity %#v", gotCfg)
	}
	if len(gotTasks) != 1 || gotTasks[0].Text != "served task" {
		t.Fatalf("expected loaded board in serve deps, got %#v", gotTasks)
	}
}

// TestRunServeError verifies runner failures are wrapped.
func TestRunServeError(t *testing.T) {
	env := newTestEnv(t, "")
	origRunner := serveCommandRunner
	t.Cleanup(func() { serveCommandRunner = origRunner })
	serveCommandRunner = func(context.Context, serveradapter.Config, serveradapter.Dependencies) error {
		return errors.New("bind failed")
	}
	_, err := env.run(t, "serve")
	if err == nil || !strings.Contains(err.Error(), "run serve command: bind failed") {
		t.Fatalf("expected wrapped serve error, got %v", err)
	}
}

// TestRunPaths verifies resolved paths honor flags.
func TestRunPaths(t *testing.T) {
	env := newTestEnv(t, "")
	out := env.mustRun(t, "paths")
	for _, want := range []string{
		"app: kanbo",
		"dev_mode: false",
		"config: " + env.configPath,
		"db: " + env.dbPath,
		"backend: none",
		"google_credentials: ",
		filepath.Join("kanbo", "google_oauth_client.json") + "\n",
		filepath.Join("kanbo", "google_token.json") + "\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in paths output\n%s", want, out)
		}
	}
}

// TestRunPathsUsesEnv verifies env vars apply when flags are absent.
func TestRunPathsUsesEnv(t *testing.T) {
	env := newTestEnv(t, "")
	t.Setenv("KANBO_CONFIG", env.configPath)
	t.Setenv("KANBO_DB_PATH", env.dbPath)

	var out bytes.Buffer
	if err := run(context.Background(), []string{"paths"}, &out, io.Discard); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(out.String(), "db: "+env.dbPath) || !strings.Contains(out.String(), "config: "+env.configPath) {
		t.Fatalf("expected env paths, got\n%s", out.String())
	}
}

// TestRunInitWritesConfig verifies init refuses to clobber without --force.
func TestRunInitWritesConfig(t *testing.T) {
	dir := t.TempDir()
	env := testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "nested", "config.toml"),
		dbPath:     filepath.Join(dir, "kanbo.db"),
	}
	out := env.mustRun(t, "init")
	if !strings.Contains(out, "wrote config: "+env.configPath) {
		t.Fatalf("unexpected init output %q", out)
	}
	cfg, err := config.Load(env.configPath, config.Default("unused.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != env.dbPath {
		t.Fatalf("expected db path %q, got %q", env.dbPath, cfg.Database.Path)
	}
	if _, err := env.run(t, "init"); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected existing config error, got %v", err)
	}
	env.mustRun(t, "init", "--force")
}

// TestRunLogin verifies login resolves the configured Google paths.
func TestRunLogin(t *testing.T) {
	env := newTestEnv(t, `
[google]
credentials_path = "/tmp/kanbo-test/client.json"
token_path = "/tmp/kanbo-test/token.json"
`)
	origLogin := loginRunner
	t.Cleanup(func() { loginRunner = origLogin })

	var got googletasks.LoginOptions
	loginRunner = func(_ context.Context, opts googletasks.LoginOptions) error {
		got = opts
		return nil
	}
	out := env.mustRun(t, "login")
	if got.CredentialsPath != "/tmp/kanbo-test/client.json" || got.TokenPath != "/tmp/kanbo-test/token.json" {
		t.Fatalf("unexpected login options %#v", got)
	}
	if got.Prompt == nil {
		t.Fatal("expected prompt writer")
	}
	if !strings.Contains(out, "google token ready: /tmp/kanbo-test/token.json") {
		t.Fatalf("unexpected login output %q", out)
	}

	loginRunner = func(context.Context, googletasks.LoginOptions) error {
		return errors.New("denied")
	}
	if _, err := env.run(t, "login"); err == nil || !strings.Contains(err.Error(), "google login: denied") {
		t.Fatalf("expected wrapped login error, got %v", err)
	}
}

// remoteRequest is one request seen by the fake todo service.
type remoteRequest struct {
	method string
	path   string
	body   map[string]any
}

// fakeTodoService serves the subset of the dummyjson todos API the board uses.
type fakeTodoService struct {
	mu       sync.Mutex
	requests []remoteRequest
}

func (s *fakeTodoService) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := remoteRequest{method: r.Method, path: r.URL.Path}
		if r.Body != nil && r.Method != http.MethodGet {
			_ = json.NewDecoder(r.Body).Decode(&req.body)
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/todos":
			_, _ = w.Write([]byte(`{"todos":[{"id":1,"todo":"Do something nice","completed":false,"userId":26},{"id":2,"todo":"Memorize a poem","completed":true,"userId":13}],"total":2,"skip":0,"limit":2}`))
		case r.Method == http.MethodPost && r.URL.Path == "/todos/add":
			_, _ = fmt.Fprintf(w, `{"id":255,"todo":%q,"completed":false,"userId":1}`, req.body["todo"])
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/todos/"):
			_, _ = fmt.Fprintf(w, `{"id":%s,"todo":"Do something nice","completed":%t,"userId":26}`, strings.TrimPrefix(r.URL.Path, "/todos/"), req.body["completed"] == true)
		default:
			t.Errorf("unexpected remote request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	})
}

// find returns the first recorded request matching method and path.
func (s *fakeTodoService) find(method, path string) (remoteRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.requests {
		if req.method == method && req.path == path {
			return req, true
		}
	}
	return remoteRequest{}, false
}

// TestRunRemoteBackedCommands verifies commands load from and push to the todo service.
func TestRunRemoteBackedCommands(t *testing.T) {
	svc := &fakeTodoService{}
	ts := httptest.NewServer(svc.handler(t))
	t.Cleanup(ts.Close)

	env := newTestEnv(t, "")
	content := fmt.Sprintf(`
[remote]
backend = "dummyjson"
base_url = %q
timeout = "2s"

[logging]
level = "error"

[logging.dev_file]
enabled = false
`, ts.URL+"/todos")
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	board := env.mustRun(t, "board", "--source", "remote")
	if !strings.Contains(board, "#1 Do something nice") || !strings.Contains(board, "Done (1)") {
		t.Fatalf("expected remote tasks on board\n%s", board)
	}

	env.mustRun(t, "move", "1", "done")
	put, ok := svc.find(http.MethodPut, "/todos/1")
	if !ok {
		t.Fatal("expected PUT /todos/1 after move")
	}
	if put.body["completed"] != true {
		t.Fatalf("expected completed=true in update body, got %#v", put.body)
	}

	env.mustRun(t, "add", "call", "mom")
	created, ok := svc.find(http.MethodPost, "/todos/add")
	if !ok {
		t.Fatal("expected POST /todos/add after add")
	}
	if created.body["todo"] != "call mom" || created.body["completed"] != false {
		t.Fatalf("unexpected create body %#v", created.body)
	}

	board = env.mustRun(t, "board")
	if !strings.Contains(board, "call mom") || !strings.Contains(board, "Done (2)") {
		t.Fatalf("expected local changes to survive the next board\n%s", board)
	}
	refetched := env.mustRun(t, "board", "--source", "remote")
	if strings.Contains(refetched, "call mom") {
		t.Fatalf("expected remote refetch to replace local-only tasks\n%s", refetched)
	}
}

// TestRenderBoardTable verifies headers, cells and page footers.
func TestRenderBoardTable(t *testing.T) {
	board := servercommon.Board{
		PageSize: 5,
		Columns: []servercommon.Column{
			{Status: "todo", Title: "Todo", Total: 6, Page: 1, PageCount: 2, Tasks: []servercommon.Task{{ID: 6, Text: "sixth"}}},
			{Status: "in-progress", Title: "In progress"},
			{Status: "done", Title: "Done", Total: 1, PageCount: 1, Tasks: []servercommon.Task{{ID: 9, Text: "shipped"}}},
		},
	}
	out := renderBoardTable(io.Discard, board)
	for _, want := range []string{"Todo (6)", "In progress (0)", "Done (1)", "#6 sixth", "#9 shipped", "page 2/2", "page -/-", "page 1/1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in table\n%s", want, out)
		}
	}
}

// TestDevLogFilePath verifies file naming and absolute dir handling.
func TestDevLogFilePath(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	got, err := devLogFilePath(dir, "my app/dev", now)
	if err != nil {
		t.Fatalf("devLogFilePath() error = %v", err)
	}
	if want := filepath.Join(dir, "my-app-dev-20260304.log"); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

// TestSanitizeLogFileStem verifies separators collapse and blanks fall back.
func TestSanitizeLogFileStem(t *testing.T) {
	cases := map[string]string{
		"kanbo":      "kanbo",
		" a:b\\c ":   "a-b-c",
		"/":          "kanbo",
		"":           "kanbo",
		"kanbo-dev/": "kanbo-dev",
	}
	for in, want := range cases {
		if got := sanitizeLogFileStem(in); got != want {
			t.Fatalf("sanitizeLogFileStem(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestRuntimeLoggerDevFile verifies dev mode writes logfmt entries to disk.
func TestRuntimeLoggerDevFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	logger, err := newRuntimeLogger(&console, "kanbo", true, config.LoggingConfig{
		Level:   "info",
		DevFile: config.DevFileConfig{Enabled: true, Dir: dir},
	}, time.Now)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	logger.SetConsoleEnabled(false)
	logger.Info("board loaded", "tasks", 3)
	logger.Debug("hidden")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if console.Len() != 0 {
		t.Fatalf("expected muted console, got %q", console.String())
	}
	content, err := os.ReadFile(logger.DevLogPath())
	if err != nil {
		t.Fatalf("read dev log: %v", err)
	}
	if !strings.Contains(string(content), `msg="board loaded"`) || !strings.Contains(string(content), "tasks=3") {
		t.Fatalf("unexpected dev log content %q", content)
	}
	if strings.Contains(string(content), "hidden") {
		t.Fatalf("expected debug entry filtered, got %q", content)
	}
}

// TestParseTaskID verifies positional id validation.
func TestParseTaskID(t *testing.T) {
	if id, err := parseTaskID(" 42 "); err != nil || id != 42 {
		t.Fatalf("parseTaskID() = %d, %v", id, err)
	}
	for _, raw := range []string{"0", "-3", "x"} {
		if _, err := parseTaskID(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}
