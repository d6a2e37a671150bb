// Package googletasks implements app.Remote on top of the Google Tasks API.
package googletasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"github.com/evanschultz/kanbo/internal/app"
)

const (
	// DefaultListID is the special ID for the default list.
	DefaultListID = "@default"

	// PageSize is the number of tasks per page.
	PageSize = 100

	// APITimeout is the default timeout for API calls.
	APITimeout = 5 * time.Second

	// OAuth scope for Google Tasks
	tasksScope = "https://www.googleapis.com/auth/tasks"

	statusCompleted   = "completed"
	statusNeedsAction = "needsAction"
)

// ErrUnsynced reports a call for a task the remote has not acknowledged yet.
var ErrUnsynced = errors.New("task has no remote id yet")

// Options configures a Client.
type Options struct {
	CredentialsPath string
	TokenPath       string
	ListID          string
	Timeout         time.Duration
}

// Client implements app.Remote using one Google Tasks list.
type Client struct {
	svc     *tasks.Service
	listID  string
	timeout time.Duration
}

// New creates a client from the OAuth client file and a saved token.
func New(ctx context.Context, opts Options) (*Client, error) {
	oauthConfig, err := loadOAuthConfig(opts.CredentialsPath)
	if err != nil {
		return nil, err
	}
	tokenData, err := os.ReadFile(opts.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("read token (run: kanbo login): %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("invalid token file: %w", err)
	}

	// The token source refreshes expired access tokens on demand.
	httpClient := oauth2.NewClient(ctx, oauthConfig.TokenSource(ctx, &token))
	svc, err := tasks.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create tasks service: %w", err)
	}
	return newClient(svc, opts), nil
}

// NewWithHTTPClient creates a client against endpoint with a custom HTTP client.
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, endpoint string, opts Options) (*Client, error) {
	serviceOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if strings.TrimSpace(endpoint) != "" {
		serviceOpts = append(serviceOpts, option.WithEndpoint(endpoint))
	}
	svc, err := tasks.NewService(ctx, serviceOpts...)
	if err != nil {
		return nil, err
	}
	return newClient(svc, opts), nil
}

func newClient(svc *tasks.Service, opts Options) *Client {
	listID := strings.TrimSpace(opts.ListID)
	if listID == "" {
		listID = DefaultListID
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = APITimeout
	}
	return &Client{svc: svc, listID: listID, timeout: timeout}
}

func loadOAuthConfig(path string) (*oauth2.Config, error) {
	clientJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read oauth client file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(clientJSON, tasksScope)
	if err != nil {
		return nil, fmt.Errorf("invalid oauth client file: %w", err)
	}
	return cfg, nil
}

// ListTasks returns every task in the list, completed ones included.
func (c *Client) ListTasks(ctx context.Context) ([]app.RemoteTask, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out []app.RemoteTask
	err := c.svc.Tasks.List(c.listID).
		MaxResults(PageSize).
		ShowCompleted(true).
		ShowHidden(true).
		ShowDeleted(false).
		Pages(ctx, func(resp *tasks.Tasks) error {
			for _, task := range resp.Items {
				out = append(out, fromTask(task))
			}
			return nil
		})
	if err != nil {
		return nil, wrapError(err)
	}
	return out, nil
}

// CreateTask inserts a task at the top of the list.
func (c *Client) CreateTask(ctx context.Context, t app.RemoteTask) (app.RemoteTask, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	created, err := c.svc.Tasks.Insert(c.listID, &tasks.Task{
		Title:  t.Text,
		Status: statusFor(t.Completed),
	}).Context(ctx).Do()
	if err != nil {
		return app.RemoteTask{}, wrapError(err)
	}
	return fromTask(created), nil
}

// UpdateTask patches title and status.
func (c *Client) UpdateTask(ctx context.Context, t app.RemoteTask) (app.RemoteTask, error) {
	if strings.TrimSpace(t.Ref) == "" {
		return app.RemoteTask{}, fmt.Errorf("%w: update task %d: %w", app.ErrRemote, t.ID, ErrUnsynced)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	patch := &tasks.Task{Title: t.Text, Status: statusFor(t.Completed)}
	if !t.Completed {
		// Reopening needs the completion timestamp cleared explicitly.
		patch.NullFields = []string{"Completed"}
	}
	updated, err := c.svc.Tasks.Patch(c.listID, t.Ref, patch).Context(ctx).Do()
	if err != nil {
		return app.RemoteTask{}, wrapError(err)
	}
	return fromTask(updated), nil
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, t app.RemoteTask) error {
	if strings.TrimSpace(t.Ref) == "" {
		return fmt.Errorf("%w: delete task %d: %w", app.ErrRemote, t.ID, ErrUnsynced)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.svc.Tasks.Delete(c.listID, t.Ref).Context(ctx).Do(); err != nil {
		return wrapError(err)
	}
	return nil
}

func fromTask(t *tasks.Task) app.RemoteTask {
	if t == nil {
		return app.RemoteTask{}
	}
	return app.RemoteTask{
		Ref:       t.Id,
		Text:      strings.TrimSpace(t.Title),
		Completed: t.Status == statusCompleted,
	}
}

func statusFor(completed bool) string {
	if completed {
		return statusCompleted
	}
	return statusNeedsAction
}

// wrapError wraps API errors with user-friendly messages.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request timed out", app.ErrRemote)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: token expired or revoked (run: kanbo login)", app.ErrRemote)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", app.ErrRemote, app.ErrNotFound)
		}
	}
	return fmt.Errorf("%w: %w", app.ErrRemote, err)
}
