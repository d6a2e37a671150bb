// Package dummyjson talks to a dummyjson-style REST todo resource.
package dummyjson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/evanschultz/kanbo/internal/app"
)

const (
	// DefaultBaseURL is the public todo resource.
	DefaultBaseURL = "https://dummyjson.com/todos"

	// DefaultTimeout bounds every request.
	DefaultTimeout = 10 * time.Second

	// DefaultUserID owns tasks created through the client.
	DefaultUserID = 1

	maxErrorBody = 512
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	UserID     int
	ListLimit  int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client implements app.Remote over HTTP.
type Client struct {
	base      string
	userID    int
	listLimit int
	timeout   time.Duration
	http      *http.Client
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

// Error renders the failed request.
func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap classifies every status error as a remote failure.
func (e *StatusError) Unwrap() error {
	return app.ErrRemote
}

// todoPayload is the wire shape of one todo.
type todoPayload struct {
	ID        int64  `json:"id,omitempty"`
	Todo      string `json:"todo"`
	Completed bool   `json:"completed"`
	UserID    int    `json:"userId,omitempty"`
}

type listResponse struct {
	Todos []todoPayload `json:"todos"`
}

// New constructs a client, applying defaults for unset options.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid remote base url %q", opts.BaseURL)
	}
	if opts.UserID <= 0 {
		opts.UserID = DefaultUserID
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Client{
		base:      base,
		userID:    opts.UserID,
		listLimit: max(opts.ListLimit, 0),
		timeout:   opts.Timeout,
		http:      opts.HTTPClient,
	}, nil
}

// ListTasks fetches the collection.
func (c *Client) ListTasks(ctx context.Context) ([]app.RemoteTask, error) {
	endpoint := c.base
	if c.listLimit > 0 {
		endpoint += "?limit=" + strconv.Itoa(c.listLimit)
	}
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]app.RemoteTask, 0, len(resp.Todos))
	for _, todo := range resp.Todos {
		out = append(out, fromPayload(todo))
	}
	return out, nil
}

// CreateTask adds a todo owned by the configured user.
func (c *Client) CreateTask(ctx context.Context, t app.RemoteTask) (app.RemoteTask, error) {
	var resp todoPayload
	body := todoPayload{Todo: t.Text, Completed: t.Completed, UserID: c.userID}
	if err := c.do(ctx, http.MethodPost, c.base+"/add", body, &resp); err != nil {
		return app.RemoteTask{}, err
	}
	return fromPayload(resp), nil
}

// UpdateTask sends the full text and completion state.
func (c *Client) UpdateTask(ctx context.Context, t app.RemoteTask) (app.RemoteTask, error) {
	var resp todoPayload
	body := todoPayload{Todo: t.Text, Completed: t.Completed}
	if err := c.do(ctx, http.MethodPut, c.taskURL(t), body, &resp); err != nil {
		return app.RemoteTask{}, err
	}
	return fromPayload(resp), nil
}

// DeleteTask removes a todo.
func (c *Client) DeleteTask(ctx context.Context, t app.RemoteTask) error {
	return c.do(ctx, http.MethodDelete, c.taskURL(t), nil, nil)
}

// taskURL addresses t by its remote ref, falling back to the local id.
func (c *Client) taskURL(t app.RemoteTask) string {
	ref := strings.TrimSpace(t.Ref)
	if ref == "" {
		ref = strconv.FormatInt(t.ID, 10)
	}
	return c.base + "/" + url.PathEscape(ref)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", method, err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s %s: request timed out", app.ErrRemote, method, endpoint)
		}
		return fmt.Errorf("%w: %s %s: %w", app.ErrRemote, method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", app.ErrRemote, method, err)
	}
	return nil
}

func fromPayload(p todoPayload) app.RemoteTask {
	ref := ""
	if p.ID > 0 {
		ref = strconv.FormatInt(p.ID, 10)
	}
	return app.RemoteTask{
		Ref:       ref,
		ID:        p.ID,
		Text:      strings.TrimSpace(p.Todo),
		Completed: p.Completed,
	}
}
