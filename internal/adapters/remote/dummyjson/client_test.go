package dummyjson

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/evanschultz/kanbo/internal/app"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

type todoServer struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
}

func (s *todoServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&rec.Body); err != nil {
				t.Errorf("decode request body: %v", err)
			}
		}
		s.mu.Lock()
		s.requests = append(s.requests, rec)
		status := s.status
		s.mu.Unlock()
		if status != 0 {
			http.Error(w, `{"message":"Todo with id '9' not found"}`, status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/todos":
			_, _ = w.Write([]byte(`{"todos":[{"id":1,"todo":"Do something nice","completed":false,"userId":26},{"id":2,"todo":" Memorize a poem ","completed":true,"userId":13}],"total":2,"skip":0,"limit":2}`))
		case r.Method == http.MethodPost && r.URL.Path == "/todos/add":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 255, "todo": rec.Body["todo"], "completed": rec.Body["completed"], "userId": rec.Body["userId"]})
		case r.Method == http.MethodPut:
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 1, "todo": rec.Body["todo"], "completed": rec.Body["completed"]})
		case r.Method == http.MethodDelete:
			_, _ = w.Write([]byte(`{"id":1,"todo":"x","completed":false,"isDeleted":true}`))
		default:
			http.NotFound(w, r)
		}
	})
}

func (s *todoServer) last() recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

func newTestClient(t *testing.T, srv *todoServer, opts Options) *Client {
	t.Helper()
	ts := httptest.NewServer(srv.handler(t))
	t.Cleanup(ts.Close)
	opts.BaseURL = ts.URL + "/todos/"
	client, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestClientListTasks(t *testing.T) {
	srv := &todoServer{}
	client := newTestClient(t, srv, Options{ListLimit: 50})

	tasks, err := client.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[1].Ref != "2" || tasks[1].Text != "Memorize a poem" || !tasks[1].Completed {
		t.Fatalf("unexpected mapped task %#v", tasks[1])
	}
	if got := srv.last().Query; got != "limit=50" {
		t.Fatalf("unexpected query %q", got)
	}
}

// TestClientCreateSendsTodoPayload verifies behavior for the covered scenario.
func TestClientCreateSendsTodoPayload(t *testing.T) {
	srv := &todoServer{}
	client := newTestClient(t, srv, Options{UserID: 3})

	created, err := client.CreateTask(context.Background(), app.RemoteTask{ID: 1700000000000, Text: "Buy milk"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	req := srv.last()
	if req.Path != "/todos/add" {
		t.Fatalf("unexpected path %q", req.Path)
	}
	if req.Body["todo"] != "Buy milk" || req.Body["completed"] != false || req.Body["userId"] != float64(3) {
		t.Fatalf("unexpected create body %#v", req.Body)
	}
	if _, ok := req.Body["task"]; ok {
		t.Fatal("create body must not use the task field")
	}
	if created.Ref != "255" {
		t.Fatalf("expected ref from response id, got %q", created.Ref)
	}
}

// TestClientUpdateSendsCompletion verifies behavior for the covered scenario.
func TestClientUpdateSendsCompletion(t *testing.T) {
	srv := &todoServer{}
	client := newTestClient(t, srv, Options{})

	if _, err := client.UpdateTask(context.Background(), app.RemoteTask{Ref: "7", ID: 99, Text: "Renamed", Completed: true}); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	req := srv.last()
	if req.Method != http.MethodPut || req.Path != "/todos/7" {
		t.Fatalf("unexpected request %s %s", req.Method, req.Path)
	}
	if req.Body["todo"] != "Renamed" || req.Body["completed"] != true {
		t.Fatalf("unexpected update body %#v", req.Body)
	}

	if err := client.DeleteTask(context.Background(), app.RemoteTask{ID: 42}); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if req := srv.last(); req.Method != http.MethodDelete || req.Path != "/todos/42" {
		t.Fatalf("expected delete by local id, got %s %s", req.Method, req.Path)
	}
}

func TestClientStatusError(t *testing.T) {
	srv := &todoServer{status: http.StatusNotFound}
	client := newTestClient(t, srv, Options{})

	_, err := client.UpdateTask(context.Background(), app.RemoteTask{Ref: "9", Text: "x"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound || !strings.Contains(statusErr.Body, "not found") {
		t.Fatalf("unexpected status error %#v", statusErr)
	}
	if !errors.Is(err, app.ErrRemote) {
		t.Fatal("expected status error to wrap ErrRemote")
	}
}

func TestClientTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(slow.Close)
	client, err := New(Options{BaseURL: slow.URL, Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := client.ListTasks(context.Background()); !errors.Is(err, app.ErrRemote) {
		t.Fatalf("expected ErrRemote on timeout, got %v", err)
	}
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	if _, err := New(Options{BaseURL: "not a url"}); err == nil {
		t.Fatal("expected invalid base url error")
	}
	client, err := New(Options{})
	if err != nil {
		t.Fatalf("New(defaults) error = %v", err)
	}
	if client.base != DefaultBaseURL || client.userID != DefaultUserID || client.timeout != DefaultTimeout {
		t.Fatalf("unexpected defaults %#v", client)
	}
}
