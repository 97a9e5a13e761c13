package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/filedock/filedock/internal/config"
	"github.com/filedock/filedock/internal/diskspace"
	"github.com/filedock/filedock/internal/events"
	"github.com/filedock/filedock/internal/models"
	"github.com/filedock/filedock/internal/session"
)

func newTestClient(t *testing.T, srv *httptest.Server, store session.Store) (*Client, *events.EventBus) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.ServerURL = srv.URL + "/"
	bus := events.NewEventBus(10)
	t.Cleanup(bus.Close)

	c, err := NewClient(cfg, store, WithHTTPClient(srv.Client()), WithEventBus(bus))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, bus
}

func expectView(t *testing.T, ch <-chan events.Event, want events.View, reason string) {
	t.Helper()
	select {
	case ev := <-ch:
		vc := ev.(*events.ViewChangedEvent)
		if vc.View != want || vc.Reason != reason {
			t.Errorf("ViewChanged = %s/%s, want %s/%s", vc.View, vc.Reason, want, reason)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected ViewChanged{%s}", want)
	}
}

func TestDo_MergesHeadersAndAuthorizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer abc" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Trace"); got != "42" {
			t.Errorf("X-Trace = %q, caller headers must be kept", got)
		}
		if r.URL.Path != "/anything" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, session.NewMemoryStore("abc"))
	header := http.Header{}
	header.Set("X-Trace", "42")
	header.Set("Authorization", "Bearer spoofed")

	resp, err := c.Do(context.Background(), http.MethodGet, "/anything", nil, header)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("non-2xx statuses should be returned as-is, got %d", resp.StatusCode)
	}
}

func TestDo_NoToken(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	var hookReason string
	cfg := config.NewConfig()
	cfg.ServerURL = srv.URL
	bus := events.NewEventBus(10)
	defer bus.Close()
	views := bus.Subscribe(events.EventViewChanged)
	c, err := NewClient(cfg, session.NewMemoryStore(""),
		WithHTTPClient(srv.Client()),
		WithEventBus(bus),
		WithLoggedOutHook(func(reason string) { hookReason = reason }))
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Do(context.Background(), http.MethodGet, "/list-files", nil, nil)
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Error("no request may be sent without a token")
	}
	if hookReason != ReasonNotAuthenticated {
		t.Errorf("hook reason = %q", hookReason)
	}
	expectView(t, views.C, events.ViewLogin, ReasonNotAuthenticated)
}

func TestDo_UnauthorizedClearsSession(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := session.NewMemoryStore("old")
	c, bus := newTestClient(t, srv, store)
	views := bus.Subscribe(events.EventViewChanged)

	_, err := c.Do(context.Background(), http.MethodGet, "/list-files", nil, nil)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if _, ok := store.Token(); ok {
		t.Error("token should be cleared")
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("expected exactly one attempt, got %d", n)
	}
	expectView(t, views.C, events.ViewLogin, ReasonSessionExpired)
}

func TestDo_ServerErrorSingleAttempt(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store := session.NewMemoryStore("tok")
	c, _ := newTestClient(t, srv, store)

	resp, err := c.Do(context.Background(), http.MethodGet, "/x", nil, nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("authenticated calls must not retry, got %d attempts", n)
	}
	if _, ok := store.Token(); !ok {
		t.Error("only 401 clears the session")
	}
}

func TestDo_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c, _ := newTestClient(t, srv, session.NewMemoryStore("tok"))
	srv.Close()

	_, err := c.Do(context.Background(), http.MethodGet, "/x", nil, nil)
	var nerr *NetworkError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected *NetworkError, got %T: %v", err, err)
	}
	if nerr.Op != "GET /x" {
		t.Errorf("Op = %q", nerr.Op)
	}
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("login must not carry a bearer token")
		}
		var req models.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Username != "ana" || req.Password != "secret" {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(models.LoginResponse{Token: "fresh"})
	}))
	defer srv.Close()

	store := session.NewMemoryStore("")
	c, bus := newTestClient(t, srv, store)
	views := bus.Subscribe(events.EventViewChanged)

	err := c.Login(context.Background(), "ana", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 401") {
		t.Errorf("expected status in login error, got %v", err)
	}
	if c.Authenticated() {
		t.Error("failed login must not store a token")
	}

	if err := c.Login(context.Background(), "ana", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tok, _ := store.Token(); tok != "fresh" {
		t.Errorf("token = %q, want fresh", tok)
	}
	expectView(t, views.C, events.ViewApp, ReasonLogin)

	if err := c.Logout(); err != nil {
		t.Fatal(err)
	}
	if c.Authenticated() {
		t.Error("Logout should clear the token")
	}
	expectView(t, views.C, events.ViewLogin, ReasonLogout)
}

func TestListFiles(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    int
		wantErr bool
	}{
		{"two files", 200, `[{"uniqueName":"1-a.txt","originalName":"a.txt"},{"uniqueName":"2-b.txt","originalName":"b.txt"}]`, 2, false},
		{"null body", 200, `null`, 0, false},
		{"server error", 500, `boom`, 0, true},
		{"bad json", 200, `{`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/list-files" {
					t.Errorf("path = %q", r.URL.Path)
				}
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c, _ := newTestClient(t, srv, session.NewMemoryStore("tok"))
			files, err := c.ListFiles(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				if files == nil || len(files) != tt.want {
					t.Errorf("got %v, want %d files", files, tt.want)
				}
			}
		})
	}
}

func TestDeleteBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/delete-batch" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var req models.BatchDeleteRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Filenames) != 2 {
			t.Errorf("filenames = %v", req.Filenames)
		}
		io.WriteString(w, `{"success":["a"],"failed":["b"]}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, session.NewMemoryStore("tok"))
	res, err := c.DeleteBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}
	if len(res.Success) != 1 || res.Success[0] != "a" || len(res.Failed) != 1 || res.Failed[0] != "b" {
		t.Errorf("result = %+v", res)
	}
}

func TestDeleteBatch_RequestFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{"server error", 500, "Erro ao processar", 500},
		{"bad gateway", 502, "", 502},
		{"undecodable", 200, "not json", 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c, _ := newTestClient(t, srv, session.NewMemoryStore("tok"))
			_, err := c.DeleteBatch(context.Background(), []string{"a"})

			var bde *BatchDeleteError
			if !errors.As(err, &bde) {
				t.Fatalf("expected *BatchDeleteError, got %T: %v", err, err)
			}
			if bde.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", bde.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestDeleteBatch_SessionExpiredUnwrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, session.NewMemoryStore("tok"))
	_, err := c.DeleteBatch(context.Background(), []string{"a"})

	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	var bde *BatchDeleteError
	if errors.As(err, &bde) {
		t.Error("auth errors must not be wrapped as BatchDeleteError")
	}
}

func TestDeleteFile(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.EscapedPath()
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, session.NewMemoryStore("tok"))
	if err := c.DeleteFile(context.Background(), "1-my file.txt"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/delete/1-my%20file.txt" {
		t.Errorf("got %s %s", gotMethod, gotPath)
	}
}

func TestFileURL(t *testing.T) {
	got := fileURL("http://host:8080", "17-a b.pdf")
	if got != "http://host:8080/files/17-a%20b.pdf" {
		t.Errorf("fileURL = %q", got)
	}
}

func TestDownload(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("public fetch must not carry credentials")
		}
		switch r.URL.Path {
		case "/files/flaky.txt":
			if atomic.AddInt32(&hits, 1) == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			io.WriteString(w, "hello")
		case "/files/ok.txt":
			io.WriteString(w, "content")
		case "/files/broken.txt":
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, "storage offline")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	d := NewDownloader(srv.Client(), srv.URL, nil)
	d.client.RetryWaitMin = time.Millisecond
	d.client.RetryWaitMax = time.Millisecond

	var buf bytes.Buffer
	n, err := d.Download(context.Background(), "ok.txt", &buf, nil)
	if err != nil || n != 7 || buf.String() != "content" {
		t.Errorf("Download(ok.txt) = %d, %v, %q", n, err, buf.String())
	}

	buf.Reset()
	if _, err := d.Download(context.Background(), "flaky.txt", &buf, nil); err != nil {
		t.Fatalf("transient failures should be retried: %v", err)
	}
	if buf.String() != "hello" || atomic.LoadInt32(&hits) != 2 {
		t.Errorf("got %q after %d attempts", buf.String(), atomic.LoadInt32(&hits))
	}

	_, err = d.Download(context.Background(), "missing.txt", io.Discard, nil)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}

	// A server that keeps failing is a rejection, not a lost connection
	_, err = d.Download(context.Background(), "broken.txt", io.Discard, nil)
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		t.Fatalf("persistent 500 reported as network error: %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "status 500") || !strings.Contains(err.Error(), "storage offline") {
		t.Errorf("expected status 500 with body, got %v", err)
	}
}

func TestDownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files/ok.txt":
			io.WriteString(w, "content")
		case "/files/huge.bin":
			// 100 PB announced, nothing sent
			w.Header().Set("Content-Length", "112589990684262400")
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	d := NewDownloader(srv.Client(), srv.URL, nil)
	dir := t.TempDir()

	okPath := filepath.Join(dir, "ok.txt")
	n, err := d.DownloadFile(context.Background(), "ok.txt", okPath, nil)
	if err != nil || n != 7 {
		t.Fatalf("DownloadFile(ok.txt) = %d, %v", n, err)
	}
	if data, _ := os.ReadFile(okPath); string(data) != "content" {
		t.Errorf("saved %q", data)
	}

	missingPath := filepath.Join(dir, "missing.txt")
	if _, err := d.DownloadFile(context.Background(), "missing.txt", missingPath, nil); err == nil {
		t.Error("expected not found error")
	}
	if _, err := os.Stat(missingPath); !os.IsNotExist(err) {
		t.Error("no file should be created for a failed fetch")
	}

	hugePath := filepath.Join(dir, "huge.bin")
	_, err = d.DownloadFile(context.Background(), "huge.bin", hugePath, nil)
	if !diskspace.IsInsufficientSpaceError(err) {
		t.Errorf("expected insufficient space, got %v", err)
	}
	if _, err := os.Stat(hugePath); !os.IsNotExist(err) {
		t.Error("no file should be created when space is short")
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&UploadError{FileName: "a.txt", StatusCode: 413}, `upload of "a.txt" failed: status 413`},
		{&UploadError{FileName: "a.txt", StatusCode: 500, Body: "disk full"}, `upload of "a.txt" failed: status 500: disk full`},
		{&NetworkError{FileName: "a.txt", Err: errors.New("reset")}, `upload of "a.txt" failed: network error: reset`},
		{&NetworkError{Op: "GET /list-files", Err: errors.New("refused")}, `GET /list-files failed: network error: refused`},
		{&BatchDeleteError{Err: errors.New("refused")}, `batch delete failed: refused`},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}

	if !IsAuthError(ErrSessionExpired) || !IsAuthError(ErrNotAuthenticated) || IsAuthError(errors.New("x")) {
		t.Error("IsAuthError misclassifies")
	}
}
