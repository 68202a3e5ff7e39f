package target

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ecociel/deferral/domain"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New("http://localhost:8080", 0); err == nil {
		t.Error("expected error for zero timeout")
	}
	if _, err := New("/relative", time.Second); err == nil {
		t.Error("expected error for relative base url")
	}
	if _, err := New("http://localhost:8080", time.Second); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
}

func TestCall_Success(t *testing.T) {
	var gotPath, gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		gotPath = r.URL.Path
		gotUser = r.URL.Query().Get("username")
		_, _ = w.Write([]byte(`{"ignored":true}`))
	}))
	defer srv.Close()

	caller, err := New(srv.URL, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	err = caller.Call(context.Background(), domain.Task{ID: "1", Endpoint: "/test", Username: "user"})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if gotPath != "/test" {
		t.Errorf("expected path /test, got %s", gotPath)
	}
	if gotUser != "user" {
		t.Errorf("expected username user, got %s", gotUser)
	}
}

func TestCall_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	caller, _ := New(srv.URL, time.Second)
	err := caller.Call(context.Background(), domain.Task{Endpoint: "/test"})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", statusErr.StatusCode)
	}
}

func TestCall_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	caller, _ := New(srv.URL, 50*time.Millisecond)
	if err := caller.Call(context.Background(), domain.Task{Endpoint: "/slow"}); err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}

func TestCall_BuildErrorMakesNoRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	caller, _ := New(srv.URL, time.Second)
	err := caller.Call(context.Background(), domain.Task{Endpoint: "/x/{missing}"})
	if !errors.Is(err, ErrBuild) {
		t.Fatalf("expected ErrBuild, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected 0 requests, got %d", calls.Load())
	}
}
