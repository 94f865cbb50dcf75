package util

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewMonitorServer(t *testing.T) {
	server := NewMonitorServer()

	if server == nil {
		t.Fatal("NewMonitorServer should return non-nil server")
	}
	if server.Running() {
		t.Error("A new server should not be running")
	}
	if server.Addr() != "" {
		t.Errorf("Addr() = %s, expected empty before Start", server.Addr())
	}
}

func TestMonitorServer_AddHandler(t *testing.T) {
	server := NewMonitorServer()

	server.AddHandler("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test response")) //nolint:errcheck // test helper
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if body := w.Body.String(); body != "test response" {
		t.Errorf("Expected 'test response', got '%s'", body)
	}
}

func TestMonitorServer_AddRawHandler(t *testing.T) {
	server := NewMonitorServer()

	server.AddRawHandler("/raw", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("raw handler response")) //nolint:errcheck // test helper
	}))

	req := httptest.NewRequest("GET", "/raw", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
}

func TestMonitorServer_HandlersAreIsolated(t *testing.T) {
	first := NewMonitorServer()
	second := NewMonitorServer()
	first.AddHandler("/only-first", func(w http.ResponseWriter, r *http.Request) {})

	w := httptest.NewRecorder()
	second.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/only-first", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 from the second server, got %d", w.Code)
	}
}

func TestMonitorServer_StartServeShutdown(t *testing.T) {
	Config.Set("details_port", 0)
	server := NewMonitorServer()
	server.AddHandler("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("healthy")) //nolint:errcheck // test helper
	})

	if err := server.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := server.Start(); err == nil {
		t.Error("Start() should return error when already running")
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/health", server.Addr()))
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)  //nolint:errcheck // test helper
	_ = resp.Body.Close()             //nolint:errcheck // test cleanup
	if string(body) != "healthy" {
		t.Errorf("Body = %s, expected healthy", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if server.Running() {
		t.Error("Server should not be running after Shutdown")
	}
	if err := server.Shutdown(ctx); err != nil {
		t.Errorf("Second Shutdown() error = %v", err)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("Failed to find a free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestMonitorServer_Restart(t *testing.T) {
	Config.Set("details_port", freePort(t))
	defer Config.Set("details_port", 0)
	server := NewMonitorServer()

	if err := server.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	server.Restart()
	if !server.Running() {
		t.Fatal("Server should be running after Restart")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx) //nolint:errcheck // test cleanup
}

func TestMonitorServer_RestartDisabled(t *testing.T) {
	Config.Set("details_port", 0)
	server := NewMonitorServer()
	if err := server.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	server.Restart()
	if server.Running() {
		t.Error("Restart should leave the server stopped when the port is disabled")
	}
}
