package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/waypoint-go/internal/core/service"
	"github.com/yndnr/waypoint-go/internal/server/httpserver/handler"
	"github.com/yndnr/waypoint-go/internal/storage/memory"
	"github.com/yndnr/waypoint-go/internal/telemetry/metric"
)

func newTestRouter(t *testing.T, cfg RouterConfig) (http.Handler, *metric.Registry) {
	t.Helper()
	log := discardLogger()
	repo := memory.New()
	continuity := metric.NewContinuity()
	store := service.NewSavePointStore(service.SavePointStoreConfig{Repository: repo, Metrics: continuity, Logger: log})
	sessions := service.NewSessionManager(service.SessionManagerConfig{Repository: repo, Store: store, Metrics: continuity, Logger: log})
	restorer := service.NewRestoreOrchestrator(service.RestoreConfig{Store: store, Metrics: continuity, Logger: log})

	reg := metric.NewRegistry(continuity, sessions.ActiveCount)
	cfg.Handler = handler.New(handler.Config{
		Sessions:   sessions,
		SavePoints: store,
		Restorer:   restorer,
		Continuity: continuity,
		Logger:     log,
	})
	cfg.Metrics = reg
	cfg.Logger = log
	return NewRouter(&cfg), reg
}

func TestRouter_RoutesAndMetrics(t *testing.T) {
	router, _ := newTestRouter(t, RouterConfig{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions",
		strings.NewReader(`{"player_id":"p1","character_id":"c1"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /sessions = %d, body %s", rec.Code, rec.Body.String())
	}
	var env handler.Response
	json.Unmarshal(rec.Body.Bytes(), &env)
	if env.RequestID == "" || env.RequestID != rec.Header().Get(HeaderRequestID) {
		t.Errorf("envelope request_id = %q, header %q", env.RequestID, rec.Header().Get(HeaderRequestID))
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"waypoint_sessions_started_total 1",
		"waypoint_sessions_active 1",
		`waypoint_http_requests_total{method="POST",route="POST /sessions",status="201"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("/metrics missing %q", want)
		}
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown route = %d, want 404", rec.Code)
	}
}

func TestRouter_AdminAllowList(t *testing.T) {
	router, _ := newTestRouter(t, RouterConfig{AdminAllowList: []string{"127.0.0.1"}})

	req := httptest.NewRequest(http.MethodPost, "/admin/v1/metrics/reset", nil)
	req.RemoteAddr = "192.0.2.10:4000"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("remote admin call = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/v1/metrics/reset", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("local admin call = %d, want 200", rec.Code)
	}

	// Non-admin routes are not restricted.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "192.0.2.10:4000"
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("remote health = %d, want 200", rec.Code)
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	router, _ := newTestRouter(t, RouterConfig{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := New(ln.Addr().String(), router)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatal(err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Serve() after shutdown = %v, want nil", err)
	}
}
