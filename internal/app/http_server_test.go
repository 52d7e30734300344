package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/document"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

// newHealthDeps собирает зависимости витрины с управляемыми Ping и pending
// сообщениями в outbox поверх in-memory хранилища.
func newHealthDeps(t *testing.T, storageErr, idempotencyErr error, pending int) *runtimeDependencies {
	t.Helper()

	store := memory.NewDocumentStore()
	outbox := document.NewOutboxRepository(store, DefaultOutboxCollection)
	for i := 0; i < pending; i++ {
		if _, err := outbox.Enqueue(context.Background(), domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   fmt.Sprintf("o-%d", i),
			EventType:     "order.created",
			Payload:       []byte(`{}`),
		}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	return &runtimeDependencies{
		store:           store,
		outboxRepo:      outbox,
		idempotencyRepo: memory.NewIdempotencyRepository(),
		checkers: map[string]healthcheck.Checker{
			"storage":     healthcheck.NewPingChecker("storage", stubPinger{err: storageErr}, true),
			"idempotency": healthcheck.NewPingChecker("idempotency", stubPinger{err: idempotencyErr}, true),
		},
	}
}

// startHealthServer поднимает сервер метрик и ждёт, пока ответит /livez.
func startHealthServer(t *testing.T, handler *healthcheck.Handler) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	port := findFreePort(t)
	startMetricsServer(ctx, fmt.Sprintf("127.0.0.1:%d", port), log.WithField("test", "health"), handler)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(base + "/livez")
		if err == nil {
			resp.Body.Close()
			return base
		}
		if time.Now().After(deadline) {
			t.Fatalf("metrics server did not start: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func getHealth(t *testing.T, url string) (int, healthcheck.Response) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var body healthcheck.Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode, body
}

func getText(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestHealthz_ReportsStorefrontCheckers(t *testing.T) {
	cfg := DefaultConfig()
	base := startHealthServer(t, newHealthHandler(cfg, newHealthDeps(t, nil, nil, 0), true))

	code, body := getHealth(t, base+"/healthz")
	if code != http.StatusOK || body.Status != healthcheck.StatusHealthy {
		t.Fatalf("expected healthy 200, got %d %s", code, body.Status)
	}
	for _, name := range []string{"storage", "idempotency", "outbox"} {
		check, ok := body.Checks[name]
		if !ok {
			t.Fatalf("/healthz must report %s, got %v", name, body.Checks)
		}
		if check.Status != healthcheck.StatusHealthy {
			t.Fatalf("%s: expected healthy, got %+v", name, check)
		}
	}

	if code, text := getText(t, base+"/readyz"); code != http.StatusOK || text != "ready" {
		t.Fatalf("expected ready, got %d %q", code, text)
	}
	if code, text := getText(t, base+"/livez"); code != http.StatusOK || text != "ok" {
		t.Fatalf("expected ok from /livez, got %d %q", code, text)
	}
	if code, text := getText(t, base+"/metrics"); code != http.StatusOK || text == "" {
		t.Fatalf("expected prometheus metrics, got %d", code)
	}
}

func TestReadyz_StorageDownIsNotReady(t *testing.T) {
	deps := newHealthDeps(t, errors.New("appwrite unreachable"), nil, 0)
	base := startHealthServer(t, newHealthHandler(DefaultConfig(), deps, true))

	code, body := getHealth(t, base+"/healthz")
	if code != http.StatusServiceUnavailable || body.Status != healthcheck.StatusUnhealthy {
		t.Fatalf("expected unhealthy 503, got %d %s", code, body.Status)
	}
	storage := body.Checks["storage"]
	if storage.Status != healthcheck.StatusUnhealthy || storage.Message != "appwrite unreachable" {
		t.Fatalf("unexpected storage check: %+v", storage)
	}
	if body.Checks["idempotency"].Status != healthcheck.StatusHealthy {
		t.Fatalf("idempotency must stay healthy: %+v", body.Checks["idempotency"])
	}

	if code, _ := getText(t, base+"/readyz"); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from /readyz, got %d", code)
	}
	// Живость от зависимостей не зависит.
	if code, _ := getText(t, base+"/livez"); code != http.StatusOK {
		t.Fatalf("expected 200 from /livez, got %d", code)
	}
}

func TestReadyz_IdempotencyStoreDownIsNotReady(t *testing.T) {
	deps := newHealthDeps(t, nil, errors.New("redis: connection refused"), 0)
	base := startHealthServer(t, newHealthHandler(DefaultConfig(), deps, false))

	code, body := getHealth(t, base+"/healthz")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if body.Checks["idempotency"].Status != healthcheck.StatusUnhealthy {
		t.Fatalf("unexpected idempotency check: %+v", body.Checks["idempotency"])
	}
	if code, _ := getText(t, base+"/readyz"); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from /readyz, got %d", code)
	}
}

func TestHealthz_OutboxBacklogDegradesButStaysReady(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutboxMaxPending = 1
	base := startHealthServer(t, newHealthHandler(cfg, newHealthDeps(t, nil, nil, 2), true))

	code, body := getHealth(t, base+"/healthz")
	if code != http.StatusOK || body.Status != healthcheck.StatusDegraded {
		t.Fatalf("expected degraded 200, got %d %s", code, body.Status)
	}
	if outbox := body.Checks["outbox"]; outbox.Status != healthcheck.StatusDegraded || outbox.Message == "" {
		t.Fatalf("unexpected outbox check: %+v", outbox)
	}
	if code, _ := getText(t, base+"/readyz"); code != http.StatusOK {
		t.Fatalf("backlog must not take the service out of rotation, got %d", code)
	}
}

func TestNewHealthHandler_OutboxOnlyWithPublisher(t *testing.T) {
	base := startHealthServer(t, newHealthHandler(DefaultConfig(), newHealthDeps(t, nil, nil, 5), false))

	_, body := getHealth(t, base+"/healthz")
	if _, ok := body.Checks["outbox"]; ok {
		t.Fatalf("outbox check must be absent without kafka, got %v", body.Checks)
	}
	if len(body.Checks) != 2 {
		t.Fatalf("expected storage and idempotency checks, got %v", body.Checks)
	}
}

func TestHealthz_MemoryRuntime(t *testing.T) {
	deps, err := initRuntimeDependencies(context.Background(), DefaultConfig(), log.WithField("test", "health-memory"))
	if err != nil {
		t.Fatalf("initRuntimeDependencies: %v", err)
	}
	defer func() { _ = deps.closeFn() }()

	base := startHealthServer(t, newHealthHandler(DefaultConfig(), deps, true))

	code, body := getHealth(t, base+"/healthz")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body.Checks["storage"].Status != healthcheck.StatusHealthy || body.Checks["outbox"].Status != healthcheck.StatusHealthy {
		t.Fatalf("unexpected checks: %v", body.Checks)
	}
	if _, ok := body.Checks["idempotency"]; ok {
		t.Fatal("in-memory idempotency keys have nothing to ping")
	}
}

func TestStartMetricsServer_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	port := findFreePort(t)
	startMetricsServer(ctx, fmt.Sprintf("127.0.0.1:%d", port), log.WithField("test", "health-stop"),
		newHealthHandler(DefaultConfig(), newHealthDeps(t, nil, nil, 0), false))

	url := fmt.Sprintf("http://127.0.0.1:%d/livez", port)
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("metrics server did not start: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()

	deadline = time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(url)
		if err != nil {
			return
		}
		resp.Body.Close()
		if time.Now().After(deadline) {
			t.Fatal("metrics server should stop after context cancellation")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestShutdownHTTP_NilServer(_ *testing.T) {
	shutdownHTTP(nil, log.WithField("test", "http-nil"))
}

// findFreePort находит свободный порт для тестов
func findFreePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}

func TestServeHTTP_BindError(t *testing.T) {
	logger := log.WithField("test", "http-bind")

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer listener.Close()

	errCh := make(chan error, 1)
	srv, err := serveHTTP(listener.Addr().String(), http.NotFoundHandler(), logger, errCh)
	if err == nil {
		shutdownHTTP(srv, logger)
		t.Fatal("expected bind error for busy address")
	}
}

func TestServeHTTP_ServesHandler(t *testing.T) {
	logger := log.WithField("test", "http-serve")

	port := findFreePort(t)
	errCh := make(chan error, 1)
	srv, err := serveHTTP(fmt.Sprintf("127.0.0.1:%d", port), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), logger, errCh)
	if err != nil {
		t.Fatalf("serveHTTP: %v", err)
	}
	defer shutdownHTTP(srv, logger)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/", port))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", resp.StatusCode)
	}

	select {
	case err := <-errCh:
		t.Fatalf("unexpected server error: %v", err)
	default:
	}
}
