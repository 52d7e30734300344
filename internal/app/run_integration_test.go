package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.StorageDriver = StorageDriverMemory

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_ServesCheckoutAPI(t *testing.T) {
	port := findFreePort(t)

	cfg := DefaultConfig()
	cfg.HTTPAddr = fmt.Sprintf("127.0.0.1:%d", port)
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	var (
		resp *http.Response
		err  error
	)
	for i := 0; i < 50; i++ {
		resp, err = http.Get(base + "/v1/businesses/biz-1/orders")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		cancel()
		t.Fatalf("api did not start: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from list orders, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, base+"/v1/orders", strings.NewReader(`{"businessId":"biz-1","items":[]}`))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("checkout request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 without Idempotency-Key, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "invalid-driver"
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestStopWorkers(t *testing.T) {
	logger := log.WithField("test", "workers")

	stopped := make(chan struct{})
	worker := startWorker(context.Background(), "test", func(ctx context.Context) {
		<-ctx.Done()
		close(stopped)
	}, logger)

	stopWorkers([]backgroundWorker{worker}, logger)
	select {
	case <-stopped:
	default:
		t.Fatal("worker must observe cancellation before stopWorkers returns")
	}

	stopWorkers(nil, logger)
	stopWorkers([]backgroundWorker{{name: "empty"}}, logger)
	closeKafkaProducer(nil, logger)
}

func TestInitKafkaProducer_Disabled(t *testing.T) {
	if p := initKafkaProducer(Config{}, log.WithField("test", "kafka")); p != nil {
		t.Fatal("expected nil producer without brokers")
	}
}
