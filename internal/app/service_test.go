package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubService struct {
	name     string
	startErr error
	block    bool

	mu      sync.Mutex
	stopped bool
}

func (s *stubService) Name() string { return s.name }

func (s *stubService) Start(ctx context.Context) error {
	if s.block {
		<-ctx.Done()
		return nil
	}
	return s.startErr
}

func (s *stubService) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *stubService) wasStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func TestRunnerStopsAllWhenOneFails(t *testing.T) {
	failing := &stubService{name: "worker", startErr: errors.New("redis down")}
	blocking := &stubService{name: "http", block: true}
	runner := NewRunner(blocking, failing)

	err := runner.Run(context.Background(), time.Second, nil)
	if err == nil || err.Error() != "redis down" {
		t.Fatalf("expected start error, got %v", err)
	}
	if !failing.wasStopped() || !blocking.wasStopped() {
		t.Fatalf("expected all services stopped")
	}
}

func TestRunnerReturnsNilOnCancel(t *testing.T) {
	svc := &stubService{name: "http", block: true}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewRunner(svc).Run(ctx, time.Second, nil); err != nil {
		t.Fatalf("expected nil on cancel, got %v", err)
	}
	if !svc.wasStopped() {
		t.Fatalf("expected service stopped")
	}
}

func TestRunnerRequiresServices(t *testing.T) {
	if err := NewRunner().Run(context.Background(), time.Second, nil); err == nil {
		t.Fatalf("expected error without services")
	}
	if _, err := BuildRunner(nil, nil, ModeAll); err == nil {
		t.Fatalf("expected error without config")
	}
}
