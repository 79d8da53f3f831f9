package observability

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewShutdownManager(t *testing.T) {
	tests := []struct {
		name            string
		timeout         time.Duration
		expectedTimeout time.Duration
	}{
		{name: "custom timeout", timeout: 10 * time.Second, expectedTimeout: 10 * time.Second},
		{name: "zero timeout uses default", timeout: 0, expectedTimeout: 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewShutdownManager(NewLogger("error", io.Discard), &http.Server{}, tt.timeout)
			if sm.shutdownTimeout != tt.expectedTimeout {
				t.Errorf("Expected timeout %v, got %v", tt.expectedTimeout, sm.shutdownTimeout)
			}
		})
	}
}

func TestShutdownManager_RunsRegisteredFuncs(t *testing.T) {
	logger := NewLogger("error", io.Discard)
	server := &http.Server{Addr: freeAddr(t), Handler: http.NotFoundHandler()}
	sm := NewShutdownManager(logger, server, 5*time.Second)

	var calls int32
	for i := 0; i < 3; i++ {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sm.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 shutdown funcs to run, got %d", got)
	}
}

func TestShutdownManager_FuncError(t *testing.T) {
	logger := NewLogger("error", io.Discard)
	sm := NewShutdownManager(logger, &http.Server{}, time.Second)

	sentinel := errors.New("close failed")
	sm.RegisterShutdownFunc(func(ctx context.Context) error { return sentinel })

	err := sm.Shutdown()
	if !errors.Is(err, sentinel) {
		t.Errorf("Expected wrapped sentinel error, got %v", err)
	}
}

func TestShutdownManager_Timeout(t *testing.T) {
	logger := NewLogger("error", io.Discard)
	sm := NewShutdownManager(logger, &http.Server{}, 50*time.Millisecond)

	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})

	if err := sm.Shutdown(); err == nil {
		t.Error("Expected timeout error")
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}
