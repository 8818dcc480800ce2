package lua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add(msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add(msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add(msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.add(msg, args...) }

func (l *captureLogger) add(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(msg, args...))
}

func (l *captureLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

func TestExecutorOrder(t *testing.T) {
	e := NewExecutor(10, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)
	defer e.Close()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		if err := e.Go(func() error { order = append(order, i); return nil }); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(order) != "[0 1 2 3 4]" {
		t.Errorf("order = %v", order)
	}
}

func TestExecutorErrors(t *testing.T) {
	var (
		mu     sync.Mutex
		failed []error
	)
	e := NewExecutor(10, func(err error) {
		mu.Lock()
		failed = append(failed, err)
		mu.Unlock()
	})
	ctx := context.Background()
	go e.Run(ctx)
	defer e.Close()

	boom := errors.New("boom")
	if err := e.Do(ctx, func() error { return boom }); !errors.Is(err, boom) {
		t.Errorf("Do = %v", err)
	}
	if err := e.Do(ctx, func() error { panic("bad") }); err == nil || !strings.Contains(err.Error(), "bad") {
		t.Errorf("Do panic = %v", err)
	}

	_ = e.Go(func() error { return boom })
	_ = e.Flush(ctx)
	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(failed)
		mu.Unlock()
		if n == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(failed) != 1 || !errors.Is(failed[0], boom) {
		t.Errorf("onError got %v", failed)
	}
}

func TestExecutorClosed(t *testing.T) {
	e := NewExecutor(1, nil)
	e.Close()
	if err := e.Do(context.Background(), func() error { return nil }); !errors.Is(err, ErrExecutorClosed) {
		t.Errorf("Do = %v", err)
	}
	if err := e.Go(func() error { return nil }); !errors.Is(err, ErrExecutorClosed) {
		t.Errorf("Go = %v", err)
	}
	if !e.IsClosed() {
		t.Error("IsClosed = false")
	}
}

func TestExecutorQueueFull(t *testing.T) {
	e := NewExecutor(1, nil)
	defer e.Close()
	// Not running: the first job fills the queue.
	if err := e.Go(func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	if err := e.Go(func() error { return nil }); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Go = %v, want ErrQueueFull", err)
	}
}
