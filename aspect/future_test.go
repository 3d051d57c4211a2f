package aspect

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCompleted(t *testing.T) {
	f := Completed(42)

	select {
	case <-f.Done():
	default:
		t.Fatal("Completed future should be done")
	}

	v, err := f.Await(context.Background())
	if err != nil || v != 42 {
		t.Errorf("Await() = %v, %v; want 42, nil", v, err)
	}
}

func TestFailed(t *testing.T) {
	boom := errors.New("boom")
	f := Failed[int](boom)

	_, err := f.Await(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Await() error = %v, want %v", err, boom)
	}
}

func TestFuture_ResolvedWinsOverCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v, err := Completed("ready").Await(ctx)
	if err != nil || v != "ready" {
		t.Errorf("Await() = %q, %v; want ready, nil", v, err)
	}
}

func TestFuture_AwaitCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	f := Go(context.Background(), func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Await() error = %v, want deadline exceeded", err)
	}
}

func TestGo_ResolvesOnce(t *testing.T) {
	f := Go(context.Background(), func(ctx context.Context) (string, error) {
		return "done", nil
	})

	for i := 0; i < 3; i++ {
		v, err := f.Await(context.Background())
		if err != nil || v != "done" {
			t.Fatalf("Await() #%d = %q, %v", i, v, err)
		}
	}
}

func TestGo_Panic(t *testing.T) {
	f := Go(context.Background(), func(ctx context.Context) (int, error) {
		panic("kaboom")
	})

	_, err := f.Await(context.Background())
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Errorf("Await() error = %v, want panic error", err)
	}
}
