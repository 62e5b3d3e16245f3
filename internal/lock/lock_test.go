package lock_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alnah/guidematrix/internal/lock"
)

// lockers returns every Locker available here. Redis runs only when
// GUIDEMATRIX_TEST_REDIS_ADDR is set.
func lockers(t *testing.T) map[string]lock.Locker {
	t.Helper()
	out := map[string]lock.Locker{"keyed": lock.NewKeyed()}
	if addr := os.Getenv("GUIDEMATRIX_TEST_REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		t.Cleanup(func() { _ = client.Close() })
		out["redis"] = lock.NewRedis(client, lock.WithPrefix("guidematrix:test:"+uuid.NewString()+":"), lock.WithTTL(time.Minute))
	}
	return out
}

// ---------------------------------------------------------------------------
// TestLocker - exclusivity and release
// ---------------------------------------------------------------------------

func TestLocker(t *testing.T) {
	t.Parallel()

	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			release, err := l.TryAcquire(ctx, "p/u")
			if err != nil {
				t.Fatalf("first TryAcquire() error: %v", err)
			}
			if _, err := l.TryAcquire(ctx, "p/u"); !errors.Is(err, lock.ErrHeld) {
				t.Errorf("second TryAcquire() error = %v, want ErrHeld", err)
			}

			other, err := l.TryAcquire(ctx, "p/other")
			if err != nil {
				t.Errorf("other key TryAcquire() error: %v", err)
			} else {
				other()
			}

			release()
			release()

			again, err := l.TryAcquire(ctx, "p/u")
			if err != nil {
				t.Fatalf("TryAcquire() after release error: %v", err)
			}
			again()
		})
	}
}

func TestKeyed_SingleWinner(t *testing.T) {
	t.Parallel()

	l := lock.NewKeyed()
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		start   = make(chan struct{})
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := l.TryAcquire(context.Background(), "k"); err == nil {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if n := winners.Load(); n != 1 {
		t.Errorf("winners = %d, want 1", n)
	}
	if !l.Held("k") {
		t.Error("Held(k) = false after a winner")
	}
}

func TestKeyed_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := lock.NewKeyed()
	if _, err := l.TryAcquire(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if l.Held("k") {
		t.Error("canceled acquire must not hold the key")
	}
}
