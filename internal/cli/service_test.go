package cli

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alnah/guidematrix/internal/config"
	"github.com/alnah/guidematrix/internal/lock"
	"github.com/alnah/guidematrix/internal/store"
)

// ---------------------------------------------------------------------------
// TestResolveProvider - flag, then config, then default
// ---------------------------------------------------------------------------

func TestResolveProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		flag       string
		configured string
		want       Provider
		wantErr    error
	}{
		{name: "default", want: DeepSeekProvider},
		{name: "config only", configured: "openai", want: OpenAIProvider},
		{name: "flag wins", flag: "deepseek", configured: "openai", want: DeepSeekProvider},
		{name: "invalid flag", flag: "mistral", wantErr: ErrInvalidProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := resolveProvider(tt.flag, tt.configured)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("resolveProvider() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveProvider() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("resolveProvider() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestAPIKey
// ---------------------------------------------------------------------------

func TestAPIKey(t *testing.T) {
	t.Parallel()

	env, _ := testEnv(withGetenv(staticEnv(map[string]string{EnvOpenAIAPIKey: "sk-openai"})))

	key, err := apiKey(env, OpenAIProvider)
	if err != nil || key != "sk-openai" {
		t.Errorf("apiKey(openai) = %q, %v", key, err)
	}

	_, err = apiKey(env, DeepSeekProvider)
	if !errors.Is(err, ErrDeepSeekKeyMissing) {
		t.Fatalf("apiKey(deepseek) error = %v, want ErrDeepSeekKeyMissing", err)
	}
	if !strings.Contains(err.Error(), "export "+EnvDeepSeekAPIKey) {
		t.Errorf("error should hint at the variable: %v", err)
	}
}

// ---------------------------------------------------------------------------
// TestRuntimeClose - reverse order, joined errors
// ---------------------------------------------------------------------------

func TestRuntimeClose(t *testing.T) {
	t.Parallel()

	var order []string
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	rt := &runtime{closers: []func() error{
		func() error { order = append(order, "a"); return errA },
		func() error { order = append(order, "b"); return errB },
		func() error { order = append(order, "c"); return nil },
	}}

	err := rt.Close()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Close() error = %v, want both errors", err)
	}
	if got := strings.Join(order, ""); got != "cba" {
		t.Errorf("close order = %q, want %q", got, "cba")
	}
}

// ---------------------------------------------------------------------------
// TestBuildRuntime
// ---------------------------------------------------------------------------

type closeCountingStore struct {
	*store.Memory
	closed *int
}

func (s closeCountingStore) Close() error {
	*s.closed++
	return nil
}

func TestBuildRuntime_Errors(t *testing.T) {
	t.Parallel()

	openErr := errors.New("store down")
	lockErr := errors.New("redis down")

	tests := []struct {
		name           string
		opts           serviceOptions
		getenv         map[string]string
		openErr        error
		lockErr        error
		wantErr        error
		wantStoreClose int
	}{
		{name: "invalid provider", opts: serviceOptions{provider: "mistral"}, wantErr: ErrInvalidProvider},
		{name: "missing key", getenv: map[string]string{}, wantErr: ErrDeepSeekKeyMissing},
		{name: "store fails", openErr: openErr, wantErr: openErr},
		{name: "locker fails closes store", lockErr: lockErr, wantErr: lockErr, wantStoreClose: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var opts []testEnvOption
			if tt.getenv != nil {
				opts = append(opts, withGetenv(staticEnv(tt.getenv)))
			}
			env, mocks := testEnv(opts...)

			closed := 0
			mocks.store.OpenFunc = func(context.Context, store.Options) (store.Store, error) {
				if tt.openErr != nil {
					return nil, tt.openErr
				}
				return closeCountingStore{Memory: store.NewMemory(), closed: &closed}, nil
			}
			if tt.lockErr != nil {
				mocks.locker.NewLockerFunc = func(context.Context, string) (lock.Locker, func() error, error) {
					return nil, nil, tt.lockErr
				}
			}

			rt, err := buildRuntime(context.Background(), env, config.Config{}, tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("buildRuntime() error = %v, want %v", err, tt.wantErr)
			}
			if rt != nil {
				t.Error("buildRuntime() should return nil runtime on error")
			}
			if closed != tt.wantStoreClose {
				t.Errorf("store closed %d times, want %d", closed, tt.wantStoreClose)
			}
		})
	}
}

func TestBuildRuntime_UsesConfig(t *testing.T) {
	t.Parallel()

	env, mocks := testEnv()
	cfg := config.Config{
		Provider:   "openai",
		Model:      "gpt-4o-mini",
		Store:      "sqlite",
		SQLitePath: "/tmp/results.db",
		RedisAddr:  "redis:6379",
	}

	rt, err := buildRuntime(context.Background(), env, cfg, serviceOptions{backend: store.BackendMemory})
	if err != nil {
		t.Fatalf("buildRuntime() error = %v", err)
	}
	if rt.svc == nil {
		t.Fatal("buildRuntime() did not build a service")
	}

	p, key, model := mocks.invoker.LastCall()
	if p != OpenAIProvider || key != "test-openai-key" || model != "gpt-4o-mini" {
		t.Errorf("invoker call = (%v, %q, %q)", p, key, model)
	}
	opts := mocks.store.LastOptions()
	if opts.Backend != store.BackendMemory || opts.SQLitePath != "/tmp/results.db" {
		t.Errorf("store options = %+v", opts)
	}
	if err := rt.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if mocks.locker.Closed() != 1 {
		t.Errorf("locker closed %d times, want 1", mocks.locker.Closed())
	}
	if len(mocks.locker.addrs) != 1 || mocks.locker.addrs[0] != "redis:6379" {
		t.Errorf("locker addrs = %v", mocks.locker.addrs)
	}
}
