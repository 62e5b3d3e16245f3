package cli

import (
	"context"
	"sync"

	"github.com/alnah/guidematrix/internal/config"
	"github.com/alnah/guidematrix/internal/llm"
	"github.com/alnah/guidematrix/internal/lock"
	"github.com/alnah/guidematrix/internal/store"
)

// ---------------------------------------------------------------------------
// Mock ConfigLoader
// ---------------------------------------------------------------------------

type mockConfigLoader struct {
	LoadFunc func() (config.Config, error)

	mu        sync.Mutex
	loadCalls int
}

func (m *mockConfigLoader) Load() (config.Config, error) {
	m.mu.Lock()
	m.loadCalls++
	m.mu.Unlock()

	if m.LoadFunc != nil {
		return m.LoadFunc()
	}
	return config.Config{Store: store.BackendMemory}, nil
}

func (m *mockConfigLoader) LoadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCalls
}

// ---------------------------------------------------------------------------
// Mock InvokerFactory + Invoker
// ---------------------------------------------------------------------------

type mockInvoker struct {
	InvokeFunc func(ctx context.Context, req llm.Request) (string, error)

	mu       sync.Mutex
	requests []llm.Request
}

func (m *mockInvoker) Invoke(ctx context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, req)
	}
	return validReply, nil
}

func (m *mockInvoker) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

type mockInvokerFactory struct {
	NewInvokerFunc func(provider Provider, apiKey, model string) (llm.Invoker, error)
	mockInvoker    *mockInvoker

	mu        sync.Mutex
	providers []Provider
	apiKeys   []string
	models    []string
}

func (m *mockInvokerFactory) NewInvoker(provider Provider, apiKey, model string) (llm.Invoker, error) {
	m.mu.Lock()
	m.providers = append(m.providers, provider)
	m.apiKeys = append(m.apiKeys, apiKey)
	m.models = append(m.models, model)
	m.mu.Unlock()

	if m.NewInvokerFunc != nil {
		return m.NewInvokerFunc(provider, apiKey, model)
	}
	if m.mockInvoker == nil {
		m.mockInvoker = &mockInvoker{}
	}
	return m.mockInvoker, nil
}

func (m *mockInvokerFactory) LastCall() (Provider, string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.providers) == 0 {
		return Provider{}, "", ""
	}
	n := len(m.providers) - 1
	return m.providers[n], m.apiKeys[n], m.models[n]
}

// ---------------------------------------------------------------------------
// Mock StoreOpener
// ---------------------------------------------------------------------------

// mockStoreOpener hands out one shared in-memory store so a test can read
// what a command wrote.
type mockStoreOpener struct {
	OpenFunc func(ctx context.Context, opts store.Options) (store.Store, error)

	mu      sync.Mutex
	mem     *store.Memory
	options []store.Options
}

func (m *mockStoreOpener) Open(ctx context.Context, opts store.Options) (store.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.options = append(m.options, opts)

	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, opts)
	}
	if m.mem == nil {
		m.mem = store.NewMemory()
	}
	return nopCloseStore{m.mem}, nil
}

func (m *mockStoreOpener) Memory() *store.Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mem == nil {
		m.mem = store.NewMemory()
	}
	return m.mem
}

func (m *mockStoreOpener) LastOptions() store.Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.options) == 0 {
		return store.Options{}
	}
	return m.options[len(m.options)-1]
}

// nopCloseStore keeps the shared memory store usable after a command closes it.
type nopCloseStore struct {
	*store.Memory
}

func (nopCloseStore) Close() error { return nil }

// ---------------------------------------------------------------------------
// Mock LockerFactory
// ---------------------------------------------------------------------------

type mockLockerFactory struct {
	NewLockerFunc func(ctx context.Context, redisAddr string) (lock.Locker, func() error, error)
	locker        *lock.Keyed

	mu     sync.Mutex
	addrs  []string
	closed int
}

func (m *mockLockerFactory) NewLocker(ctx context.Context, redisAddr string) (lock.Locker, func() error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addrs = append(m.addrs, redisAddr)

	if m.NewLockerFunc != nil {
		return m.NewLockerFunc(ctx, redisAddr)
	}
	if m.locker == nil {
		m.locker = lock.NewKeyed()
	}
	return m.locker, func() error {
		m.mu.Lock()
		m.closed++
		m.mu.Unlock()
		return nil
	}, nil
}

func (m *mockLockerFactory) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Compile-time interface verification.
var (
	_ ConfigLoader   = (*mockConfigLoader)(nil)
	_ InvokerFactory = (*mockInvokerFactory)(nil)
	_ StoreOpener    = (*mockStoreOpener)(nil)
	_ LockerFactory  = (*mockLockerFactory)(nil)
	_ llm.Invoker    = (*mockInvoker)(nil)
)
