package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alnah/guidematrix/internal/config"
	"github.com/alnah/guidematrix/internal/llm"
	"github.com/alnah/guidematrix/internal/lock"
	"github.com/alnah/guidematrix/internal/store"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// All fields have sensible defaults via DefaultEnv(). Tests can override
// specific fields using the With* options or by creating a custom Env.
//
// Env must not be nil when passed to command functions. Use DefaultEnv()
// or NewEnv() to create a valid instance.
type Env struct {
	// I/O and environment
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string
	Now    func() time.Time

	// Factories for domain objects
	ConfigLoader   ConfigLoader
	InvokerFactory InvokerFactory
	StoreOpener    StoreOpener
	LockerFactory  LockerFactory
}

// ConfigLoader loads and provides access to configuration.
type ConfigLoader interface {
	Load() (config.Config, error)
}

// InvokerFactory creates the model client for a provider.
type InvokerFactory interface {
	NewInvoker(provider Provider, apiKey, model string) (llm.Invoker, error)
}

// StoreOpener opens the result store.
type StoreOpener interface {
	Open(ctx context.Context, opts store.Options) (store.Store, error)
}

// LockerFactory creates the run lock. An empty address means an
// in-process lock. The returned close function releases any connection.
type LockerFactory interface {
	NewLocker(ctx context.Context, redisAddr string) (lock.Locker, func() error, error)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stdout = w
	}
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) {
		e.Getenv = fn
	}
}

// WithNow sets the time provider.
func WithNow(fn func() time.Time) EnvOption {
	return func(e *Env) {
		e.Now = fn
	}
}

// WithConfigLoader sets the config loader.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) {
		e.ConfigLoader = l
	}
}

// WithInvokerFactory sets the invoker factory.
func WithInvokerFactory(f InvokerFactory) EnvOption {
	return func(e *Env) {
		e.InvokerFactory = f
	}
}

// WithStoreOpener sets the store opener.
func WithStoreOpener(o StoreOpener) EnvOption {
	return func(e *Env) {
		e.StoreOpener = o
	}
}

// WithLockerFactory sets the locker factory.
func WithLockerFactory(f LockerFactory) EnvOption {
	return func(e *Env) {
		e.LockerFactory = f
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdout:         os.Stdout,
		Stderr:         os.Stderr,
		Getenv:         os.Getenv,
		Now:            time.Now,
		ConfigLoader:   &defaultConfigLoader{},
		InvokerFactory: &defaultInvokerFactory{},
		StoreOpener:    &defaultStoreOpener{},
		LockerFactory:  &defaultLockerFactory{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

// defaultConfigLoader implements ConfigLoader using the config package.
type defaultConfigLoader struct{}

func (defaultConfigLoader) Load() (config.Config, error) {
	return config.Load()
}

// defaultInvokerFactory implements InvokerFactory with the OpenAI-compatible client.
type defaultInvokerFactory struct{}

func (defaultInvokerFactory) NewInvoker(provider Provider, apiKey, model string) (llm.Invoker, error) {
	inv, err := llm.NewChatInvoker(apiKey, provider.invokerOptions(model)...)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// defaultStoreOpener implements StoreOpener using the store package.
type defaultStoreOpener struct{}

func (defaultStoreOpener) Open(ctx context.Context, opts store.Options) (store.Store, error) {
	return store.Open(ctx, opts)
}

// defaultLockerFactory implements LockerFactory with Redis or an in-process lock.
type defaultLockerFactory struct{}

func (defaultLockerFactory) NewLocker(ctx context.Context, redisAddr string) (lock.Locker, func() error, error) {
	if redisAddr == "" {
		return lock.NewKeyed(), func() error { return nil }, nil
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis %s: %w", redisAddr, err)
	}
	return lock.NewRedis(client), client.Close, nil
}

// Compile-time interface verification.
var (
	_ ConfigLoader   = (*defaultConfigLoader)(nil)
	_ InvokerFactory = (*defaultInvokerFactory)(nil)
	_ StoreOpener    = (*defaultStoreOpener)(nil)
	_ LockerFactory  = (*defaultLockerFactory)(nil)
)
