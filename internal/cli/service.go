package cli

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/alnah/guidematrix/internal/analysis"
	"github.com/alnah/guidematrix/internal/config"
	"github.com/alnah/guidematrix/internal/store"
)

// serviceOptions selects the backends a command runs against.
// Empty fields fall back to the config file, then to defaults.
type serviceOptions struct {
	provider string
	model    string
	backend  string
	strict   bool
	logger   *zap.Logger
	metrics  *analysis.Metrics
}

// runtime is an analysis service plus the resources it holds open.
type runtime struct {
	svc     *analysis.Service
	closers []func() error
}

// Close releases every resource in reverse order and joins their errors.
func (r *runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// loadConfig loads the config file, warning instead of failing.
func loadConfig(env *Env) config.Config {
	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		_, _ = fmt.Fprintf(env.Stderr, "Warning: failed to load config: %v\n", err)
	}
	return cfg.WithDefaults()
}

// resolveProvider applies flag, then config, then the default.
func resolveProvider(flag, configured string) (Provider, error) {
	name := flag
	if name == "" {
		name = configured
	}
	if name == "" {
		return DeepSeekProvider, nil
	}
	return ParseProvider(name)
}

// apiKey reads the provider's key from the environment.
func apiKey(env *Env, p Provider) (string, error) {
	key := env.Getenv(p.APIKeyEnv())
	if key != "" {
		return key, nil
	}
	missing := ErrDeepSeekKeyMissing
	if p.IsOpenAI() {
		missing = ErrAPIKeyMissing
	}
	return "", fmt.Errorf("%w (set it with: export %s=sk-...)", missing, p.APIKeyEnv())
}

// openStore opens the configured result store.
func openStore(ctx context.Context, env *Env, cfg config.Config, backend string) (store.Store, error) {
	if backend == "" {
		backend = cfg.Store
	}
	return env.StoreOpener.Open(ctx, store.Options{
		Backend:       backend,
		SQLitePath:    cfg.SQLitePath,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
	})
}

// buildRuntime wires invoker, store and lock into a service.
func buildRuntime(ctx context.Context, env *Env, cfg config.Config, opts serviceOptions) (*runtime, error) {
	provider, err := resolveProvider(opts.provider, cfg.Provider)
	if err != nil {
		return nil, err
	}
	key, err := apiKey(env, provider)
	if err != nil {
		return nil, err
	}
	model := opts.model
	if model == "" {
		model = cfg.Model
	}
	inv, err := env.InvokerFactory.NewInvoker(provider, key, model)
	if err != nil {
		return nil, err
	}

	rt := &runtime{}
	st, err := openStore(ctx, env, cfg, opts.backend)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, st.Close)

	locker, closeLocker, err := env.LockerFactory.NewLocker(ctx, cfg.RedisAddr)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, closeLocker)

	svcOpts := []analysis.Option{
		analysis.WithLocker(locker),
		analysis.WithLogger(opts.logger),
	}
	if opts.metrics != nil {
		svcOpts = append(svcOpts, analysis.WithMetrics(opts.metrics))
	}
	if opts.strict {
		svcOpts = append(svcOpts, analysis.WithStrictQuality())
	}
	rt.svc = analysis.NewService(inv, st, svcOpts...)
	return rt, nil
}
