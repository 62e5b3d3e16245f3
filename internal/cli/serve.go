package cli

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alnah/guidematrix/internal/analysis"
	"github.com/alnah/guidematrix/internal/httpapi"
	"github.com/alnah/guidematrix/internal/logging"
)

// serveOptions holds the options of the serve command.
type serveOptions struct {
	addr     string
	provider string
	model    string
	backend  string
	strict   bool
	verbose  bool
}

// ServeCmd creates the serve command.
func ServeCmd(env *Env) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis HTTP API",
		Long: `Serve analyses over HTTP until interrupted.

Routes:
  POST /v1/projects/{projectID}/users/{userID}/analysis
  GET  /v1/projects/{projectID}/users/{userID}/analysis
  GET  /health
  GET  /metrics

Set redis-addr in the config to share run locks between instances.`,
		Example: `  guidematrix serve
  guidematrix serve --addr :9090 --store mongo`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, env, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (default from config, else :8080)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "LLM provider: deepseek, openai (default from config, else deepseek)")
	cmd.Flags().StringVar(&opts.model, "model", "", "Chat model (default depends on provider)")
	cmd.Flags().StringVar(&opts.backend, "store", "", "Result store: memory, sqlite, mongo (default from config, else sqlite)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Reject and do not save results with quality defects")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug details")
	return cmd
}

func runServe(cmd *cobra.Command, env *Env, opts serveOptions) error {
	ctx := cmd.Context()
	cfg := loadConfig(env)
	addr := opts.addr
	if addr == "" {
		addr = cfg.ListenAddr
	}

	logger := logging.New(env.Stderr, logging.Level(opts.verbose, zapcore.InfoLevel))
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rt, err := buildRuntime(ctx, env, cfg, serviceOptions{
		provider: opts.provider,
		model:    opts.model,
		backend:  opts.backend,
		strict:   opts.strict,
		logger:   logger,
		metrics:  analysis.NewMetrics(reg),
	})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	srv := httpapi.NewServer(addr, httpapi.NewRouter(rt.svc,
		httpapi.WithLogger(logger),
		httpapi.WithGatherer(reg)))

	_, _ = fmt.Fprintf(env.Stderr, "Listening on %s\n", addr)
	logger.Info("server started", zap.String("addr", addr))
	if err := httpapi.Serve(ctx, srv); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
