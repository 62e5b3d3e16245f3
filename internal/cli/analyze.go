package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/alnah/guidematrix/internal/analysis"
	"github.com/alnah/guidematrix/internal/config"
	"github.com/alnah/guidematrix/internal/format"
	"github.com/alnah/guidematrix/internal/logging"
	"github.com/alnah/guidematrix/internal/store"
)

// analyzeOptions holds the options of the analyze command.
type analyzeOptions struct {
	input       inputFlags
	transcripts []string
	output      string
	projectID   string
	userID      string
	provider    string
	model       string
	backend     string
	strict      bool
	verbose     bool
}

// AnalyzeCmd creates the analyze command.
// The env parameter provides injectable dependencies for testing.
func AnalyzeCmd(env *Env) *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze <transcript>...",
		Short: "Analyze transcripts against the discussion guide",
		Long: `Analyze interview transcripts into a guide-aligned content analysis.

The project file supplies the research context and, optionally, the
discussion guide. The model response is validated and repaired, saved to
the result store under the project and user ids, and written as JSON.

Analysis uses DeepSeek by default, or OpenAI with --provider openai.`,
		Example: `  guidematrix analyze -p project.yaml interview1.txt interview2.txt
  guidematrix analyze -p project.yaml -g guide.md -o matrix.json *.txt
  guidematrix analyze -p project.yaml -k strategic_themes --strict t1.txt
  guidematrix analyze -p project.yaml -L fr -o - t1.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.transcripts = args
			return runAnalyze(cmd, env, opts)
		},
	}

	opts.input.register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file path, - for stdout (default: <project-id>_<kind>.json)")
	cmd.Flags().StringVar(&opts.projectID, "project-id", "", "Project id of the stored result (default: project file name)")
	cmd.Flags().StringVar(&opts.userID, "user-id", "", "User id of the stored result (default: $USER)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "LLM provider: deepseek, openai (default from config, else deepseek)")
	cmd.Flags().StringVar(&opts.model, "model", "", "Chat model (default depends on provider)")
	cmd.Flags().StringVar(&opts.backend, "store", "", "Result store: memory, sqlite, mongo (default from config, else sqlite)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Reject and do not save results with quality defects")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log every step as JSON to stderr")

	return cmd
}

// storeKey applies the default project and user ids.
func storeKey(env *Env, projectID, userID, projectFile string) store.Key {
	if projectID == "" {
		projectID = documentID(projectFile)
	}
	if userID == "" {
		userID = env.Getenv("USER")
	}
	if userID == "" {
		userID = "local"
	}
	return store.Key{ProjectID: projectID, UserID: userID}
}

// runAnalyze executes the analyze command.
func runAnalyze(cmd *cobra.Command, env *Env, opts analyzeOptions) error {
	ctx := cmd.Context()

	// === VALIDATION (fail-fast) ===

	if opts.provider != "" {
		if _, err := ParseProvider(opts.provider); err != nil {
			return err
		}
	}
	in, err := opts.input.load(ctx, opts.transcripts)
	if err != nil {
		return err
	}
	key := storeKey(env, opts.projectID, opts.userID, opts.input.projectFile)
	if err := key.Validate(); err != nil {
		return err
	}

	cfg := loadConfig(env)
	output := opts.output
	if output != "-" {
		output = config.ResolveOutputPath(output, cfg.OutputDir, fmt.Sprintf("%s_%s.json", key.ProjectID, in.kind))
		if _, err := os.Stat(output); err == nil {
			return fmt.Errorf("output file already exists: %s: %w", output, ErrOutputExists)
		}
	}

	// === RUN ===

	logger := logging.New(env.Stderr, logging.Level(opts.verbose, zapcore.WarnLevel))
	defer func() { _ = logger.Sync() }()

	rt, err := buildRuntime(ctx, env, cfg, serviceOptions{
		provider: opts.provider,
		model:    opts.model,
		backend:  opts.backend,
		strict:   opts.strict,
		logger:   logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	_, _ = fmt.Fprintf(env.Stderr, "Analyzing %s as %s...\n",
		format.Count(len(in.documents), "transcript", "transcripts"), in.kind)
	start := env.Now()

	out, err := rt.svc.Run(ctx, analysis.Request{
		Key:       key,
		Kind:      in.kind,
		Config:    in.config,
		Documents: in.documents,
	}, analysis.WithEvents(progressPrinter(env.Stderr)))
	if err != nil {
		if errors.Is(err, analysis.ErrQualityRejected) {
			reportResult(env.Stderr, out.Result)
		}
		return err
	}
	reportResult(env.Stderr, out.Result)

	// === WRITE OUTPUT ===

	content, err := marshalIndent(out.Result.Document)
	if err != nil {
		return err
	}
	if err := writeOutput(env, output, content); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(env.Stderr, "Done in %s: %s (saved %s version %d)\n",
		format.Elapsed(env.Now().Sub(start)), output, key, out.Record.Version)
	return nil
}
