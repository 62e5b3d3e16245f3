package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alnah/guidematrix/internal/analysis"
	"github.com/alnah/guidematrix/internal/apierr"
	"github.com/alnah/guidematrix/internal/cli"
	"github.com/alnah/guidematrix/internal/config"
	"github.com/alnah/guidematrix/internal/lang"
	"github.com/alnah/guidematrix/internal/llm"
	"github.com/alnah/guidematrix/internal/schema"
	"github.com/alnah/guidematrix/internal/store"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	ExitOK         = 0
	ExitGeneral    = 1
	ExitUsage      = 2
	ExitSetup      = 3
	ExitValidation = 4
	ExitUpstream   = 5
	ExitQuality    = 6
	ExitInterrupt  = 130
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	env := cli.DefaultEnv()

	rootCmd := &cobra.Command{
		Use:     "guidematrix",
		Short:   "Discussion-guide-aligned content analysis of interview transcripts",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		// Silence Cobra's default error/usage printing; we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(cli.AnalyzeCmd(env))
	rootCmd.AddCommand(cli.GuideCmd(env))
	rootCmd.AddCommand(cli.SpeakersCmd(env))
	rootCmd.AddCommand(cli.PromptCmd(env))
	rootCmd.AddCommand(cli.ValidateCmd(env))
	rootCmd.AddCommand(cli.ShowCmd(env))
	rootCmd.AddCommand(cli.ServeCmd(env))
	rootCmd.AddCommand(cli.ConfigCmd(env))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps errors to process exit codes.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	if errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}

	// Cobra doesn't expose typed errors; match known message patterns.
	if isCobraUsageError(err) {
		return ExitUsage
	}

	if errors.Is(err, cli.ErrAPIKeyMissing) || errors.Is(err, cli.ErrDeepSeekKeyMissing) ||
		errors.Is(err, cli.ErrInvalidProvider) || errors.Is(err, store.ErrUnknownBackend) ||
		errors.Is(err, apierr.ErrConfiguration) {
		return ExitSetup
	}

	if errors.Is(err, cli.ErrFileNotFound) || errors.Is(err, cli.ErrOutputExists) ||
		errors.Is(err, cli.ErrNoTranscripts) || errors.Is(err, schema.ErrUnknown) ||
		errors.Is(err, lang.ErrInvalid) || errors.Is(err, analysis.ErrMissingConfig) ||
		errors.Is(err, analysis.ErrNoDocuments) || errors.Is(err, analysis.ErrEmptyDocuments) ||
		errors.Is(err, store.ErrInvalidKey) || errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, config.ErrUnknownKey) || errors.Is(err, llm.ErrPromptTooLong) {
		return ExitValidation
	}

	if errors.Is(err, apierr.ErrConnectivity) || errors.Is(err, apierr.ErrUpstreamStatus) ||
		errors.Is(err, apierr.ErrRateLimit) || errors.Is(err, apierr.ErrQuotaExceeded) ||
		errors.Is(err, apierr.ErrTimeout) || errors.Is(err, apierr.ErrAuthFailed) {
		return ExitUpstream
	}

	if errors.Is(err, analysis.ErrQualityRejected) {
		return ExitQuality
	}

	return ExitGeneral
}

// cobraUsageErrorPatterns contains error message substrings that indicate Cobra usage errors.
// These patterns are stable across Cobra versions (tested with v1.8+).
var cobraUsageErrorPatterns = []string{
	"required flag",             // Missing required flag
	"unknown flag",              // Flag doesn't exist
	"unknown shorthand",         // Short flag doesn't exist
	"unknown command",           // Subcommand doesn't exist
	"flag needs an argument",    // Flag provided without value
	"invalid argument",          // Invalid flag value type
	"if any flags in the group", // Mutually exclusive flag violation
	"accepts ",                  // Wrong number of arguments (e.g., "accepts 1 arg(s)")
	"requires at least",         // Too few arguments
	"requires at most",          // Too many arguments
}

// isCobraUsageError checks if an error is a Cobra usage/parsing error.
func isCobraUsageError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
