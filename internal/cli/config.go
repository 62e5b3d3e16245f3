package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alnah/guidematrix/internal/config"
)

// validConfigKeys lists all supported configuration keys.
var validConfigKeys = config.Keys()

// ConfigCmd creates the config command with subcommands.
// The env parameter provides injectable dependencies for testing.
func ConfigCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long: `Manage persistent configuration settings.

Configuration is stored in ~/.config/guidematrix/config.
Settings can also be overridden via environment variables.

Supported settings:
  output-dir      Default directory for output files (env: GUIDEMATRIX_OUTPUT_DIR)
  provider        LLM provider: deepseek or openai (env: GUIDEMATRIX_PROVIDER)
  model           Chat model name (env: GUIDEMATRIX_MODEL)
  store           Result store: memory, sqlite or mongo (env: GUIDEMATRIX_STORE)
  sqlite-path     SQLite database file (env: GUIDEMATRIX_SQLITE_PATH)
  mongo-uri       MongoDB connection string (env: GUIDEMATRIX_MONGO_URI)
  mongo-database  MongoDB database name (env: GUIDEMATRIX_MONGO_DATABASE)
  redis-addr      Redis address for shared run locks (env: GUIDEMATRIX_REDIS_ADDR)
  listen-addr     HTTP listen address for serve (env: GUIDEMATRIX_LISTEN_ADDR)`,
		Example: `  guidematrix config set output-dir ~/Documents/analyses
  guidematrix config set store mongo
  guidematrix config get provider
  guidematrix config list`,
	}

	cmd.AddCommand(configSetCmd(env))
	cmd.AddCommand(configGetCmd(env))
	cmd.AddCommand(configListCmd(env))

	return cmd
}

// configSetCmd creates the "config set" subcommand.
func configSetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value.

Paths are expanded (~). The output directory is created if it doesn't exist.`,
		Example: `  guidematrix config set output-dir ~/Documents/analyses
  guidematrix config set mongo-uri mongodb://localhost:27017`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			return runConfigSet(env, key, value)
		},
	}
}

// configGetCmd creates the "config get" subcommand.
func configGetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long: `Get a configuration value.

Prints the value to stdout, or nothing if not set.`,
		Example: `  guidematrix config get output-dir`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(env, args[0])
		},
	}
}

// configListCmd creates the "config list" subcommand.
func configListCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Long: `List all configuration values.

Shows both values from the config file and environment variable overrides.`,
		Example: `  guidematrix config list`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigList(env)
		},
	}
}

func unknownKey(key string) error {
	return fmt.Errorf("%w %q (valid keys: %s)", config.ErrUnknownKey, key, strings.Join(validConfigKeys, ", "))
}

// runConfigSet handles the "config set" command.
func runConfigSet(env *Env, key, value string) error {
	if !isValidConfigKey(key) {
		return unknownKey(key)
	}

	switch key {
	case config.KeyOutputDir, config.KeySQLitePath:
		value = config.ExpandPath(value)
	}
	if err := config.Validate(key, value); err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}

	if err := config.Save(key, value); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(env.Stderr, "Set %s = %s\n", key, value)
	return nil
}

// runConfigGet handles the "config get" command.
func runConfigGet(env *Env, key string) error {
	if !isValidConfigKey(key) {
		return unknownKey(key)
	}

	value, err := config.Get(key)
	if err != nil {
		return err
	}

	// Environment variable fallback.
	if value == "" {
		value = env.Getenv(config.EnvVar(key))
	}

	if value != "" {
		_, _ = fmt.Fprintln(env.Stdout, value)
	}

	return nil
}

// runConfigList handles the "config list" command.
func runConfigList(env *Env) error {
	data, err := config.List()
	if err != nil {
		return err
	}

	for _, key := range validConfigKeys {
		if _, ok := data[key]; ok {
			continue
		}
		if envVal := env.Getenv(config.EnvVar(key)); envVal != "" {
			data[key] = envVal + " (from env)"
		}
	}

	if len(data) == 0 {
		_, _ = fmt.Fprintln(env.Stdout, "No configuration set.")
		_, _ = fmt.Fprintln(env.Stdout, "\nAvailable settings:")
		for _, key := range validConfigKeys {
			_, _ = fmt.Fprintf(env.Stdout, "  %s\n", key)
		}
		return nil
	}

	for _, key := range validConfigKeys {
		if value, ok := data[key]; ok {
			_, _ = fmt.Fprintf(env.Stdout, "%s=%s\n", key, value)
		}
	}

	return nil
}

// isValidConfigKey checks if a key is a valid configuration key.
func isValidConfigKey(key string) bool {
	return slices.Contains(validConfigKeys, key)
}
