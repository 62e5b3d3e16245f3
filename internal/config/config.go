// Package config reads and writes the user configuration file
// ($XDG_CONFIG_HOME/guidematrix/config), a key=value file with environment
// variable fallbacks.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Config keys.
const (
	KeyOutputDir     = "output-dir"
	KeyProvider      = "provider"
	KeyModel         = "model"
	KeyStore         = "store"
	KeySQLitePath    = "sqlite-path"
	KeyMongoURI      = "mongo-uri"
	KeyMongoDatabase = "mongo-database"
	KeyRedisAddr     = "redis-addr"
	KeyListenAddr    = "listen-addr"
)

// Environment variable fallbacks, keyed by config key.
var envFallbacks = map[string]string{
	KeyOutputDir:     "GUIDEMATRIX_OUTPUT_DIR",
	KeyProvider:      "GUIDEMATRIX_PROVIDER",
	KeyModel:         "GUIDEMATRIX_MODEL",
	KeyStore:         "GUIDEMATRIX_STORE",
	KeySQLitePath:    "GUIDEMATRIX_SQLITE_PATH",
	KeyMongoURI:      "GUIDEMATRIX_MONGO_URI",
	KeyMongoDatabase: "GUIDEMATRIX_MONGO_DATABASE",
	KeyRedisAddr:     "GUIDEMATRIX_REDIS_ADDR",
	KeyListenAddr:    "GUIDEMATRIX_LISTEN_ADDR",
}

// Defaults applied by WithDefaults.
const (
	DefaultProvider   = "deepseek"
	DefaultStore      = "sqlite"
	DefaultListenAddr = ":8080"
)

// ErrUnknownKey indicates a key that is not a configuration key.
var ErrUnknownKey = errors.New("unknown config key")

// Config holds user configuration. Empty fields mean "not configured".
type Config struct {
	OutputDir     string
	Provider      string
	Model         string
	Store         string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
	RedisAddr     string
	ListenAddr    string
}

// Keys returns every configuration key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(envFallbacks))
	for k := range envFallbacks {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// EnvVar returns the environment fallback for key, or "".
func EnvVar(key string) string {
	return envFallbacks[key]
}

func (c *Config) field(key string) *string {
	switch key {
	case KeyOutputDir:
		return &c.OutputDir
	case KeyProvider:
		return &c.Provider
	case KeyModel:
		return &c.Model
	case KeyStore:
		return &c.Store
	case KeySQLitePath:
		return &c.SQLitePath
	case KeyMongoURI:
		return &c.MongoURI
	case KeyMongoDatabase:
		return &c.MongoDatabase
	case KeyRedisAddr:
		return &c.RedisAddr
	case KeyListenAddr:
		return &c.ListenAddr
	}
	return nil
}

// WithDefaults fills unset provider, store, SQLite path and listen address.
func (c Config) WithDefaults() Config {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.Store == "" {
		c.Store = DefaultStore
	}
	if c.SQLitePath == "" {
		if p, err := DefaultSQLitePath(); err == nil {
			c.SQLitePath = p
		}
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	c.OutputDir = ExpandPath(c.OutputDir)
	c.SQLitePath = ExpandPath(c.SQLitePath)
	return c
}

// dir returns the configuration directory path.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/guidematrix.
func dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "guidematrix"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "guidematrix"), nil
}

// path returns the full path to the config file.
func path() (string, error) {
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config"), nil
}

// DefaultSQLitePath returns the results database location:
// $XDG_DATA_HOME/guidematrix/results.db or ~/.local/share/guidematrix/results.db.
func DefaultSQLitePath() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "guidematrix", "results.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "guidematrix", "results.db"), nil
}

// Load reads the configuration file and environment variables.
// Precedence: config file values, then environment variable fallbacks.
// Returns an empty Config if the file doesn't exist (not an error).
func Load() (Config, error) {
	var cfg Config

	p, err := path()
	if err != nil {
		return cfg, err
	}

	data, err := parseFile(p)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	for key, env := range envFallbacks {
		f := cfg.field(key)
		*f = data[key]
		if *f == "" {
			*f = os.Getenv(env)
		}
	}
	return cfg, nil
}

// parseFile reads a key=value config file.
// Format: one key=value per line, # comments, empty lines ignored.
func parseFile(p string) (map[string]string, error) {
	f, err := os.Open(p) // #nosec G304 -- config path is constructed from home dir
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid syntax at line %d: %q", lineNum, line)
		}
		data[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return data, nil
}

// Save writes a single key=value to the config file.
// Creates the config directory and file if they don't exist.
// Preserves existing key=value pairs but discards comments.
func Save(key, value string) error {
	if _, ok := envFallbacks[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	p, err := path()
	if err != nil {
		return err
	}

	d := filepath.Dir(p)
	if err := os.MkdirAll(d, 0750); err != nil { // #nosec G301 -- user config dir
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	existing, _ := parseFile(p)
	if existing == nil {
		existing = make(map[string]string)
	}
	existing[key] = value

	return writeFile(p, existing)
}

// writeFile writes the config map to a file, keys sorted.
func writeFile(p string, data map[string]string) error {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, data[k])
	}

	// #nosec G306 -- config file with standard permissions, path from home dir
	if err := os.WriteFile(p, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("cannot write config file: %w", err)
	}
	return nil
}

// Get reads a single value from the config file.
// Returns empty string if the key doesn't exist.
func Get(key string) (string, error) {
	p, err := path()
	if err != nil {
		return "", err
	}

	data, err := parseFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	return data[key], nil
}

// List returns all config values as a map.
func List() (map[string]string, error) {
	p, err := path()
	if err != nil {
		return nil, err
	}

	data, err := parseFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}

	return data, nil
}

// Validate checks a value before it is saved under key.
func Validate(key, value string) error {
	switch key {
	case KeyOutputDir:
		return ValidOutputDir(value)
	case KeyProvider:
		return oneOf(key, value, "deepseek", "openai")
	case KeyStore:
		return oneOf(key, value, "memory", "sqlite", "mongo")
	case KeyMongoURI:
		if !strings.HasPrefix(value, "mongodb://") && !strings.HasPrefix(value, "mongodb+srv://") {
			return fmt.Errorf("%s must start with mongodb:// or mongodb+srv://", key)
		}
	case KeySQLitePath, KeyModel, KeyMongoDatabase, KeyRedisAddr, KeyListenAddr:
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s cannot be empty", key)
		}
	default:
		return fmt.Errorf("%w: %q (valid keys: %s)", ErrUnknownKey, key, strings.Join(Keys(), ", "))
	}
	return nil
}

func oneOf(key, value string, allowed ...string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("invalid %s %q (expected %s)", key, value, strings.Join(allowed, " or "))
}

// ResolveOutputPath resolves the final output path using the following precedence:
//  1. If output is absolute, use it as-is
//  2. If output is relative and outputDir is set, join them
//  3. If output is empty, use defaultName in outputDir (or cwd if no outputDir)
func ResolveOutputPath(output, outputDir, defaultName string) string {
	if output != "" && filepath.IsAbs(output) {
		return filepath.Clean(output)
	}

	if output != "" {
		if outputDir != "" {
			return filepath.Clean(filepath.Join(outputDir, output))
		}
		return filepath.Clean(output)
	}

	if outputDir != "" {
		return filepath.Clean(filepath.Join(outputDir, defaultName))
	}
	return filepath.Clean(defaultName)
}

// ValidOutputDir checks if a directory path is valid for use as output-dir,
// creating it when missing.
func ValidOutputDir(d string) error {
	if d == "" {
		return fmt.Errorf("output-dir cannot be empty")
	}
	d = ExpandPath(d)

	info, err := os.Stat(d)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(d, 0750); err != nil { // #nosec G301 -- user output dir
				return fmt.Errorf("cannot create directory: %w", err)
			}
			return nil
		}
		return fmt.Errorf("cannot access directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", d)
	}

	testFile := filepath.Join(d, ".guidematrix-write-test")
	f, err := os.Create(testFile) // #nosec G304 -- path is constructed from validated dir
	if err != nil {
		return fmt.Errorf("directory is not writable: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(testFile)
		return fmt.Errorf("directory is not writable: %w", err)
	}
	_ = os.Remove(testFile)

	return nil
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[2:])
	}
	return p
}

// Dir returns the configuration directory path.
func Dir() (string, error) {
	return dir()
}
