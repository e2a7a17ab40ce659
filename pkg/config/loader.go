package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// dotEnvFile is loaded from the working directory when present.
const dotEnvFile = ".env"

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. .env file (variables already set in the environment win)
//  3. YAML config file (explicit path, FEYNMIND_CONFIG env, ./config.yaml, /etc/feynmind/config.yaml)
//  4. FEYNMIND_* environment variable overrides
//  5. File reference resolution (_file suffix)
//  6. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	if err := loadDotEnv(dotEnvFile); err != nil {
		return nil, fmt.Errorf("loading %s: %w", dotEnvFile, err)
	}

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv exports the variables of path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. FEYNMIND_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/feynmind/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	// Explicit path takes priority.
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("FEYNMIND_CONFIG"); envPath != "" {
		return envPath
	}

	// Check common locations.
	candidates := []string{
		"config.yaml",
		"/etc/feynmind/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps FEYNMIND_* environment variables to config fields.
// Malformed numeric values are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	var errs []error

	if v := os.Getenv("FEYNMIND_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		} else {
			errs = append(errs, fmt.Errorf("FEYNMIND_PORT: %q is not a number", v))
		}
	}
	if v := os.Getenv("FEYNMIND_JWT_SECRET"); v != "" {
		cfg.Auth.SigningSecret = v
	}
	if v := os.Getenv("FEYNMIND_CORS_ORIGINS"); v != "" {
		cfg.CORS.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("FEYNMIND_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("FEYNMIND_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("FEYNMIND_BLOB_STORE"); v != "" {
		cfg.Documents.Blob.Type = v
	}
	if v := os.Getenv("FEYNMIND_S3_BUCKET"); v != "" {
		cfg.Documents.Blob.S3.Bucket = v
	}
	if v := os.Getenv("FEYNMIND_S3_ENDPOINT"); v != "" {
		cfg.Documents.Blob.S3.Endpoint = v
	}
	if v := os.Getenv("FEYNMIND_S3_REGION"); v != "" {
		cfg.Documents.Blob.S3.Region = v
	}
	if v := os.Getenv("FEYNMIND_TUTOR_URL"); v != "" {
		cfg.Tutor.BackendURL = v
	}
	if v := os.Getenv("FEYNMIND_TUTOR_API_KEY"); v != "" {
		cfg.Tutor.APIKey = v
	}
	if v := os.Getenv("FEYNMIND_TUTOR_MODEL"); v != "" {
		cfg.Tutor.Model = v
	}
	if v := os.Getenv("FEYNMIND_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FEYNMIND_DEBUG"); v != "" {
		cfg.Logging.Debug = v
	}

	return errors.Join(errs...)
}

// splitList splits a comma-separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	refs := []struct {
		name  string
		file  string
		value *string
	}{
		{"auth.signing_secret_file", cfg.Auth.SigningSecretFile, &cfg.Auth.SigningSecret},
		{"storage.postgres.dsn_file", cfg.Storage.Postgres.DSNFile, &cfg.Storage.Postgres.DSN},
		{"documents.blob.s3.access_key_id_file", cfg.Documents.Blob.S3.AccessKeyIDFile, &cfg.Documents.Blob.S3.AccessKeyID},
		{"documents.blob.s3.secret_access_key_file", cfg.Documents.Blob.S3.SecretAccessKeyFile, &cfg.Documents.Blob.S3.SecretAccessKey},
		{"tutor.api_key_file", cfg.Tutor.APIKeyFile, &cfg.Tutor.APIKey},
	}

	for _, ref := range refs {
		if ref.file == "" || *ref.value != "" {
			continue
		}
		val, err := readSecretFile(ref.file)
		if err != nil {
			return fmt.Errorf("%s: %w", ref.name, err)
		}
		*ref.value = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
