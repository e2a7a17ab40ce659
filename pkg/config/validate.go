package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinSigningSecretLength is the minimum HS256 key size in bytes.
const MinSigningSecretLength = 32

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// auth.signing_secret is required and long enough for HS256.
	switch n := len(c.Auth.SigningSecret); {
	case n == 0:
		errs = append(errs, fmt.Errorf("auth.signing_secret (or auth.signing_secret_file, FEYNMIND_JWT_SECRET) is required"))
	case n < MinSigningSecretLength:
		errs = append(errs, fmt.Errorf("auth.signing_secret must be at least %d bytes, got %d", MinSigningSecretLength, n))
	}

	if c.Auth.BcryptCost != 0 && (c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost) {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, c.Auth.BcryptCost))
	}
	if c.Auth.LoginAttemptsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("auth.login_attempts_per_minute must be >= 0, got %d", c.Auth.LoginAttemptsPerMinute))
	}

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}

	for _, o := range c.CORS.AllowedOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			errs = append(errs, fmt.Errorf("cors.allowed_origins: %q must start with http:// or https://", o))
		}
	}

	// storage.type must be a known value.
	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	// If storage.type is "postgres", DSN or DSNFile must be set.
	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	switch c.Documents.Blob.Type {
	case "none", "memory", "":
		// valid
	case "s3":
		if c.Documents.Blob.S3.Bucket == "" {
			errs = append(errs, fmt.Errorf("documents.blob.s3.bucket is required when documents.blob.type is \"s3\""))
		}
	default:
		errs = append(errs, fmt.Errorf("documents.blob.type must be \"none\", \"memory\", or \"s3\", got %q", c.Documents.Blob.Type))
	}
	if c.Documents.MaxUploadSize <= 0 {
		errs = append(errs, fmt.Errorf("documents.max_upload_size must be > 0, got %d", c.Documents.MaxUploadSize))
	}

	if c.Tutor.MaxInputChars < 0 {
		errs = append(errs, fmt.Errorf("tutor.max_input_chars must be >= 0, got %d", c.Tutor.MaxInputChars))
	}

	switch c.Logging.Format {
	case "text", "json", "":
		// valid
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
