// Package config provides unified configuration for the feynmind server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. .env file in the working directory (never overrides the real environment)
//  3. YAML config file (discovered or explicitly specified)
//  4. Environment variable overrides (FEYNMIND_ prefix)
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import "time"

// Config holds all configuration for the feynmind server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	CORS          CORSConfig          `yaml:"cors"`
	Storage       StorageConfig       `yaml:"storage"`
	Documents     DocumentsConfig     `yaml:"documents"`
	Tutor         TutorConfig         `yaml:"tutor"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 120s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 15s
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 1 MiB
}

// AuthConfig holds token signing and credential settings.
type AuthConfig struct {
	SigningSecret          string        `yaml:"signing_secret"`            // required, >= 32 bytes
	SigningSecretFile      string        `yaml:"signing_secret_file"`       // _file variant for signing_secret
	BcryptCost             int           `yaml:"bcrypt_cost"`               // default: 10, 0 selects the bcrypt default
	StoreTimeout           time.Duration `yaml:"store_timeout"`             // default: 5s
	LoginAttemptsPerMinute int           `yaml:"login_attempts_per_minute"` // default: 10, 0 disables
}

// CORSConfig holds the cross-origin allow-list.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"` // default: [http://localhost:5173]
}

// StorageConfig holds identity and document storage settings.
type StorageConfig struct {
	Type         string         `yaml:"type"`          // "memory" or "postgres", default: "memory"
	MaxDocuments int            `yaml:"max_documents"` // for memory store, default: 10000
	Postgres     PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// DocumentsConfig holds upload settings.
type DocumentsConfig struct {
	MaxUploadSize int64      `yaml:"max_upload_size"` // default: 20 MiB
	Blob          BlobConfig `yaml:"blob"`
}

// BlobConfig selects where uploaded originals are kept.
type BlobConfig struct {
	Type string   `yaml:"type"` // "none", "memory" or "s3", default: "none"
	S3   S3Config `yaml:"s3"`
}

// S3Config holds S3-compatible bucket settings.
type S3Config struct {
	Bucket              string `yaml:"bucket"`
	Region              string `yaml:"region"`
	Endpoint            string `yaml:"endpoint"`
	AccessKeyID         string `yaml:"access_key_id"`
	AccessKeyIDFile     string `yaml:"access_key_id_file"`
	SecretAccessKey     string `yaml:"secret_access_key"`
	SecretAccessKeyFile string `yaml:"secret_access_key_file"`
	UsePathStyle        bool   `yaml:"use_path_style"`
}

// TutorConfig holds the generative backend settings. An empty BackendURL
// disables the study routes.
type TutorConfig struct {
	BackendURL    string        `yaml:"backend_url"`
	APIKey        string        `yaml:"api_key"`
	APIKeyFile    string        `yaml:"api_key_file"` // _file variant for api_key
	Model         string        `yaml:"model"`        // default: gemini-1.5-flash
	Timeout       time.Duration `yaml:"timeout"`      // default: 60s
	MaxInputChars int           `yaml:"max_input_chars"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // ERROR, WARN, INFO, DEBUG, TRACE; default: INFO
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxBodySize:     1 << 20,
		},
		Auth: AuthConfig{
			BcryptCost:             10,
			StoreTimeout:           5 * time.Second,
			LoginAttemptsPerMinute: 10,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Storage: StorageConfig{
			Type:         "memory",
			MaxDocuments: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Documents: DocumentsConfig{
			MaxUploadSize: 20 << 20,
			Blob:          BlobConfig{Type: "none"},
		},
		Tutor: TutorConfig{
			Model:         "gemini-1.5-flash",
			Timeout:       60 * time.Second,
			MaxInputChars: 5000,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}
