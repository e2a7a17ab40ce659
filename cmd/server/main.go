// Command server runs the Feynmind backend.
//
// Configuration is read from the file given with -config (else
// FEYNMIND_CONFIG, ./config.yaml or /etc/feynmind/config.yaml), an optional
// .env file and FEYNMIND_* environment variables:
//
//	FEYNMIND_JWT_SECRET    - HS256 signing secret, at least 32 bytes (required)
//	FEYNMIND_PORT          - Listen port (default: 8080)
//	FEYNMIND_CORS_ORIGINS  - Comma-separated browser origins (default: http://localhost:5173)
//	FEYNMIND_STORAGE       - "memory" or "postgres" (default: "memory")
//	FEYNMIND_POSTGRES_DSN  - PostgreSQL connection string
//	FEYNMIND_BLOB_STORE    - "none", "memory" or "s3" (default: "none")
//	FEYNMIND_TUTOR_URL     - Gemini-compatible backend URL; study routes answer 503 without it
//	FEYNMIND_TUTOR_API_KEY - API key for the tutor backend
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rhuss/feynmind/pkg/account"
	"github.com/rhuss/feynmind/pkg/auth"
	"github.com/rhuss/feynmind/pkg/auth/jwt"
	"github.com/rhuss/feynmind/pkg/auth/password"
	"github.com/rhuss/feynmind/pkg/config"
	"github.com/rhuss/feynmind/pkg/debug"
	"github.com/rhuss/feynmind/pkg/documents"
	"github.com/rhuss/feynmind/pkg/storage/memory"
	"github.com/rhuss/feynmind/pkg/storage/postgres"
	"github.com/rhuss/feynmind/pkg/storage/s3store"
	"github.com/rhuss/feynmind/pkg/study"
	transporthttp "github.com/rhuss/feynmind/pkg/transport/http"
	"github.com/rhuss/feynmind/pkg/tutor"
)

// store is what both the account and document services need.
type store interface {
	account.CredentialStore
	documents.Store
	HealthCheck(ctx context.Context) error
	Close() error
}

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)
	logger := slog.Default()

	ctx := context.Background()

	st, err := newStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer st.Close()

	health := []transporthttp.HealthChecker{st}

	// Originals are optional; without a blob store only extracted text is kept.
	var blobs documents.BlobStore
	switch cfg.Documents.Blob.Type {
	case "memory":
		blobs = memory.NewBlobStore()
		logger.Info("blob storage enabled", "type", "memory")
	case "s3":
		s3cfg := cfg.Documents.Blob.S3
		bs, err := s3store.New(ctx, s3store.Config{
			Bucket:          s3cfg.Bucket,
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			UsePathStyle:    s3cfg.UsePathStyle,
		})
		if err != nil {
			return fmt.Errorf("creating s3 blob store: %w", err)
		}
		blobs = bs
		health = append(health, bs)
		logger.Info("blob storage enabled", "type", "s3", "bucket", s3cfg.Bucket)
	default:
		logger.Info("blob storage disabled")
	}

	codec, err := jwt.NewCodec([]byte(cfg.Auth.SigningSecret))
	if err != nil {
		return fmt.Errorf("creating token codec: %w", err)
	}

	accounts, err := account.NewService(st, password.NewHasher(cfg.Auth.BcryptCost), codec,
		account.WithStoreTimeout(cfg.Auth.StoreTimeout))
	if err != nil {
		return fmt.Errorf("creating account service: %w", err)
	}

	docs := documents.NewService(st, blobs)
	if ms, ok := st.(*memory.Store); ok && blobs != nil {
		ms.OnEvict(docs.DiscardOriginal)
	}

	deps := transporthttp.Deps{
		Accounts:      accounts,
		Authenticator: jwt.NewBearerAuthenticator(codec),
		Documents:     docs,
		Limiter:       auth.NewLoginLimiter(cfg.Auth.LoginAttemptsPerMinute),
		Health:        health,
		Logger:        logger,
	}

	// Study routes answer 503 until a tutor backend is configured.
	if cfg.Tutor.BackendURL != "" {
		client, err := tutor.NewClient(tutor.Config{
			BaseURL: cfg.Tutor.BackendURL,
			APIKey:  cfg.Tutor.APIKey,
			Model:   cfg.Tutor.Model,
			Timeout: cfg.Tutor.Timeout,
		})
		if err != nil {
			return fmt.Errorf("creating tutor client: %w", err)
		}
		svc, err := study.NewService(client, docs, cfg.Tutor.MaxInputChars)
		if err != nil {
			return fmt.Errorf("creating study service: %w", err)
		}
		deps.Study = svc
		logger.Info("tutor enabled", "model", client.Model())
	} else {
		logger.Warn("tutor backend not configured, study routes disabled")
	}

	adapterCfg := transporthttp.DefaultConfig()
	adapterCfg.MaxBodySize = cfg.Server.MaxBodySize
	adapterCfg.MaxUploadSize = cfg.Documents.MaxUploadSize
	adapterCfg.CORS = auth.DefaultCORSConfig(cfg.CORS.AllowedOrigins)
	adapterCfg.MetricsPath = ""
	if cfg.Observability.Metrics.Enabled {
		adapterCfg.MetricsPath = cfg.Observability.Metrics.Path
	}

	adapter, err := transporthttp.NewAdapter(adapterCfg, deps)
	if err != nil {
		return fmt.Errorf("creating HTTP adapter: %w", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := transporthttp.NewServer(adapter.Handler(),
		transporthttp.WithAddr(addr),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
	)

	logger.Info("server starting",
		"addr", addr,
		"storage", cfg.Storage.Type,
		"origins", cfg.CORS.AllowedOrigins,
	)
	return srv.ListenAndServe()
}

func newStore(ctx context.Context, cfg config.StorageConfig) (store, error) {
	switch cfg.Type {
	case "postgres":
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		pg, err := postgres.New(connectCtx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres", "max_conns", cfg.Postgres.MaxConns)
		return pg, nil
	default:
		slog.Info("storage enabled", "type", "memory", "max_documents", cfg.MaxDocuments)
		return memory.New(cfg.MaxDocuments), nil
	}
}
