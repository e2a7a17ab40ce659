// Package postgres provides a PostgreSQL implementation of the credential
// and document stores. It uses pgx/v5 for connection pooling and goose for
// embedded schema migrations. Email uniqueness is enforced by the primary
// key, so a lost registration race surfaces as storage.ErrConflict.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/feynmind/pkg/api"
	"github.com/rhuss/feynmind/pkg/storage"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

// Store is a PostgreSQL-backed credential and document store.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// FindByEmail returns the identity registered under email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*api.Identity, error) {
	var id api.Identity
	err := s.pool.QueryRow(ctx, `
		SELECT email, display_name, password_hash, created_at
		FROM identities
		WHERE email = $1
	`, email).Scan(&id.Email, &id.DisplayName, &id.PasswordHash, &id.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying identity: %w", err)
	}
	return &id, nil
}

// ExistsByEmail reports whether email is registered.
func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM identities WHERE email = $1)",
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking identity: %w", err)
	}
	return exists, nil
}

// SaveIdentity inserts a new identity. A taken email yields storage.ErrConflict.
func (s *Store) SaveIdentity(ctx context.Context, id *api.Identity) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO identities (email, display_name, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, id.Email, id.DisplayName, id.PasswordHash, id.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting identity: %w", err)
	}
	return nil
}

// SaveDocument persists a document for the owner in ctx.
func (s *Store) SaveDocument(ctx context.Context, doc *api.Document) error {
	owner := storage.GetOwner(ctx)
	if owner == "" {
		return storage.ErrNoOwner
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (
			id, owner, file_name, content_type, content,
			blob_key, size, characters, uploaded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		doc.ID, owner, doc.FileName, doc.ContentType, doc.Content,
		doc.BlobKey, doc.Size, doc.Characters, doc.UploadedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// GetDocumentByName returns the owner's most recently uploaded document
// with the given file name, including its content.
func (s *Store) GetDocumentByName(ctx context.Context, fileName string) (*api.Document, error) {
	owner := storage.GetOwner(ctx)
	if owner == "" {
		return nil, storage.ErrNoOwner
	}

	var doc api.Document
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner, file_name, content_type, content,
		       blob_key, size, characters, uploaded_at
		FROM documents
		WHERE owner = $1 AND file_name = $2
		ORDER BY uploaded_at DESC, id DESC
		LIMIT 1
	`, owner, fileName).Scan(
		&doc.ID, &doc.Owner, &doc.FileName, &doc.ContentType, &doc.Content,
		&doc.BlobKey, &doc.Size, &doc.Characters, &doc.UploadedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}
	return &doc, nil
}

// ListDocuments returns the owner's documents, newest first, without content.
func (s *Store) ListDocuments(ctx context.Context) ([]*api.Document, error) {
	owner := storage.GetOwner(ctx)
	if owner == "" {
		return nil, storage.ErrNoOwner
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, owner, file_name, content_type,
		       blob_key, size, characters, uploaded_at
		FROM documents
		WHERE owner = $1
		ORDER BY uploaded_at DESC, id DESC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := []*api.Document{}
	for rows.Next() {
		var doc api.Document
		if err := rows.Scan(
			&doc.ID, &doc.Owner, &doc.FileName, &doc.ContentType,
			&doc.BlobKey, &doc.Size, &doc.Characters, &doc.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation.
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
