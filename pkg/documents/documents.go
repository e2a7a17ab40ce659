// Package documents ingests study material: it extracts the text of an
// uploaded file, keeps the original in a blob store and records the
// document for its owner. Every operation is scoped to the owner carried in
// the request context.
package documents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rhuss/feynmind/pkg/api"
	"github.com/rhuss/feynmind/pkg/debug"
	"github.com/rhuss/feynmind/pkg/observability"
	"github.com/rhuss/feynmind/pkg/storage"
)

// ErrEmptyFile is returned for zero-byte uploads.
var ErrEmptyFile = errors.New("empty file")

// maxFileNameLength bounds stored file names, in runes.
const maxFileNameLength = 255

// Store persists document records. Implementations scope every call to
// storage.GetOwner(ctx) and return storage.ErrNoOwner without one.
type Store interface {
	SaveDocument(ctx context.Context, doc *api.Document) error
	GetDocumentByName(ctx context.Context, fileName string) (*api.Document, error)
	ListDocuments(ctx context.Context) ([]*api.Document, error)
}

// BlobStore keeps uploaded originals. DeleteBlob of a missing key is not
// an error.
type BlobStore interface {
	PutBlob(ctx context.Context, key, contentType string, data []byte) error
	GetBlob(ctx context.Context, key string) ([]byte, error)
	DeleteBlob(ctx context.Context, key string) error
}

// blobCleanupTimeout bounds deleting an original that lost its record.
const blobCleanupTimeout = 10 * time.Second

// Service implements document upload and retrieval.
type Service struct {
	store Store
	blobs BlobStore // nil: originals are not kept
	now   func() time.Time
}

// NewService creates a Service. blobs may be nil.
func NewService(store Store, blobs BlobStore) *Service {
	return &Service{store: store, blobs: blobs, now: time.Now}
}

// Upload extracts the text of data, stores the original (when a blob store
// is configured) and records the document for the owner in ctx.
func (s *Service) Upload(ctx context.Context, fileName, declaredType string, data []byte) (*api.Document, error) {
	owner := storage.GetOwner(ctx)
	if owner == "" {
		return nil, storage.ErrNoOwner
	}
	if len(data) == 0 {
		observability.DocumentUploadsTotal.WithLabelValues("empty").Inc()
		return nil, ErrEmptyFile
	}

	name := CleanFileName(fileName)
	contentType := ResolveContentType(declaredType, name, data)

	text, err := ExtractText(contentType, data)
	if err != nil {
		observability.DocumentUploadsTotal.WithLabelValues(uploadOutcome(err)).Inc()
		return nil, err
	}

	now := s.now().UTC()
	doc := &api.Document{
		ID:          uuid.NewString(),
		Owner:       owner,
		FileName:    name,
		ContentType: contentType,
		Content:     text,
		Size:        int64(len(data)),
		Characters:  utf8.RuneCountInString(text),
		UploadedAt:  now,
	}

	if s.blobs != nil {
		doc.BlobKey = BlobKey(owner, now, doc.ID)
		if err := s.blobs.PutBlob(ctx, doc.BlobKey, contentType, data); err != nil {
			observability.DocumentUploadsTotal.WithLabelValues("blob_error").Inc()
			return nil, fmt.Errorf("storing original: %w", err)
		}
	}

	if err := s.store.SaveDocument(ctx, doc); err != nil {
		observability.DocumentUploadsTotal.WithLabelValues("store_error").Inc()
		s.deleteOriginal(context.WithoutCancel(ctx), doc)
		return nil, fmt.Errorf("saving document: %w", err)
	}

	observability.DocumentUploadsTotal.WithLabelValues("success").Inc()
	observability.DocumentUploadBytes.Observe(float64(doc.Size))
	slog.Info("document uploaded",
		"id", doc.ID,
		"file_name", doc.FileName,
		"content_type", contentType,
		"characters", doc.Characters,
	)
	return doc, nil
}

// List returns the owner's documents, newest first.
func (s *Service) List(ctx context.Context) ([]*api.Document, error) {
	return s.store.ListDocuments(ctx)
}

// Get returns the owner's latest document named fileName, with content.
func (s *Service) Get(ctx context.Context, fileName string) (*api.Document, error) {
	doc, err := s.store.GetDocumentByName(ctx, fileName)
	if err != nil {
		return nil, err
	}
	debug.Log("documents", "document loaded", "id", doc.ID, "characters", doc.Characters)
	return doc, nil
}

// Original returns the owner's latest document named fileName together
// with the uploaded bytes. It returns storage.ErrNotFound when originals are
// not kept or the blob is gone.
func (s *Service) Original(ctx context.Context, fileName string) (*api.Document, []byte, error) {
	doc, err := s.store.GetDocumentByName(ctx, fileName)
	if err != nil {
		return nil, nil, err
	}
	if s.blobs == nil || doc.BlobKey == "" {
		return nil, nil, storage.ErrNotFound
	}
	data, err := s.blobs.GetBlob(ctx, doc.BlobKey)
	if err != nil {
		return nil, nil, err
	}
	return doc, data, nil
}

// DiscardOriginal deletes the stored original of a document whose record is
// gone, e.g. one dropped by the memory store's LRU eviction.
func (s *Service) DiscardOriginal(doc *api.Document) {
	s.deleteOriginal(context.Background(), doc)
}

func (s *Service) deleteOriginal(ctx context.Context, doc *api.Document) {
	if s.blobs == nil || doc == nil || doc.BlobKey == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, blobCleanupTimeout)
	defer cancel()
	if err := s.blobs.DeleteBlob(ctx, doc.BlobKey); err != nil {
		slog.Warn("failed to delete document original", "id", doc.ID, "error", err)
		return
	}
	debug.Log("documents", "original deleted", "id", doc.ID)
}

// BlobKey returns the object key for an original:
// documents/<owner-hash>/<yyyy>/<mm>/<dd>/<id>. The owner's email is hashed
// so it does not appear in bucket listings.
func BlobKey(owner string, t time.Time, id string) string {
	sum := sha256.Sum256([]byte(owner))
	return fmt.Sprintf("documents/%s/%04d/%02d/%02d/%s",
		hex.EncodeToString(sum[:8]), t.Year(), int(t.Month()), t.Day(), id)
}

// CleanFileName strips directories and control characters from a
// client-supplied file name.
func CleanFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" {
		return "document"
	}
	if utf8.RuneCountInString(name) > maxFileNameLength {
		name = string([]rune(name)[:maxFileNameLength])
	}
	return name
}

func uploadOutcome(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedType):
		return "unsupported"
	case errors.Is(err, ErrNoText):
		return "no_text"
	default:
		return "unreadable"
	}
}
