package s3store

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rhuss/feynmind/pkg/storage"
)

// fakeS3 is a minimal path-style S3 server for one bucket.
type fakeS3 struct {
	mu           sync.Mutex
	bucket       string
	objects      map[string][]byte
	contentTypes map[string]string
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{
		bucket:       bucket,
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	if bucket != f.bucket {
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodHead && key == "":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.contentTypes[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("Content-Type", f.contentTypes[key])
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		delete(f.contentTypes, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>`+code+`</Code><Message>not found</Message></Error>`)
}

func newTestStore(t *testing.T, srv *httptest.Server, bucket string) *BlobStore {
	t.Helper()
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	b, err := New(context.Background(), Config{
		Bucket:          bucket,
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test-secret",
		UsePathStyle:    true,
		HTTPClient:      srv.Client(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestNew_RequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Error("New without bucket succeeded, want error")
	}
}

func TestPutGetBlob(t *testing.T) {
	fake := newFakeS3("feynmind")
	srv := httptest.NewServer(fake)
	defer srv.Close()

	b := newTestStore(t, srv, "feynmind")
	ctx := context.Background()

	key := "documents/abc/2026/03/01/id"
	if err := b.PutBlob(ctx, key, "application/pdf", []byte("%PDF-1.4 body")); err != nil {
		t.Fatalf("PutBlob: %v", err)
	}

	fake.mu.Lock()
	stored := string(fake.objects[key])
	ct := fake.contentTypes[key]
	fake.mu.Unlock()
	if stored != "%PDF-1.4 body" {
		t.Errorf("stored object = %q", stored)
	}
	if ct != "application/pdf" {
		t.Errorf("Content-Type = %q, want application/pdf", ct)
	}

	got, err := b.GetBlob(ctx, key)
	if err != nil {
		t.Fatalf("GetBlob: %v", err)
	}
	if string(got) != "%PDF-1.4 body" {
		t.Errorf("GetBlob = %q", got)
	}
}

func TestGetBlob_NotFound(t *testing.T) {
	srv := httptest.NewServer(newFakeS3("feynmind"))
	defer srv.Close()

	b := newTestStore(t, srv, "feynmind")
	_, err := b.GetBlob(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteBlob(t *testing.T) {
	fake := newFakeS3("feynmind")
	srv := httptest.NewServer(fake)
	defer srv.Close()

	b := newTestStore(t, srv, "feynmind")
	ctx := context.Background()

	key := "documents/abc/2026/03/01/id"
	if err := b.PutBlob(ctx, key, "text/plain", []byte("notes")); err != nil {
		t.Fatalf("PutBlob: %v", err)
	}
	if err := b.DeleteBlob(ctx, key); err != nil {
		t.Fatalf("DeleteBlob: %v", err)
	}
	if _, err := b.GetBlob(ctx, key); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetBlob after delete: err = %v, want ErrNotFound", err)
	}
	if err := b.DeleteBlob(ctx, "missing"); err != nil {
		t.Errorf("DeleteBlob(missing) = %v, want nil", err)
	}
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(newFakeS3("feynmind"))
	defer srv.Close()

	if err := newTestStore(t, srv, "feynmind").HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
	if err := newTestStore(t, srv, "other").HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck on missing bucket succeeded, want error")
	}
}
