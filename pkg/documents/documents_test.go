package documents

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/feynmind/pkg/api"
	"github.com/rhuss/feynmind/pkg/storage"
	"github.com/rhuss/feynmind/pkg/storage/memory"
)

// failingBlobs rejects every upload.
type failingBlobs struct{}

func (failingBlobs) PutBlob(context.Context, string, string, []byte) error {
	return errors.New("bucket unavailable")
}

func (failingBlobs) GetBlob(context.Context, string) ([]byte, error) {
	return nil, errors.New("bucket unavailable")
}

func (failingBlobs) DeleteBlob(context.Context, string) error {
	return errors.New("bucket unavailable")
}

// trackingBlobs records the keys written and deleted.
type trackingBlobs struct {
	*memory.BlobStore
	puts, deletes []string
}

func (b *trackingBlobs) PutBlob(ctx context.Context, key, contentType string, data []byte) error {
	b.puts = append(b.puts, key)
	return b.BlobStore.PutBlob(ctx, key, contentType, data)
}

func (b *trackingBlobs) DeleteBlob(ctx context.Context, key string) error {
	b.deletes = append(b.deletes, key)
	return b.BlobStore.DeleteBlob(ctx, key)
}

// failingStore refuses to save documents.
type failingStore struct {
	*memory.Store
}

func (failingStore) SaveDocument(context.Context, *api.Document) error {
	return errors.New("database unavailable")
}

func newTestService(blobs BlobStore) (*Service, *memory.Store) {
	store := memory.New(0)
	svc := NewService(store, blobs)
	svc.now = func() time.Time { return time.Date(2026, 5, 7, 14, 0, 0, 0, time.UTC) }
	return svc, store
}

func ownerCtx(owner string) context.Context {
	return storage.SetOwner(context.Background(), owner)
}

func TestUpload_TextDocument(t *testing.T) {
	blobs := memory.NewBlobStore()
	svc, _ := newTestService(blobs)
	ctx := ownerCtx("a@x.io")

	doc, err := svc.Upload(ctx, "chapter1.txt", "text/plain", []byte("Entropy always increases."))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.ID == "" || doc.Owner != "a@x.io" || doc.FileName != "chapter1.txt" {
		t.Errorf("doc = %+v", doc)
	}
	if doc.Characters != len("Entropy always increases.") {
		t.Errorf("Characters = %d", doc.Characters)
	}
	if !strings.HasPrefix(doc.BlobKey, "documents/") || !strings.HasSuffix(doc.BlobKey, "/2026/05/07/"+doc.ID) {
		t.Errorf("BlobKey = %q", doc.BlobKey)
	}

	stored, err := blobs.GetBlob(ctx, doc.BlobKey)
	if err != nil || string(stored) != "Entropy always increases." {
		t.Errorf("blob = %q, %v", stored, err)
	}

	got, err := svc.Get(ctx, "chapter1.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != "Entropy always increases." {
		t.Errorf("Content = %q", got.Content)
	}
}

func TestUpload_PDFDocument(t *testing.T) {
	svc, _ := newTestService(nil)

	doc, err := svc.Upload(ownerCtx("a@x.io"), "bio.pdf", "application/pdf", buildPDF("Mitochondria"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.ContentType != ContentTypePDF {
		t.Errorf("ContentType = %q", doc.ContentType)
	}
	if doc.BlobKey != "" {
		t.Errorf("BlobKey = %q, want empty without blob store", doc.BlobKey)
	}
	if !strings.Contains(doc.Content, "Mitochondria") {
		t.Errorf("Content = %q", doc.Content)
	}
}

func TestUpload_CharactersCountRunes(t *testing.T) {
	svc, _ := newTestService(nil)
	doc, err := svc.Upload(ownerCtx("a@x.io"), "u.txt", "text/plain", []byte("äöü"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.Characters != 3 {
		t.Errorf("Characters = %d, want 3", doc.Characters)
	}
}

func TestUpload_Errors(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := ownerCtx("a@x.io")

	if _, err := svc.Upload(context.Background(), "a.txt", "text/plain", []byte("x")); !errors.Is(err, storage.ErrNoOwner) {
		t.Errorf("no owner: err = %v, want ErrNoOwner", err)
	}
	if _, err := svc.Upload(ctx, "a.txt", "text/plain", nil); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("empty: err = %v, want ErrEmptyFile", err)
	}
	if _, err := svc.Upload(ctx, "a.png", "image/png", []byte("\x89PNG\r\n")); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("png: err = %v, want ErrUnsupportedType", err)
	}
	if _, err := svc.Upload(ctx, "a.txt", "text/plain", []byte("  ")); !errors.Is(err, ErrNoText) {
		t.Errorf("blank: err = %v, want ErrNoText", err)
	}
}

func TestUpload_BlobFailureAbortsUpload(t *testing.T) {
	svc, store := newTestService(failingBlobs{})
	ctx := ownerCtx("a@x.io")

	if _, err := svc.Upload(ctx, "a.txt", "text/plain", []byte("text")); err == nil {
		t.Fatal("Upload succeeded with failing blob store")
	}
	list, _ := store.ListDocuments(ctx)
	if len(list) != 0 {
		t.Errorf("documents = %d, want none recorded", len(list))
	}
}

func TestUpload_FailedSaveDeletesOriginal(t *testing.T) {
	blobs := &trackingBlobs{BlobStore: memory.NewBlobStore()}
	svc := NewService(failingStore{memory.New(0)}, blobs)
	ctx := ownerCtx("a@x.io")

	if _, err := svc.Upload(ctx, "notes.txt", "text/plain", []byte("Energy is conserved.")); err == nil {
		t.Fatal("Upload succeeded, want store error")
	}
	if len(blobs.puts) != 1 {
		t.Fatalf("puts = %v, want one", blobs.puts)
	}
	if len(blobs.deletes) != 1 || blobs.deletes[0] != blobs.puts[0] {
		t.Errorf("deletes = %v, want %v", blobs.deletes, blobs.puts)
	}
	if _, err := blobs.GetBlob(ctx, blobs.puts[0]); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("orphaned original still stored, err = %v", err)
	}
}

func TestEvictionDiscardsOriginal(t *testing.T) {
	blobs := &trackingBlobs{BlobStore: memory.NewBlobStore()}
	store := memory.New(1)
	svc := NewService(store, blobs)
	store.OnEvict(svc.DiscardOriginal)
	ctx := ownerCtx("a@x.io")

	first, err := svc.Upload(ctx, "one.txt", "text/plain", []byte("first"))
	if err != nil {
		t.Fatalf("Upload one: %v", err)
	}
	second, err := svc.Upload(ctx, "two.txt", "text/plain", []byte("second"))
	if err != nil {
		t.Fatalf("Upload two: %v", err)
	}

	if _, err := blobs.GetBlob(ctx, first.BlobKey); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("evicted document's original still stored, err = %v", err)
	}
	if _, err := blobs.GetBlob(ctx, second.BlobKey); err != nil {
		t.Errorf("current original missing: %v", err)
	}
}

func TestDiscardOriginal_WithoutBlobs(t *testing.T) {
	svc, _ := newTestService(nil)
	// Nothing to delete; must not panic.
	svc.DiscardOriginal(&api.Document{ID: "d1", BlobKey: "documents/k"})
	svc.DiscardOriginal(nil)
}

func TestList_ScopedToOwner(t *testing.T) {
	svc, _ := newTestService(nil)

	_, _ = svc.Upload(ownerCtx("alice@x.io"), "a.txt", "text/plain", []byte("alice"))
	_, _ = svc.Upload(ownerCtx("bob@x.io"), "b.txt", "text/plain", []byte("bob"))

	list, err := svc.List(ownerCtx("alice@x.io"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].FileName != "a.txt" {
		t.Errorf("alice sees %v", list)
	}

	if _, err := svc.Get(ownerCtx("bob@x.io"), "a.txt"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("bob reading alice's file: err = %v, want ErrNotFound", err)
	}
}

func TestOriginal(t *testing.T) {
	svc, _ := newTestService(memory.NewBlobStore())
	ctx := ownerCtx("a@x.io")

	if _, err := svc.Upload(ctx, "n.txt", "text/plain", []byte("original bytes")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	doc, data, err := svc.Original(ctx, "n.txt")
	if err != nil {
		t.Fatalf("Original: %v", err)
	}
	if string(data) != "original bytes" || doc.ContentType != "text/plain" {
		t.Errorf("Original = %q (%s)", data, doc.ContentType)
	}

	noBlobs, _ := newTestService(nil)
	_, _ = noBlobs.Upload(ctx, "n.txt", "text/plain", []byte("x"))
	if _, _, err := noBlobs.Original(ctx, "n.txt"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("without blob store: err = %v, want ErrNotFound", err)
	}
}

func TestBlobKey(t *testing.T) {
	at := time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)
	key := BlobKey("a@x.io", at, "id-1")

	if !regexp.MustCompile(`^documents/[0-9a-f]{16}/2026/01/09/id-1$`).MatchString(key) {
		t.Errorf("BlobKey = %q", key)
	}
	if strings.Contains(key, "a@x.io") {
		t.Error("BlobKey leaks the owner's email")
	}
	if BlobKey("a@x.io", at, "id-1") != key {
		t.Error("BlobKey is not deterministic")
	}
	if BlobKey("b@x.io", at, "id-1") == key {
		t.Error("different owners share a key prefix")
	}
}

func TestCleanFileName(t *testing.T) {
	cases := map[string]string{
		"notes.pdf":               "notes.pdf",
		"../../etc/passwd":        "passwd",
		`C:\Users\me\lecture.pdf`: "lecture.pdf",
		"  spaced.txt  ":          "spaced.txt",
		"bad\x00name\n.txt":       "badname.txt",
		"":                        "document",
		"/":                       "document",
	}
	for in, want := range cases {
		if got := CleanFileName(in); got != want {
			t.Errorf("CleanFileName(%q) = %q, want %q", in, got, want)
		}
	}

	long := strings.Repeat("ä", 300) + ".pdf"
	if got := CleanFileName(long); len([]rune(got)) != 255 {
		t.Errorf("long name rune length = %d, want 255", len([]rune(got)))
	}
}
