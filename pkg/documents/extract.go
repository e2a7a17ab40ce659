package documents

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Content types the extractor understands.
const (
	ContentTypePDF   = "application/pdf"
	ContentTypeText  = "text/plain"
	ContentTypeMD    = "text/markdown"
	contentTypeOctet = "application/octet-stream"
)

var (
	// ErrUnsupportedType is returned for formats without an extractor.
	ErrUnsupportedType = errors.New("unsupported document type")

	// ErrNoText is returned when a document yields no text, for example a
	// scanned PDF without a text layer.
	ErrNoText = errors.New("no text found in document")

	// ErrUnreadable is returned when a document of a supported type cannot
	// be parsed.
	ErrUnreadable = errors.New("document could not be read")
)

// ResolveContentType decides the effective media type of an upload. A
// declared type is trusted unless it is missing or generic, in which case
// the file extension and then the content itself are consulted.
func ResolveContentType(declared, fileName string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != contentTypeOctet {
		return mt
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return ContentTypePDF
	case ".txt", ".text":
		return ContentTypeText
	case ".md", ".markdown":
		return ContentTypeMD
	}

	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}

// ExtractText returns the text of a document of the given media type,
// trimmed of surrounding whitespace.
func ExtractText(contentType string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch {
	case contentType == ContentTypePDF:
		text, err = extractPDF(data)
	case strings.HasPrefix(contentType, "text/"):
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: text is not valid UTF-8", ErrUnsupportedType)
		}
		text = string(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// extractPDF reads the plain text layer of a PDF. The parser panics on some
// malformed inputs, so panics are converted to errors.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: PDF parser: %v", ErrUnreadable, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: extracting text: %v", ErrUnreadable, err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("%w: reading text: %v", ErrUnreadable, err)
	}
	return string(b), nil
}
