package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelector_ForPath(t *testing.T) {
	sel := NewSelector(NewOCRClient("http://ocr.local"))

	tests := []struct {
		path   string
		method string
	}{
		{"report.pdf", "pdf"},
		{"REPORT.PDF", "pdf"},
		{"notes.docx", "word"},
		{"legacy.doc", "word"},
		{"sheet.xlsx", "excel"},
		{"sheet.xls", "excel"},
		{"scan.jpg", "ocr"},
		{"scan.JPEG", "ocr"},
		{"scan.png", "ocr"},
		{"scan.tiff", "ocr"},
		{"readme.md", "text"},
		{"plain.txt", "text"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			e, err := sel.ForPath(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.method, e.Method())
		})
	}

	t.Run("Unsupported Extension", func(t *testing.T) {
		_, err := sel.ForPath("video.mp4")
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("No Extension", func(t *testing.T) {
		_, err := sel.ForPath("Makefile")
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})
}

func TestPlainExtractor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	got, err := (&PlainExtractor{}).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)

	_, err = (&PlainExtractor{}).Extract(context.Background(), filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestOCRClient(t *testing.T) {
	t.Run("Returns Recognized Text", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "POST", r.Method)
			assert.Equal(t, "/ocr", r.URL.Path)
			require.NoError(t, r.ParseMultipartForm(1<<20))
			_, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			assert.Equal(t, "scan.png", hdr.Filename)
			w.Write([]byte(`{"text":"recognized text"}`))
		}))
		defer srv.Close()

		dir := t.TempDir()
		path := filepath.Join(dir, "scan.png")
		require.NoError(t, os.WriteFile(path, []byte("fake image bytes"), 0o644))

		got, err := NewOCRClient(srv.URL).Extract(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "recognized text", got)
	})

	t.Run("Service Error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		dir := t.TempDir()
		path := filepath.Join(dir, "scan.png")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

		_, err := NewOCRClient(srv.URL).Extract(context.Background(), path)
		assert.ErrorContains(t, err, "ocr service error")
	})
}
