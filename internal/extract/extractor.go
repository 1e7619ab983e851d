// Package extract turns uploaded files into plain text. Each file type has
// its own extractor; the Selector maps a path's extension to the right one.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var ErrUnsupportedType = errors.New("extract: unsupported file type")

// Extractor pulls plain text out of one file on disk.
type Extractor interface {
	// Extract returns the file's text content.
	Extract(ctx context.Context, path string) (string, error)
	// Method names the extraction strategy, recorded as provenance.
	Method() string
}

// Selector routes a file to an extractor by extension, case-insensitively.
type Selector struct {
	byExt map[string]Extractor
}

// NewSelector builds the default routing table. The OCR extractor is the
// only one needing external wiring, so it is injected.
func NewSelector(ocr Extractor) *Selector {
	pdf := &PDFExtractor{}
	word := &WordExtractor{}
	excel := &ExcelExtractor{}
	plain := &PlainExtractor{}

	byExt := map[string]Extractor{
		".pdf":  pdf,
		".doc":  word,
		".docx": word,
		".xls":  excel,
		".xlsx": excel,
		".txt":  plain,
		".md":   plain,
		".text": plain,
	}
	if ocr != nil {
		for _, ext := range []string{".jpg", ".jpeg", ".png", ".tiff"} {
			byExt[ext] = ocr
		}
	}
	return &Selector{byExt: byExt}
}

// ForPath picks the extractor for the path's extension.
func (s *Selector) ForPath(path string) (Extractor, error) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := s.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	return e, nil
}
