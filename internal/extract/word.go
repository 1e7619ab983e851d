package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// WordExtractor reads docx documents paragraph by paragraph, tables
// included. Legacy .doc files are not a zip container and fail at parse.
type WordExtractor struct{}

func (e *WordExtractor) Method() string { return "word" }

func (e *WordExtractor) Extract(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}

	var b strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			b.WriteString(it.String())
			b.WriteString("\n")
		case *docx.Table:
			b.WriteString(it.String())
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}
