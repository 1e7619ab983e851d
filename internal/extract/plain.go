package extract

import (
	"context"
	"os"
)

// PlainExtractor reads text files as-is.
type PlainExtractor struct{}

func (e *PlainExtractor) Method() string { return "text" }

func (e *PlainExtractor) Extract(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
