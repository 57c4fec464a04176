package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// FitzTextExtractor extracts text with MuPDF through go-fitz
type FitzTextExtractor struct{}

// ExtractText concatenates the text of every page in order
func (e *FitzTextExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer doc.Close()

	var sb strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("page %d of %s: %w", i+1, path, err)
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
