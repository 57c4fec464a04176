package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nexconsult/certidao-api/internal/config"
	"github.com/nexconsult/certidao-api/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF renders a minimal PDF with one Helvetica text line per page
func buildPDF(pages ...string) []byte {
	var objects []string
	pageCount := len(pages)
	fontID := 3 + 2*pageCount

	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 3+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pageCount),
	)
	for i, text := range pages {
		content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontID, 4+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestPDFTextExtractorConcatenatesPagesInOrder(t *testing.T) {
	path := writeFile(t, "certidao.pdf", buildPDF("PAGINA UM", "PAGINA DOIS"))

	text, err := (&PDFTextExtractor{}).ExtractText(context.Background(), path)
	require.NoError(t, err)

	first := bytes.Index([]byte(text), []byte("PAGINA UM"))
	second := bytes.Index([]byte(text), []byte("PAGINA DOIS"))
	require.GreaterOrEqual(t, first, 0, text)
	require.GreaterOrEqual(t, second, 0, text)
	assert.Less(t, first, second)
}

func TestPDFTextExtractorRejectsGarbage(t *testing.T) {
	path := writeFile(t, "broken.pdf", []byte("this is not a pdf"))

	_, err := (&PDFTextExtractor{}).ExtractText(context.Background(), path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCndt)
}

func TestPDFTextExtractorMissingFile(t *testing.T) {
	_, err := (&PDFTextExtractor{}).ExtractText(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestValidatingExtractorRejectsGarbageBeforeExtraction(t *testing.T) {
	path := writeFile(t, "broken.pdf", []byte("%PDF-1.4\nnot really\n"))
	next := &countingExtractor{}

	_, err := NewValidatingExtractor(next, logger.Discard()).ExtractText(context.Background(), path)

	require.Error(t, err)
	assert.Zero(t, next.calls)
}

func TestFitzTextExtractorConcatenatesPagesInOrder(t *testing.T) {
	path := writeFile(t, "certidao.pdf", buildPDF("PAGINA UM", "PAGINA DOIS", "PAGINA TRES"))

	text, err := (&FitzTextExtractor{}).ExtractText(context.Background(), path)
	require.NoError(t, err)

	first := strings.Index(text, "PAGINA UM")
	second := strings.Index(text, "PAGINA DOIS")
	third := strings.Index(text, "PAGINA TRES")
	require.GreaterOrEqual(t, first, 0, text)
	require.GreaterOrEqual(t, second, 0, text)
	require.GreaterOrEqual(t, third, 0, text)
	assert.Less(t, first, second)
	assert.Less(t, second, third)
}

func TestFitzTextExtractorRejectsGarbage(t *testing.T) {
	path := writeFile(t, "broken.pdf", []byte("this is not a pdf"))

	_, err := (&FitzTextExtractor{}).ExtractText(context.Background(), path)
	assert.Error(t, err)
}

func TestValidatingExtractorPassesValidDocumentThrough(t *testing.T) {
	path := writeFile(t, "certidao.pdf", buildPDF("CERTIDAO NEGATIVA", "PAGINA DOIS"))
	next := &countingExtractor{text: "extracted"}

	text, err := NewValidatingExtractor(next, logger.Discard()).ExtractText(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "extracted", text)
	assert.Equal(t, []string{path}, next.paths)
}

func TestValidatingExtractorWithPDFBackend(t *testing.T) {
	path := writeFile(t, "certidao.pdf", buildPDF("CERTIDAO NEGATIVA"))
	extractor := NewDocumentExtractor(config.ExtractorConfig{Backend: "pdf", Validate: true}, logger.Discard())

	text, err := extractor.ExtractText(context.Background(), path)

	require.NoError(t, err)
	assert.Contains(t, text, "CERTIDAO NEGATIVA")
}

func TestNewDocumentExtractorSelectsBackend(t *testing.T) {
	assert.IsType(t, &PDFTextExtractor{}, NewDocumentExtractor(config.ExtractorConfig{Backend: "pdf"}, logger.Discard()))
	assert.IsType(t, &FitzTextExtractor{}, NewDocumentExtractor(config.ExtractorConfig{Backend: "fitz"}, logger.Discard()))
	assert.IsType(t, &ValidatingExtractor{}, NewDocumentExtractor(config.ExtractorConfig{Backend: "pdf", Validate: true}, logger.Discard()))
}

type countingExtractor struct {
	calls int
	text  string
	err   error
	paths []string
}

func (c *countingExtractor) ExtractText(_ context.Context, path string) (string, error) {
	c.calls++
	c.paths = append(c.paths, path)
	return c.text, c.err
}
