package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nexconsult/certidao-api/internal/config"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"
)

// NewDocumentExtractor builds the configured text backend, optionally behind
// pdfcpu structural validation.
func NewDocumentExtractor(cfg config.ExtractorConfig, logger *logrus.Logger) DocumentExtractor {
	var backend DocumentExtractor
	switch cfg.Backend {
	case "fitz":
		backend = &FitzTextExtractor{}
	default:
		backend = &PDFTextExtractor{}
	}

	if !cfg.Validate {
		return backend
	}
	return NewValidatingExtractor(backend, logger)
}

// PDFTextExtractor extracts text with the pure-Go ledongthuc/pdf reader
type PDFTextExtractor struct{}

// ExtractText concatenates the plain text of every page in order. Any page
// failure fails the whole document.
func (e *PDFTextExtractor) ExtractText(ctx context.Context, path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parse %s: %v", path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var sb strings.Builder
	fonts := make(map[string]*pdf.Font)
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := page.Font(name)
				fonts[name] = &font
			}
		}

		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("page %d of %s: %w", i, path, err)
		}
		sb.WriteString(pageText)
	}

	return sb.String(), nil
}

// ValidatingExtractor checks the document with pdfcpu before delegating
type ValidatingExtractor struct {
	next   DocumentExtractor
	conf   *model.Configuration
	logger *logrus.Logger
}

// NewValidatingExtractor wraps next with relaxed pdfcpu validation
func NewValidatingExtractor(next DocumentExtractor, logger *logrus.Logger) *ValidatingExtractor {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &ValidatingExtractor{next: next, conf: conf, logger: logger}
}

// ExtractText rejects structurally broken or empty documents, then extracts
func (e *ValidatingExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	if err := api.ValidateFile(path, e.conf); err != nil {
		return "", fmt.Errorf("invalid PDF %s: %w", path, err)
	}

	pages, err := api.PageCountFile(path)
	if err != nil {
		return "", fmt.Errorf("count pages of %s: %w", path, err)
	}
	if pages == 0 {
		return "", fmt.Errorf("PDF %s has no pages", path)
	}

	e.logger.WithFields(logrus.Fields{
		"path":  path,
		"pages": pages,
	}).Debug("PDF validated")

	return e.next.ExtractText(ctx, path)
}
