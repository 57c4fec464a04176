package services

import (
	"context"
	"time"

	"github.com/nexconsult/certidao-api/internal/models"
)

// CaptchaSolver turns a base64 CAPTCHA image into its text
type CaptchaSolver interface {
	// Solve returns the answer or a *CaptchaError
	Solve(ctx context.Context, imageBase64 string) (string, error)
}

// BrowserLauncher opens isolated browser sessions
type BrowserLauncher interface {
	// Open launches a browser whose downloads land in downloadDir
	Open(ctx context.Context, downloadDir string) (BrowserSession, error)
}

// BrowserSession is one browser instance bound to one download directory.
// Selectors are XPath expressions.
type BrowserSession interface {
	// Navigate loads url and waits for the document body
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// WaitPresent waits for selector; a missed deadline is a *NavigationTimeoutError naming step
	WaitPresent(ctx context.Context, step, selector string, timeout time.Duration) error

	// Attribute reads an attribute of the first node matching selector
	Attribute(ctx context.Context, selector, name string) (string, error)

	// SendKeys types text into the node matching selector
	SendKeys(ctx context.Context, selector, text string) error

	// Click clicks the node matching selector
	Click(ctx context.Context, selector string) error

	// Close terminates the browser; safe to call more than once
	Close() error
}

// DocumentExtractor reads the full text of a downloaded document
type DocumentExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// CNDTServiceInterface issues CNDT certificates
type CNDTServiceInterface interface {
	// Generate runs the portal workflow and returns the certificate text
	Generate(ctx context.Context, req models.CndtRequest) (string, error)

	// Health returns service health status
	Health() map[string]interface{}
}

// CNDServiceInterface looks up CND certificates
type CNDServiceInterface interface {
	// Lookup returns the certificate detail lines for a 14-digit CNPJ
	Lookup(ctx context.Context, cnpj string) (*models.CndResponse, error)

	// Health returns service health status
	Health() map[string]interface{}
}

// CNDCacheStore holds successful CND lookups keyed by CNPJ
type CNDCacheStore interface {
	// Load returns the cached lookup or ErrCacheMiss
	Load(ctx context.Context, cnpj string) (*models.CndResponse, error)

	// Store caches a lookup under its CNPJ
	Store(ctx context.Context, response *models.CndResponse) error

	// Evict drops the cached lookup and reports whether one was present
	Evict(ctx context.Context, cnpj string) (bool, error)

	Stats(ctx context.Context) map[string]interface{}
	Health() map[string]interface{}
}
