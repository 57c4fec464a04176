package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/nexconsult/certidao-api/internal/config"
)

// DownloadWatcher waits for the browser to drop a finished document into a directory
type DownloadWatcher struct {
	config config.DownloadConfig
	sleep  SleepFunc
}

// NewDownloadWatcher creates a watcher using the configured suffix, interval and timeout
func NewDownloadWatcher(cfg config.DownloadConfig) *DownloadWatcher {
	if cfg.Suffix == "" {
		cfg.Suffix = ".pdf"
	}
	cfg.Suffix = strings.ToLower(cfg.Suffix)
	return &DownloadWatcher{config: cfg, sleep: sleepContext}
}

// WithSleep replaces the function used between directory checks
func (w *DownloadWatcher) WithSleep(sleep SleepFunc) *DownloadWatcher {
	w.sleep = sleep
	return w
}

// Checks is the number of directory scans made before giving up
func (w *DownloadWatcher) Checks() int {
	if w.config.Interval <= 0 {
		return 1
	}
	n := int(w.config.Timeout / w.config.Interval)
	if w.config.Timeout%w.config.Interval != 0 {
		n++
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Await scans dir once per interval and returns the first completed file with
// the expected suffix. Chrome writes in-progress downloads as *.crdownload, so
// a suffix match means the download finished.
func (w *DownloadWatcher) Await(ctx context.Context, dir string) (string, error) {
	checks := w.Checks()
	for i := 0; i < checks; i++ {
		path, err := w.find(dir)
		if err != nil {
			return "", err
		}
		if path != "" {
			return path, nil
		}
		if err := w.sleep(ctx, w.config.Interval); err != nil {
			return "", err
		}
	}
	return "", &PdfDownloadError{Dir: dir, Timeout: w.config.Timeout.String()}
}

func (w *DownloadWatcher) find(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	// ReadDir returns entries sorted by name
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), w.config.Suffix) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", nil
}
