package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/nexconsult/certidao-api/internal/config"
	"github.com/sirupsen/logrus"
)

// profileDirName is the Chrome user-data-dir created inside each download directory
const profileDirName = ".profile"

// ChromeLauncher starts one isolated headless Chrome per certificate request
type ChromeLauncher struct {
	config config.BrowserConfig
	logger *logrus.Logger
}

// NewChromeLauncher creates a launcher
func NewChromeLauncher(cfg config.BrowserConfig, logger *logrus.Logger) *ChromeLauncher {
	return &ChromeLauncher{config: cfg, logger: logger}
}

// Open creates downloadDir if needed and launches Chrome with downloads routed
// into it and the built-in PDF viewer disabled. On failure everything started
// so far is released.
func (l *ChromeLauncher) Open(ctx context.Context, downloadDir string) (BrowserSession, error) {
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}
	absDir, err := filepath.Abs(downloadDir)
	if err != nil {
		return nil, fmt.Errorf("resolve download directory: %w", err)
	}

	profileDir := filepath.Join(absDir, profileDirName)
	if err := writeChromePreferences(profileDir, absDir); err != nil {
		return nil, err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), l.allocatorOptions(profileDir)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	session := &chromeSession{
		ctx:           browserCtx,
		cancel:        func() { browserCancel(); allocCancel() },
		actionTimeout: l.config.ActionTimeout,
		logger:        l.logger,
	}

	// the first Run allocates the browser and ties its lifetime to browserCtx
	if err := chromedp.Run(browserCtx); err != nil {
		session.Close()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	startCtx, cancel := context.WithTimeout(browserCtx, l.startTimeout())
	defer cancel()

	err = chromedp.Run(startCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(absDir).
			WithEventsEnabled(true),
	)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("configure downloads: %w", err)
	}

	l.logger.WithField("download_dir", absDir).Debug("Browser session opened")
	return session, nil
}

func (l *ChromeLauncher) allocatorOptions(profileDir string) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.UserDataDir(profileDir),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-features", "TranslateUI"),
		chromedp.WindowSize(1920, 1080),
	}

	if l.config.Headless {
		opts = append(opts,
			chromedp.Flag("headless", "new"),
			chromedp.Flag("hide-scrollbars", true),
			chromedp.Flag("mute-audio", true),
		)
	}
	if l.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.config.ExecPath))
	}
	if l.config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.config.UserAgent))
	}
	return opts
}

func (l *ChromeLauncher) startTimeout() time.Duration {
	if l.config.ActionTimeout > 0 {
		return l.config.ActionTimeout
	}
	return 30 * time.Second
}

// writeChromePreferences seeds the profile so PDFs download instead of rendering inline
func writeChromePreferences(profileDir, downloadDir string) error {
	defaultDir := filepath.Join(profileDir, "Default")
	if err := os.MkdirAll(defaultDir, 0o755); err != nil {
		return fmt.Errorf("create browser profile: %w", err)
	}

	prefs := map[string]interface{}{
		"download": map[string]interface{}{
			"default_directory":   downloadDir,
			"prompt_for_download": false,
			"directory_upgrade":   true,
		},
		"plugins": map[string]interface{}{
			"always_open_pdf_externally": true,
		},
	}
	raw, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(defaultDir, "Preferences"), raw, 0o644); err != nil {
		return fmt.Errorf("write browser preferences: %w", err)
	}
	return nil
}

// chromeSession drives one Chrome tab. Selectors are XPath expressions.
type chromeSession struct {
	ctx           context.Context
	cancel        context.CancelFunc
	actionTimeout time.Duration
	logger        *logrus.Logger
	closeOnce     sync.Once
}

func (s *chromeSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	err := s.run(ctx, timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if errors.Is(err, context.DeadlineExceeded) {
		return &NavigationTimeoutError{Step: "carregamento da página", Selector: url, Err: err}
	}
	return err
}

func (s *chromeSession) WaitPresent(ctx context.Context, step, selector string, timeout time.Duration) error {
	err := s.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.BySearch))
	if errors.Is(err, context.DeadlineExceeded) {
		return &NavigationTimeoutError{Step: step, Selector: selector, Err: err}
	}
	return err
}

func (s *chromeSession) Attribute(ctx context.Context, selector, name string) (string, error) {
	var (
		value string
		ok    bool
	)
	if err := s.run(ctx, s.actionTimeout, chromedp.AttributeValue(selector, name, &value, &ok, chromedp.BySearch)); err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("attribute %q not found on %s", name, selector)
	}
	return value, nil
}

func (s *chromeSession) SendKeys(ctx context.Context, selector, text string) error {
	return s.run(ctx, s.actionTimeout, chromedp.SendKeys(selector, text, chromedp.BySearch))
}

func (s *chromeSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx, s.actionTimeout, chromedp.Click(selector, chromedp.BySearch))
}

// Close terminates the browser process. Safe to call more than once.
func (s *chromeSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = chromedp.Cancel(s.ctx)
		s.cancel()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	})
	return err
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx
func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(s.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(s.ctx)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}
