package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nexconsult/certidao-api/internal/config"
	"github.com/nexconsult/certidao-api/internal/models"
	"github.com/sirupsen/logrus"
)

// TST portal form contract
const (
	captchaImageXPath  = `//img[@id='idImgBase64' and contains(@src,'base64')]`
	cnpjFieldXPath     = `//*[@id='gerarCertidaoForm:cpfCnpj']`
	captchaAnswerXPath = `//*[@id='idCampoResposta']`
	submitButtonXPath  = `//*[@id='gerarCertidaoForm:btnEmitirCertidao']`
)

// WorkflowState is the position of one CNDT run in its lifecycle
type WorkflowState int

const (
	StateInit WorkflowState = iota
	StateDirectoryCreated
	StateSessionOpen
	StateNavigated
	StateCaptchaSolved
	StateFormSubmitted
	StateDownloadFound
	StateDocumentRenamed
	StateTextExtracted
	StateDone
	StateFailed
)

var workflowStateNames = [...]string{
	"init",
	"directory_created",
	"session_open",
	"navigated",
	"captcha_solved",
	"form_submitted",
	"download_found",
	"document_renamed",
	"text_extracted",
	"done",
	"failed",
}

func (s WorkflowState) String() string {
	if s < 0 || int(s) >= len(workflowStateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return workflowStateNames[s]
}

// CNDTDependencies are the collaborators a CNDTService drives
type CNDTDependencies struct {
	Gate      *ConcurrencyGate
	Launcher  BrowserLauncher
	Solver    CaptchaSolver
	Watcher   *DownloadWatcher
	Extractor DocumentExtractor
	Metrics   *Metrics
}

// CNDTService issues CNDT certificates through the TST portal
type CNDTService struct {
	config       config.CNDTConfig
	downloadRoot string
	deps         CNDTDependencies
	logger       *logrus.Logger

	runs     atomic.Int64
	failures atomic.Int64
}

// NewCNDTService creates the service. Working directories are created under
// downloadRoot, or the system temp directory when it is empty.
func NewCNDTService(cfg config.CNDTConfig, downloadRoot string, deps CNDTDependencies, logger *logrus.Logger) *CNDTService {
	if deps.Gate == nil {
		deps.Gate = NewConcurrencyGate(cfg.MaxConcurrent)
	}
	return &CNDTService{
		config:       cfg,
		downloadRoot: downloadRoot,
		deps:         deps,
		logger:       logger,
	}
}

type workflowResult struct {
	text string
	err  error
}

// Generate waits for a gate slot and runs the workflow on its own goroutine.
// The workflow is never cancelled once started: if ctx ends first Generate
// returns ctx.Err() while the run still finishes, cleans up and frees its slot.
func (s *CNDTService) Generate(ctx context.Context, req models.CndtRequest) (string, error) {
	log := s.logger.WithFields(logrus.Fields{
		"request_id": RequestIDFrom(ctx),
		"cnpj":       req.CNPJ,
		"file_id":    req.FileID,
	})

	if err := s.deps.Gate.Acquire(ctx); err != nil {
		log.WithError(err).Warn("Gave up waiting for a CNDT slot")
		return "", err
	}
	s.deps.Metrics.SetGate(s.deps.Gate.Stats())

	done := make(chan workflowResult, 1)
	go func() {
		defer func() {
			s.deps.Gate.Release()
			s.deps.Metrics.SetGate(s.deps.Gate.Stats())
		}()
		text, err := s.run(context.WithoutCancel(ctx), req, log)
		done <- workflowResult{text: text, err: err}
	}()

	select {
	case res := <-done:
		return res.text, res.err
	case <-ctx.Done():
		log.Warn("Caller left before the CNDT workflow finished")
		return "", ctx.Err()
	}
}

func (s *CNDTService) run(ctx context.Context, req models.CndtRequest, log *logrus.Entry) (text string, err error) {
	start := time.Now()
	state := StateInit
	s.runs.Add(1)

	// runs after cleanup
	defer func() {
		final := StateDone
		if err != nil {
			final = StateFailed
			s.failures.Add(1)
		}
		entry := log.WithFields(logrus.Fields{
			"stage":    state.String(),
			"state":    final.String(),
			"duration": time.Since(start),
		})
		if err != nil {
			entry.WithError(err).Error("CNDT workflow failed")
		} else {
			entry.Info("CNDT workflow finished")
		}
		s.deps.Metrics.ObserveWorkflow(workflowOutcome(err), time.Since(start))
	}()

	workDir, err := s.createWorkDir()
	if err != nil {
		return "", err
	}
	state = StateDirectoryCreated
	log = log.WithField("work_dir", workDir)

	var session BrowserSession
	defer s.cleanup(log, &session, workDir)

	session, err = s.deps.Launcher.Open(ctx, workDir)
	if err != nil {
		return "", fmt.Errorf("abrir navegador: %w", err)
	}
	state = StateSessionOpen

	if err = session.Navigate(ctx, s.config.PortalURL, s.config.PageTimeout); err != nil {
		return "", err
	}
	state = StateNavigated

	answer, err := s.solveCaptcha(ctx, session)
	if err != nil {
		return "", err
	}
	state = StateCaptchaSolved

	if err = s.submitForm(ctx, session, req.CNPJ, answer); err != nil {
		return "", err
	}
	state = StateFormSubmitted
	log.Debug("Form submitted, waiting for download")

	downloaded, err := s.deps.Watcher.Await(ctx, workDir)
	if err != nil {
		return "", err
	}
	state = StateDownloadFound

	target := filepath.Join(workDir, req.FileID+".pdf")
	if downloaded != target {
		if err = os.Rename(downloaded, target); err != nil {
			return "", fmt.Errorf("renomear PDF: %w", err)
		}
	}
	state = StateDocumentRenamed

	text, err = s.deps.Extractor.ExtractText(ctx, target)
	if err != nil {
		return "", err
	}
	state = StateTextExtracted

	return text, nil
}

func (s *CNDTService) createWorkDir() (string, error) {
	if s.downloadRoot != "" {
		if err := os.MkdirAll(s.downloadRoot, 0o755); err != nil {
			return "", fmt.Errorf("criar diretório de downloads: %w", err)
		}
	}
	dir, err := os.MkdirTemp(s.downloadRoot, "cndt-*")
	if err != nil {
		return "", fmt.Errorf("criar diretório de trabalho: %w", err)
	}
	return dir, nil
}

func (s *CNDTService) solveCaptcha(ctx context.Context, session BrowserSession) (string, error) {
	if err := session.WaitPresent(ctx, "imagem do CAPTCHA", captchaImageXPath, s.config.CaptchaImageTimeout); err != nil {
		return "", err
	}
	src, err := session.Attribute(ctx, captchaImageXPath, "src")
	if err != nil {
		return "", err
	}
	_, payload, ok := strings.Cut(src, ",")
	if !ok || payload == "" {
		return "", &CaptchaError{Msg: "imagem do CAPTCHA sem conteúdo base64"}
	}

	start := time.Now()
	answer, err := s.deps.Solver.Solve(ctx, payload)
	s.deps.Metrics.ObserveCaptcha(err == nil, time.Since(start))
	return answer, err
}

func (s *CNDTService) submitForm(ctx context.Context, session BrowserSession, cnpj, answer string) error {
	if err := session.WaitPresent(ctx, "campo CNPJ", cnpjFieldXPath, s.config.FormTimeout); err != nil {
		return err
	}
	if err := session.SendKeys(ctx, cnpjFieldXPath, cnpj); err != nil {
		return err
	}
	if err := session.SendKeys(ctx, captchaAnswerXPath, answer); err != nil {
		return err
	}
	return session.Click(ctx, submitButtonXPath)
}

// cleanup closes the session before removing the directory it downloads into
func (s *CNDTService) cleanup(log *logrus.Entry, session *BrowserSession, workDir string) {
	if *session != nil {
		if err := (*session).Close(); err != nil {
			log.WithError(err).Warn("Failed to close browser session")
		}
	}
	if err := os.RemoveAll(workDir); err != nil {
		log.WithError(err).Warn("Failed to remove working directory")
	}
}

func workflowOutcome(err error) string {
	var (
		captchaErr    *CaptchaError
		navigationErr *NavigationTimeoutError
		downloadErr   *PdfDownloadError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &captchaErr):
		return "captcha_error"
	case errors.As(err, &navigationErr):
		return "navigation_timeout"
	case errors.As(err, &downloadErr):
		return "download_timeout"
	default:
		return "error"
	}
}

// Health returns gate occupancy and run counters
func (s *CNDTService) Health() map[string]interface{} {
	health := s.deps.Gate.Health()
	health["runs"] = s.runs.Load()
	health["failures"] = s.failures.Load()
	return health
}

// GateStats exposes the gate snapshot
func (s *CNDTService) GateStats() GateStats {
	return s.deps.Gate.Stats()
}
