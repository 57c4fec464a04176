package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/nexconsult/certidao-api/internal/config"
	"github.com/sirupsen/logrus"
)

const captchaNotReady = "CAPCHA_NOT_READY"

// captchaResponse is the json=1 envelope of both in.php and res.php
type captchaResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

// TwoCaptchaSolver solves image CAPTCHAs through a 2captcha-compatible API
type TwoCaptchaSolver struct {
	config     config.CaptchaConfig
	httpClient *http.Client
	logger     *logrus.Logger
	sleep      SleepFunc

	submitted atomic.Int64
	solved    atomic.Int64
	failed    atomic.Int64
	polls     atomic.Int64
}

// NewTwoCaptchaSolver creates a solver. A nil client uses http.DefaultClient;
// per-call deadlines come from the configured timeouts.
func NewTwoCaptchaSolver(cfg config.CaptchaConfig, client *http.Client, logger *logrus.Logger) *TwoCaptchaSolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &TwoCaptchaSolver{
		config:     cfg,
		httpClient: client,
		logger:     logger,
		sleep:      sleepContext,
	}
}

// WithSleep replaces the function used for the grace delay and poll spacing
func (s *TwoCaptchaSolver) WithSleep(sleep SleepFunc) *TwoCaptchaSolver {
	s.sleep = sleep
	return s
}

// Solve submits the base64 image and polls until the answer is ready.
// Every failure is returned as *CaptchaError.
func (s *TwoCaptchaSolver) Solve(ctx context.Context, imageBase64 string) (string, error) {
	answer, err := s.solve(ctx, imageBase64)
	if err != nil {
		s.failed.Add(1)
		var captchaErr *CaptchaError
		if !errors.As(err, &captchaErr) {
			err = &CaptchaError{Msg: "falha inesperada ao resolver o CAPTCHA", Err: err}
		}
		return "", err
	}
	s.solved.Add(1)
	return answer, nil
}

func (s *TwoCaptchaSolver) solve(ctx context.Context, imageBase64 string) (string, error) {
	if s.config.APIKey == "" {
		return "", &CaptchaError{Err: ErrCaptchaNotConfigured}
	}

	taskID, err := s.submit(ctx, imageBase64)
	if err != nil {
		return "", err
	}
	s.submitted.Add(1)

	log := s.logger.WithField("task_id", taskID)
	log.Debug("Captcha submitted, waiting for solution")

	if err := s.sleep(ctx, s.config.InitialDelay); err != nil {
		return "", err
	}

	for attempt := 1; attempt <= s.config.MaxPolls; attempt++ {
		s.polls.Add(1)
		result, err := s.poll(ctx, taskID)
		if err != nil {
			return "", err
		}

		if result.Status == 1 {
			log.WithField("attempts", attempt).Info("Captcha solved")
			return result.Request, nil
		}
		if result.Request != captchaNotReady {
			return "", &CaptchaError{Msg: fmt.Sprintf("erro no 2captcha: %s", result.Request)}
		}

		if attempt < s.config.MaxPolls {
			if err := s.sleep(ctx, s.config.PollInterval); err != nil {
				return "", err
			}
		}
	}

	log.WithField("attempts", s.config.MaxPolls).Warn("Captcha not solved within poll budget")
	return "", &CaptchaError{Err: ErrCaptchaTimeout}
}

func (s *TwoCaptchaSolver) submit(ctx context.Context, imageBase64 string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.SubmitTimeout)
	defer cancel()

	form := url.Values{
		"key":    {s.config.APIKey},
		"method": {"base64"},
		"body":   {imageBase64},
		"json":   {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint("in.php"), strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	result, err := s.do(req)
	if err != nil {
		return "", err
	}
	if result.Status != 1 || result.Request == "" {
		msg := "2captcha não retornou um ID de requisição"
		if result.Request != "" {
			msg = fmt.Sprintf("%s: %s", msg, result.Request)
		}
		return "", &CaptchaError{Msg: msg}
	}
	return result.Request, nil
}

func (s *TwoCaptchaSolver) poll(ctx context.Context, taskID string) (*captchaResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.PollTimeout)
	defer cancel()

	query := url.Values{
		"key":    {s.config.APIKey},
		"action": {"get"},
		"id":     {taskID},
		"json":   {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint("res.php")+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return s.do(req)
}

func (s *TwoCaptchaSolver) do(req *http.Request) (*captchaResponse, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Path)
	}

	var result captchaResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

func (s *TwoCaptchaSolver) endpoint(name string) string {
	return strings.TrimRight(s.config.BaseURL, "/") + "/" + name
}

// Health returns captcha solver status and counters
func (s *TwoCaptchaSolver) Health() map[string]interface{} {
	status := "healthy"
	if s.config.APIKey == "" {
		status = "degraded"
	}
	return map[string]interface{}{
		"status":    status,
		"submitted": s.submitted.Load(),
		"solved":    s.solved.Load(),
		"failed":    s.failed.Load(),
		"polls":     s.polls.Load(),
	}
}
