package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/nexconsult/certidao-api/internal/config"
	"github.com/nexconsult/certidao-api/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/net/html/charset"
)

const (
	cndEndpoint     = "/CWS/BIN/cws_mv2.asp"
	cndUserAgent    = "Mozilla/5.0"
	cndNoneMarker   = "NAO HA CND EMITIDA PARA O ESTABELECIMENTO"
	cndDetailMarker = "DETALHES[0]"
	cndMaxBody      = 2 << 20
)

var (
	quotedFieldRe = regexp.MustCompile(`"(.*?)"`)
	detailLineRe  = regexp.MustCompile(`new detalhe\("([^"]+)"\)`)
)

// CNDService looks up CND certificates on the Dataprev legacy site
type CNDService struct {
	config     config.CNDConfig
	baseURL    *url.URL
	httpClient *http.Client
	cache      CNDCacheStore
	breaker    *gobreaker.CircuitBreaker[*models.CndResponse]
	metrics    *Metrics
	logger     *logrus.Logger

	lookups  atomic.Int64
	failures atomic.Int64
}

// NewCNDService creates the Dataprev client. cache may be nil.
func NewCNDService(cfg config.CNDConfig, client *http.Client, cache CNDCacheStore, metrics *Metrics, logger *logrus.Logger) (*CNDService, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid CND base URL %q", cfg.BaseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	s := &CNDService{
		config:     cfg,
		baseURL:    base,
		httpClient: client,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
	}
	if cfg.Breaker.Enabled {
		s.breaker = gobreaker.NewCircuitBreaker[*models.CndResponse](s.breakerSettings())
	}
	return s, nil
}

func (s *CNDService) breakerSettings() gobreaker.Settings {
	b := s.config.Breaker
	return gobreaker.Settings{
		Name:        "dataprev",
		MaxRequests: b.MaxRequests,
		Timeout:     b.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < b.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= b.FailureRatio
		},
		// a missing certificate is an answer, not an upstream failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCNDNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}
}

// Lookup returns the certificate detail lines for a 14-digit CNPJ
func (s *CNDService) Lookup(ctx context.Context, cnpj string) (*models.CndResponse, error) {
	start := time.Now()
	s.lookups.Add(1)
	log := s.logger.WithFields(logrus.Fields{
		"request_id": RequestIDFrom(ctx),
		"cnpj":       cnpj,
	})

	if cached, ok := s.fromCache(ctx, cnpj); ok {
		s.metrics.ObserveCND("cache")
		log.WithField("duration", time.Since(start)).Info("CND found in cache")
		return cached, nil
	}

	response, err := s.fetchGuarded(ctx, cnpj)
	if err != nil {
		s.failures.Add(1)
		s.metrics.ObserveCND(cndOutcome(err))
		log.WithError(err).WithField("duration", time.Since(start)).Warn("CND lookup failed")
		return nil, err
	}

	if s.cache != nil && s.config.CacheEnabled {
		if err := s.cache.Store(ctx, response); err != nil {
			log.WithError(err).Warn("Failed to cache CND response")
		}
	}

	s.metrics.ObserveCND("success")
	log.WithField("duration", time.Since(start)).Info("CND lookup completed")
	return response, nil
}

func (s *CNDService) fromCache(ctx context.Context, cnpj string) (*models.CndResponse, bool) {
	if s.cache == nil || !s.config.CacheEnabled {
		return nil, false
	}
	response, err := s.cache.Load(ctx, cnpj)
	s.metrics.ObserveCache(err == nil)
	if err != nil {
		return nil, false
	}
	response.Cache = true
	return response, true
}

func (s *CNDService) fetchGuarded(ctx context.Context, cnpj string) (*models.CndResponse, error) {
	if s.breaker == nil {
		return s.fetch(ctx, cnpj)
	}
	response, err := s.breaker.Execute(func() (*models.CndResponse, error) {
		return s.fetch(ctx, cnpj)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, unavailable("Serviço da Dataprev temporariamente indisponível", err)
	}
	return response, err
}

func (s *CNDService) fetch(ctx context.Context, cnpj string) (*models.CndResponse, error) {
	number, err := s.certificateNumber(ctx, cnpj)
	if err != nil {
		return nil, err
	}

	content, err := s.certificateContent(ctx, number)
	if err != nil {
		return nil, err
	}

	return &models.CndResponse{CNPJ: cnpj, ConteudoCertidao: content}, nil
}

// certificateNumber posts the listing form and reads the internal certificate number
func (s *CNDService) certificateNumber(ctx context.Context, cnpj string) (string, error) {
	form := url.Values{
		"tipo":              {"1"},
		"num":               {cnpj},
		"SIW_Contexto":      {"CND"},
		"SIW_Transacao_Web": {"LISTA"},
		"SIW_Layout":        {"1,14"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", s.origin())
	req.Header.Set("Referer", s.endpoint()+"?CONTEXTO/CND/ACNT1004")
	s.setCommonHeaders(req)

	body, err := s.do(req)
	if err != nil {
		return "", unavailable("Erro de comunicação com a Dataprev", err)
	}

	return parseCertificateNumber(cnpj, body)
}

// certificateContent fetches the detail page and joins its detail lines
func (s *CNDService) certificateContent(ctx context.Context, number string) (string, error) {
	detailURL := s.endpoint() + "?COMS_BIN/SIW_Contexto=CND/SIW_Transacao_Web=CONSULTA2/" + number

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, detailURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Referer", s.endpoint())
	s.setCommonHeaders(req)

	body, err := s.do(req)
	if err != nil {
		return "", unavailable("Erro ao buscar detalhes da certidão", err)
	}

	return parseCertificateContent(body)
}

func (s *CNDService) setCommonHeaders(req *http.Request) {
	req.Host = s.baseURL.Host
	req.Header.Set("User-Agent", cndUserAgent)
}

// do executes req and returns the body decoded to UTF-8
func (s *CNDService) do(req *http.Request) (string, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, cndMaxBody), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", err
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (s *CNDService) endpoint() string {
	return s.baseURL.String() + cndEndpoint
}

func (s *CNDService) origin() string {
	return s.baseURL.Scheme + "://" + s.baseURL.Host
}

// parseCertificateNumber scans the listing page line by line. The no-certificate
// marker wins over a detail line appearing later.
func parseCertificateNumber(cnpj, body string) (string, error) {
	var detail string
	for _, line := range strings.Split(body, "\n") {
		if strings.Contains(line, cndNoneMarker) {
			return "", notFound("Não há CND emitida para o CNPJ: %s", cnpj)
		}
		if strings.Contains(line, cndDetailMarker) {
			detail = line
			break
		}
	}
	if detail == "" {
		return "", notFound("Não foi possível extrair a linha de detalhes para o CNPJ: %s", cnpj)
	}

	matches := quotedFieldRe.FindAllStringSubmatch(detail, -1)
	if len(matches) < 5 {
		return "", notFound("Formato de detalhes inesperado na resposta da Dataprev.")
	}
	return matches[3][1] + strings.ReplaceAll(matches[4][1], "/", ""), nil
}

// parseCertificateContent collects the detail lines declared inside the page's
// script elements. Text elsewhere in the document is ignored.
func parseCertificateContent(body string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", unavailable("Resposta da Dataprev ilegível", err)
	}

	var scripts strings.Builder
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		scripts.WriteString(sel.Text())
		scripts.WriteByte('\n')
	})
	source := scripts.String()

	var lines []string
	for _, m := range detailLineRe.FindAllStringSubmatch(source, -1) {
		if line := strings.TrimSpace(m[1]); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return "", notFound("Não foi possível extrair o conteúdo da certidão.")
	}
	return strings.Join(lines, "\n"), nil
}

func cndOutcome(err error) string {
	switch {
	case errors.Is(err, ErrCNDNotFound):
		return "not_found"
	case errors.Is(err, ErrCNDUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// Health reports breaker state and lookup counters
func (s *CNDService) Health() map[string]interface{} {
	health := map[string]interface{}{
		"status":   "healthy",
		"base_url": s.baseURL.String(),
		"lookups":  s.lookups.Load(),
		"failures": s.failures.Load(),
		"cache":    s.cache != nil && s.config.CacheEnabled,
	}
	if s.breaker != nil {
		state := s.breaker.State()
		health["breaker"] = state.String()
		if state == gobreaker.StateOpen {
			health["status"] = "degraded"
		}
	}
	return health
}
