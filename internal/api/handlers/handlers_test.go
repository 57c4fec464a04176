package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/certidao-api/internal/logger"
	"github.com/nexconsult/certidao-api/internal/models"
	"github.com/nexconsult/certidao-api/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeCNDT struct {
	text string
	err  error
	reqs []models.CndtRequest
}

func (f *fakeCNDT) Generate(_ context.Context, req models.CndtRequest) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.text, f.err
}

func (f *fakeCNDT) Health() map[string]interface{} {
	return map[string]interface{}{"status": "healthy"}
}

type fakeCND struct {
	resp *models.CndResponse
	err  error
}

func (f *fakeCND) Lookup(_ context.Context, cnpj string) (*models.CndResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeCND) Health() map[string]interface{} {
	return map[string]interface{}{"status": "healthy"}
}

type staticHealth map[string]interface{}

func (s staticHealth) Health() map[string]interface{} { return s }

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func postCNDT(router *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/consulta/cndt", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func cndtRouter(service services.CNDTServiceInterface, strict bool) *gin.Engine {
	router := gin.New()
	router.POST("/consulta/cndt", NewCNDTHandler(service, strict, logger.Discard()).Generate)
	return router
}

func TestCNDTHandlerSuccess(t *testing.T) {
	service := &fakeCNDT{text: "CERTIDÃO NEGATIVA"}
	w := postCNDT(cndtRouter(service, false), `{"cnpj":"00000000000191","file_id":"certidao_123"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var body models.CndtResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "CERTIDÃO NEGATIVA", body.TextoPDF)
	assert.Equal(t, []models.CndtRequest{{CNPJ: "00000000000191", FileID: "certidao_123"}}, service.reqs)
}

func TestCNDTHandlerRejectsInvalidBodies(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		strict bool
		code   string
	}{
		{name: "malformed json", body: `{`, code: "INVALID_REQUEST"},
		{name: "missing file_id", body: `{"cnpj":"00000000000191"}`, code: "INVALID_REQUEST"},
		{name: "path in file_id", body: `{"cnpj":"00000000000191","file_id":"../etc/passwd"}`, code: "INVALID_FILE_ID"},
		{name: "bad check digits when strict", body: `{"cnpj":"00000000000190","file_id":"x"}`, strict: true, code: "INVALID_CNPJ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &fakeCNDT{}
			w := postCNDT(cndtRouter(service, tt.strict), tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
			assert.Empty(t, service.reqs)
		})
	}
}

func TestCNDTHandlerMapsErrors(t *testing.T) {
	pollTimeout := &url.Error{Op: "Get", URL: "https://2captcha.com/res.php", Err: context.DeadlineExceeded}

	tests := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{
			name:   "navigation timeout carries its message",
			err:    &services.NavigationTimeoutError{Step: "imagem do CAPTCHA", Selector: "//img", Err: context.DeadlineExceeded},
			status: http.StatusInternalServerError,
			detail: "tempo esgotado aguardando imagem do CAPTCHA (//img)",
		},
		{
			name:   "captcha poll deadline carries its message",
			err:    &services.CaptchaError{Msg: "falha inesperada ao resolver o CAPTCHA", Err: pollTimeout},
			status: http.StatusInternalServerError,
			detail: "falha inesperada ao resolver o CAPTCHA: " + pollTimeout.Error(),
		},
		{
			name:   "captcha timeout carries its message",
			err:    &services.CaptchaError{Err: services.ErrCaptchaTimeout},
			status: http.StatusInternalServerError,
			detail: "tempo esgotado para resolver o CAPTCHA",
		},
		{
			name:   "download timeout carries its message",
			err:    &services.PdfDownloadError{Dir: "/tmp/x", Timeout: "1m0s"},
			status: http.StatusInternalServerError,
			detail: "PDF não foi baixado a tempo",
		},
		{
			name:   "bare deadline on a live request stays generic",
			err:    fmt.Errorf("launch browser: %w", context.DeadlineExceeded),
			status: http.StatusInternalServerError,
			detail: "Erro interno inesperado.",
		},
		{
			name:   "unexpected errors stay generic",
			err:    errors.New("open /tmp/cndt-1/x.pdf: permission denied"),
			status: http.StatusInternalServerError,
			detail: "Erro interno inesperado.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postCNDT(cndtRouter(&fakeCNDT{err: tt.err}, false), `{"cnpj":"00000000000191","file_id":"x"}`)
			assert.Equal(t, tt.status, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, tt.detail, body.Detail)
			assert.NotEmpty(t, body.Code)
		})
	}
}

func TestCNDTHandlerClientGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/consulta/cndt", strings.NewReader(`{"cnpj":"00000000000191","file_id":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	cndtRouter(&fakeCNDT{err: context.Canceled}, false).ServeHTTP(w, req.WithContext(ctx))

	assert.Equal(t, statusClientClosedRequest, w.Code)
	assert.Empty(t, w.Body.String())
}

func cndRouter(service services.CNDServiceInterface) *gin.Engine {
	router := gin.New()
	router.GET("/consulta/cnd", NewCNDHandler(service, false, logger.Discard()).Lookup)
	return router
}

func getCND(router *gin.Engine, cnpj string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/consulta/cnd?cnpj="+cnpj, nil))
	return w
}

func TestCNDHandlerSuccess(t *testing.T) {
	service := &fakeCND{resp: &models.CndResponse{CNPJ: "00000000000191", ConteudoCertidao: "LINHA 1\nLINHA 2"}}
	w := getCND(cndRouter(service), "00000000000191")

	require.Equal(t, http.StatusOK, w.Code)
	var body models.CndResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "LINHA 1\nLINHA 2", body.ConteudoCertidao)
}

func TestCNDHandlerStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		cnpj   string
		err    error
		status int
	}{
		{name: "too short", cnpj: "123", status: http.StatusUnprocessableEntity},
		{name: "formatted", cnpj: "00.000.000%2F0001-91", status: http.StatusUnprocessableEntity},
		{name: "not found", cnpj: "00000000000191", err: &services.CNDError{Kind: services.ErrCNDNotFound, Msg: "Não há CND emitida para o CNPJ: 00000000000191"}, status: http.StatusNotFound},
		{name: "unavailable", cnpj: "00000000000191", err: &services.CNDError{Kind: services.ErrCNDUnavailable, Msg: "Erro de comunicação com a Dataprev"}, status: http.StatusServiceUnavailable},
		{name: "unexpected", cnpj: "00000000000191", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := getCND(cndRouter(&fakeCND{err: tt.err}), tt.cnpj)
			assert.Equal(t, tt.status, w.Code)
		})
	}

	w := getCND(cndRouter(&fakeCND{err: &services.CNDError{Kind: services.ErrCNDNotFound, Msg: "Não há CND emitida para o CNPJ: 00000000000191"}}), "00000000000191")
	assert.Equal(t, "Não há CND emitida para o CNPJ: 00000000000191", decodeError(t, w).Detail)
}

func TestGetStatus(t *testing.T) {
	router := gin.New()
	router.GET("/status", GetStatus)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthAggregatesServiceStatus(t *testing.T) {
	tests := []struct {
		name       string
		health     staticHealth
		wantStatus string
		wantCode   int
	}{
		{
			name:       "all healthy",
			health:     staticHealth{"cnd": map[string]interface{}{"status": "healthy"}},
			wantStatus: "healthy",
			wantCode:   http.StatusOK,
		},
		{
			name: "degraded captcha",
			health: staticHealth{
				"cnd":     map[string]interface{}{"status": "healthy"},
				"captcha": map[string]interface{}{"status": "degraded"},
			},
			wantStatus: "degraded",
			wantCode:   http.StatusOK,
		},
		{
			name: "unhealthy wins",
			health: staticHealth{
				"captcha": map[string]interface{}{"status": "degraded"},
				"cache":   map[string]interface{}{"status": "unhealthy", "error": "redis down"},
			},
			wantStatus: "unhealthy",
			wantCode:   http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/health", NewHealthHandler(tt.health, "1.0.0", logger.Discard()).GetHealth)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			var body models.HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, "1.0.0", body.Version)
			assert.Len(t, body.Services, len(tt.health))
		})
	}
}

func TestCacheHandlerDeleteCND(t *testing.T) {
	cache := services.NewCNDCache(nil, time.Hour, logger.Discard())
	router := gin.New()
	handler := NewCacheHandler(cache, logger.Discard())
	router.DELETE("/cache/cnd/:cnpj", handler.DeleteCND)
	router.GET("/cache/stats", handler.GetStats)

	del := func(cnpj string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/cache/cnd/"+cnpj, nil))
		return w
	}

	assert.Equal(t, http.StatusUnprocessableEntity, del("123").Code)
	assert.Equal(t, http.StatusNotFound, del("00000000000191").Code)

	require.NoError(t, cache.Store(context.Background(), &models.CndResponse{CNPJ: "00000000000191", ConteudoCertidao: "LINHA"}))
	w := del("00000000000191")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "00.000.000/0001-91")

	_, err := cache.Load(context.Background(), "00000000000191")
	assert.ErrorIs(t, err, services.ErrCacheMiss)
	assert.Equal(t, http.StatusNotFound, del("00000000000191").Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cache/stats", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.Contains(w.Body.Bytes(), []byte(`"stats"`)))
}

func TestMetricsHandlerServesRegistry(t *testing.T) {
	metrics := services.NewMetrics()
	metrics.SetGate(services.GateStats{Capacity: 3})

	router := gin.New()
	router.GET("/metrics", NewMetricsHandler(metrics).GetMetrics)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "certidao_cndt_gate_capacity 3")
}
