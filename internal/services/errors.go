package services

import (
	"errors"
	"fmt"
)

// ErrCndt is the root of every failure the CNDT workflow reports to callers.
// Match it with errors.Is; the concrete kinds below all report true.
var ErrCndt = errors.New("erro no fluxo de emissão da CNDT")

// ErrCaptchaTimeout marks a CaptchaError raised because the solver never produced an answer.
var ErrCaptchaTimeout = errors.New("tempo esgotado para resolver o CAPTCHA")

// ErrCaptchaNotConfigured is returned when no solver API key is set.
var ErrCaptchaNotConfigured = errors.New("chave da API do 2captcha não configurada")

// CND outcomes
var (
	ErrCNDNotFound    = errors.New("CND não encontrada")
	ErrCNDUnavailable = errors.New("serviço da Dataprev indisponível")
)

// CaptchaError reports a CAPTCHA submission or polling failure, or a timeout
type CaptchaError struct {
	Msg string
	Err error
}

func (e *CaptchaError) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *CaptchaError) Unwrap() error { return e.Err }

func (e *CaptchaError) Is(target error) bool { return target == ErrCndt }

// NavigationTimeoutError reports a portal element that never appeared within its wait budget
type NavigationTimeoutError struct {
	Step     string
	Selector string
	Err      error
}

func (e *NavigationTimeoutError) Error() string {
	return fmt.Sprintf("tempo esgotado aguardando %s (%s)", e.Step, e.Selector)
}

func (e *NavigationTimeoutError) Unwrap() error { return e.Err }

func (e *NavigationTimeoutError) Is(target error) bool { return target == ErrCndt }

// PdfDownloadError reports that no document appeared in the working directory in time
type PdfDownloadError struct {
	Dir     string
	Timeout string
}

func (e *PdfDownloadError) Error() string {
	return "PDF não foi baixado a tempo"
}

func (e *PdfDownloadError) Is(target error) bool { return target == ErrCndt }

// CNDError carries the CND outcome kind (ErrCNDNotFound or ErrCNDUnavailable) plus a caller-facing message
type CNDError struct {
	Kind error
	Msg  string
	Err  error
}

func (e *CNDError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *CNDError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func notFound(format string, args ...interface{}) error {
	return &CNDError{Kind: ErrCNDNotFound, Msg: fmt.Sprintf(format, args...)}
}

func unavailable(msg string, err error) error {
	return &CNDError{Kind: ErrCNDUnavailable, Msg: msg, Err: err}
}
