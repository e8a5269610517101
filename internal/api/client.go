package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go-video-parse/internal/helpers"
	"go-video-parse/internal/models"

	log "github.com/sirupsen/logrus"
)

// Custom Error Types
var (
	ErrTimeout     = errors.New("请求超时，请重试")
	ErrNetwork     = errors.New("网络错误，请检查您的连接")
	ErrApplication = errors.New("解析失败，请稍后再试")
)

// DefaultTimeout bounds a single parse request when the config does not set one.
const DefaultTimeout = 15 * time.Second

// maxBodySize caps how much of a parse response is read into memory.
const maxBodySize = 8 << 20

// StatusError is returned when the parse endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP错误! 状态码: %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrNetwork }

// APIError is returned when the endpoint answered but its application code is not 200.
type APIError struct {
	Msg  string
	Code int64
}

func (e *APIError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return ErrApplication.Error()
}

func (e *APIError) Unwrap() error { return ErrApplication }

// Client struct for calling the parse endpoints
type Client struct {
	HttpClient *http.Client // Use a shared client
	Timeout    time.Duration
}

// NewClient creates a new API client. The per-request timeout comes from
// cfg.RequestTimeoutSec and is applied through the request context, not the
// http.Client, so that cancellation and timeout can be told apart.
func NewClient(httpClient *http.Client, cfg models.Config) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := DefaultTimeout
	if cfg.RequestTimeoutSec > 0 {
		timeout = time.Duration(cfg.RequestTimeoutSec) * time.Second
	}
	log.Debugf("NewClient called with timeout %s (API logging handled by transport if enabled)", timeout)

	return &Client{
		HttpClient: httpClient,
		Timeout:    timeout,
	}
}

// RequestURL builds the GET URL dispatched for target against endpoint.
func RequestURL(endpoint, target string) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + "url=" + helpers.EncodeURIComponent(target)
}

// Parse performs exactly one GET against endpoint for target and decodes the
// media record. Errors wrap ErrTimeout, ErrNetwork or ErrApplication. If ctx
// is cancelled by the caller, the returned error wraps context.Canceled.
func (c *Client) Parse(ctx context.Context, endpoint, target string) (models.MediaRecord, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqURL := RequestURL(endpoint, target)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		log.WithError(err).Errorf("Error creating request for %s", reqURL)
		return models.MediaRecord{}, fmt.Errorf("%w: creating request: %v", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")

	log.WithField("url", reqURL).Debug("Dispatching parse request")
	resp, err := c.HttpClient.Do(req) // Transport will log if enabled
	if err != nil {
		return models.MediaRecord{}, c.classify(ctx, reqCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		log.WithField("status", resp.StatusCode).Warn("Parse endpoint returned non-2xx status")
		return models.MediaRecord{}, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		log.WithError(err).Error("Error reading parse response body")
		return models.MediaRecord{}, c.classify(ctx, reqCtx, err)
	}

	envelope, err := models.DecodeParseResponse(body)
	if err != nil {
		log.WithError(err).Errorf("Error decoding parse response")
		log.Debugf("Response body causing decode error: %s", string(body))
		return models.MediaRecord{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	if envelope.Code != models.SuccessCode {
		log.WithFields(log.Fields{"code": int64(envelope.Code), "msg": envelope.Msg}).Info("Parse endpoint rejected the link")
		return models.MediaRecord{}, &APIError{Code: int64(envelope.Code), Msg: envelope.Msg}
	}

	record, ok := models.DecodeMediaRecord(envelope.Data)
	if !ok {
		log.Warn("Parse response data is not an object; rendering placeholders")
	}
	return record, nil
}

// classify maps a transport failure onto the error taxonomy. A cancelled parent
// context is passed through untouched so callers can drop the result silently.
func (c *Client) classify(parent, reqCtx context.Context, err error) error {
	if errors.Is(parent.Err(), context.Canceled) {
		return fmt.Errorf("parse request cancelled: %w", context.Canceled)
	}
	var netErr net.Error
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		log.WithError(err).Warn("Parse request timed out")
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	log.WithError(err).Error("Parse request failed")
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
