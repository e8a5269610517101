// Package parser turns raw user input into a rendered parse result: it
// extracts and validates the link, picks the platform endpoint, performs a
// single timed request and resolves the view.
package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go-video-parse/internal/api"
	"go-video-parse/internal/helpers"
	"go-video-parse/internal/models"
	"go-video-parse/internal/notify"
	"go-video-parse/internal/render"

	log "github.com/sirupsen/logrus"
)

var (
	ErrInput      = errors.New("invalid input")
	ErrSuperseded = errors.New("superseded by a newer request")
)

// User-facing input messages.
const (
	MsgEmptyInput = "请输入视频链接或包含链接的文本"
	MsgInvalidURL = "无法从输入中提取有效的URL"
)

// InputError reports input rejected before any request was made.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

func (e *InputError) Unwrap() error { return ErrInput }

// ParseClient performs the remote parse call.
type ParseClient interface {
	Parse(ctx context.Context, endpoint, target string) (models.MediaRecord, error)
}

// Result is one successful parse. It is handed to copy and download
// actions explicitly.
type Result struct {
	Input    string
	Target   string
	Platform string
	Endpoint string
	Record   models.MediaRecord
	View     render.View
}

// Orchestrator runs submissions. A new Submit cancels the one in flight and
// the older one returns ErrSuperseded without notifying the user.
type Orchestrator struct {
	Client    ParseClient
	Endpoints map[string]string
	Notifier  notify.Notifier

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
}

// New returns an Orchestrator using endpoints merged over the defaults.
func New(client ParseClient, endpoints map[string]string, n notify.Notifier) *Orchestrator {
	return &Orchestrator{
		Client:    client,
		Endpoints: api.MergeEndpoints(endpoints),
		Notifier:  n,
	}
}

// Prepare validates input and resolves the request target and endpoint
// without touching the network.
func (o *Orchestrator) Prepare(input, platform string) (target, endpoint string, err error) {
	if strings.TrimSpace(input) == "" {
		return "", "", &InputError{Msg: MsgEmptyInput}
	}
	target = helpers.ExtractURL(input)
	if !helpers.IsValidURL(target) {
		return "", "", &InputError{Msg: MsgInvalidURL}
	}
	endpoints := o.Endpoints
	if endpoints == nil {
		endpoints = api.DefaultEndpoints
	}
	return target, api.ResolveEndpoint(endpoints, platform), nil
}

// Submit parses input for platform. Every error except ErrSuperseded and
// caller cancellation is also sent to the notifier.
func (o *Orchestrator) Submit(ctx context.Context, input, platform string) (*Result, error) {
	target, endpoint, err := o.Prepare(input, platform)
	if err != nil {
		notify.Error(o.Notifier, err.Error())
		return nil, err
	}

	reqCtx, gen := o.begin(ctx)
	logger := log.WithFields(log.Fields{"target": target, "endpoint": endpoint, "generation": gen})
	logger.Debug("Submitting parse request")

	rec, err := o.Client.Parse(reqCtx, endpoint, target)

	if !o.finish(gen) {
		logger.Debug("Dropping stale parse response")
		return nil, ErrSuperseded
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("parse cancelled: %w", ctx.Err())
		}
		notify.Error(o.Notifier, UserMessage(err))
		return nil, err
	}

	return &Result{
		Input:    input,
		Target:   target,
		Platform: platform,
		Endpoint: endpoint,
		Record:   rec,
		View:     render.Resolve(rec),
	}, nil
}

// begin cancels any in-flight submission and starts a new generation.
func (o *Orchestrator) begin(ctx context.Context) (context.Context, uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
	o.generation++
	reqCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	return reqCtx, o.generation
}

// finish reports whether gen is still the current generation and releases
// its context.
func (o *Orchestrator) finish(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		return false
	}
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	return true
}

// UserMessage maps an error from this package or its dependencies to the
// text shown to the user.
func UserMessage(err error) string {
	var (
		inputErr  *InputError
		apiErr    *api.APIError
		statusErr *api.StatusError
		copyErr   *CopyError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &inputErr):
		return inputErr.Msg
	case errors.As(err, &apiErr):
		return apiErr.Error()
	case errors.As(err, &statusErr):
		return statusErr.Error()
	case errors.As(err, &copyErr):
		return copyErr.Error()
	case errors.Is(err, api.ErrTimeout):
		return api.ErrTimeout.Error()
	case errors.Is(err, api.ErrNetwork):
		return api.ErrNetwork.Error()
	case errors.Is(err, api.ErrApplication):
		return api.ErrApplication.Error()
	default:
		return err.Error()
	}
}
