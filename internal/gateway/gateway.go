// Package gateway wraps the on-device model capability behind a small
// lifecycle: initialize (with optional asset download), per-game sessions,
// and timeout-bounded asks. Nothing here ever talks to a remote model; the
// Runner is an in-process handle and all data stays on the device.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the gateway's lifecycle state.
type Status int

const (
	StatusInitializing Status = iota
	StatusDownloadable
	StatusDownloading
	StatusReady
	StatusUnavailable
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "initializing"
	case StatusDownloadable:
		return "downloadable"
	case StatusDownloading:
		return "downloading"
	case StatusReady:
		return "ready"
	case StatusUnavailable:
		return "unavailable"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 20 * time.Second

// AskOptions tweaks a single Ask call.
type AskOptions struct {
	// ResponseSchema constrains output to JSON matching the shape. The
	// gateway rejects any non-JSON reply with ErrMalformedResponse.
	ResponseSchema map[string]any
}

// Gateway owns the single live model session. Only the turn engine should
// request session resets, and always between games, never mid-game.
type Gateway struct {
	runner  Runner
	log     *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	status  Status
	session Session
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger attaches a structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(g *Gateway) { g.log = log }
}

// WithTimeout overrides the per-call budget.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// New wraps a runner. The gateway starts in StatusInitializing; call
// Initialize before asking anything.
func New(runner Runner, opts ...Option) *Gateway {
	g := &Gateway{
		runner:  runner,
		log:     zap.NewNop(),
		timeout: DefaultTimeout,
		status:  StatusInitializing,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Status returns the current lifecycle state.
func (g *Gateway) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Initialize probes the capability and, if assets are missing, downloads
// them. onProgress, when non-nil, receives download percentages clamped to
// [0,100] and never decreasing. An unsupported capability leaves the gateway
// permanently unavailable until Initialize is called again.
func (g *Gateway) Initialize(ctx context.Context, onProgress func(pct int)) (Status, error) {
	g.setStatus(StatusInitializing)

	avail, err := g.runner.Availability(ctx)
	if err != nil {
		g.setStatus(StatusError)
		return StatusError, fmt.Errorf("probing model availability: %w", err)
	}

	switch avail {
	case AvailabilityUnsupported:
		g.setStatus(StatusUnavailable)
		g.log.Warn("model capability unsupported on this device")
		return StatusUnavailable, ErrUnavailable

	case AvailabilityDownloadable:
		g.setStatus(StatusDownloading)
		g.log.Info("downloading model assets")
		reported := -1
		err := g.runner.Download(ctx, func(pct float64) {
			p := int(pct)
			if p < 0 {
				p = 0
			}
			if p > 100 {
				p = 100
			}
			if p <= reported {
				return
			}
			reported = p
			if onProgress != nil {
				onProgress(p)
			}
		})
		if err != nil {
			g.setStatus(StatusError)
			return StatusError, fmt.Errorf("%w: %v", ErrDownload, err)
		}
	}

	g.setStatus(StatusReady)
	return StatusReady, nil
}

// StartNewSession discards any prior session and creates a fresh one primed
// with the system prompt. Required at the start of every game so no secret
// characters or Q&A history leak into the model's context for the next one.
func (g *Gateway) StartNewSession(ctx context.Context, system string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != StatusReady {
		return fmt.Errorf("%w: gateway status is %s", ErrUnavailable, g.status)
	}
	if g.session != nil {
		g.session.Destroy()
		g.session = nil
	}
	sess, err := g.runner.NewSession(ctx, system)
	if err != nil {
		return fmt.Errorf("creating model session: %w", err)
	}
	g.session = sess
	g.log.Debug("started new model session")
	return nil
}

// Ask sends the parts to the current session and returns the completion.
// The call is bounded by the gateway's timeout when ctx carries no deadline;
// on expiry it fails with ErrTimeout and any late reply from the underlying
// capability is discarded rather than applied.
func (g *Gateway) Ask(ctx context.Context, parts []Part, opts *AskOptions) (string, error) {
	g.mu.Lock()
	sess := g.session
	status := g.status
	g.mu.Unlock()

	if status != StatusReady || sess == nil {
		return "", fmt.Errorf("%w: no active session", ErrUnavailable)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var schema map[string]any
	if opts != nil {
		schema = opts.ResponseSchema
	}

	type generated struct {
		text string
		err  error
	}
	// Buffered so an abandoned call can still deliver and be dropped.
	done := make(chan generated, 1)
	start := time.Now()
	go func() {
		text, err := sess.Generate(ctx, parts, schema)
		done <- generated{text, err}
	}()

	select {
	case <-ctx.Done():
		g.log.Warn("model call abandoned", zap.Duration("elapsed", time.Since(start)))
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("model call failed: %w", res.err)
		}
		if schema != nil && !json.Valid([]byte(res.text)) {
			return "", fmt.Errorf("%w: not valid JSON", ErrMalformedResponse)
		}
		g.log.Debug("model call completed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("response_len", len(res.text)),
			zap.Bool("schema", schema != nil))
		return res.text, nil
	}
}

// Close destroys the live session, if any.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session != nil {
		g.session.Destroy()
		g.session = nil
	}
}

func (g *Gateway) setStatus(s Status) {
	g.mu.Lock()
	g.status = s
	g.mu.Unlock()
}
