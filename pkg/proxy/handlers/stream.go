package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/relay/pkg/credentials"
	"mercator-hq/relay/pkg/providers"
	"mercator-hq/relay/pkg/proxy"
	"mercator-hq/relay/pkg/stream"
	"mercator-hq/relay/pkg/telemetry/logging"
	"mercator-hq/relay/pkg/telemetry/metrics"
)

// ErrIdleTimeout is the cancellation cause when the upstream sends nothing
// for StreamOptions.IdleTimeout.
var ErrIdleTimeout = errors.New("upstream idle timeout")

// Opener opens a provider stream. *providers.Client implements it.
type Opener interface {
	Open(ctx context.Context, kind providers.Kind, payload providers.ChatPayload, apiKey string) (*providers.Upstream, error)
}

// StreamOptions configures one provider route.
type StreamOptions struct {
	// Policy handles complete data lines that fail to parse.
	Policy stream.ParsePolicy

	// MaxFrameBytes caps bytes held back between upstream reads.
	MaxFrameBytes int

	// IdleTimeout aborts the stream when no upstream chunk arrives in time.
	// Zero disables it.
	IdleTimeout time.Duration
}

// StreamHandler serves POST /{provider}. It decrypts the caller's credential,
// opens the provider stream and relays it as newline-delimited
// {"message":"..."} objects.
//
// Errors before the upstream opens get a JSON error response. Once the 200
// is committed there is no way to report an error in-band, so a broken
// stream aborts the connection instead.
type StreamHandler struct {
	kind    providers.Kind
	opener  Opener
	secret  *credentials.Holder
	metrics *metrics.Collector
	opts    StreamOptions
}

// NewStreamHandler creates the handler for kind.
func NewStreamHandler(kind providers.Kind, opener Opener, secret *credentials.Holder, m *metrics.Collector, opts StreamOptions) *StreamHandler {
	return &StreamHandler{
		kind:    kind,
		opener:  opener,
		secret:  secret,
		metrics: m,
		opts:    opts,
	}
}

// ServeHTTP implements http.Handler.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	provider := h.kind.String()
	ctx := logging.WithProvider(r.Context(), provider)

	req, err := proxy.ParseStreamRequest(r, h.kind)
	if err != nil {
		slog.WarnContext(ctx, "invalid stream request", "error", err)
		h.reject(ctx, w, metrics.OutcomeBadRequest, err)
		return
	}

	apiKey, err := credentials.Decrypt(req.APIKey, h.secret.Load())
	if err != nil {
		if reason := proxy.CredentialReason(err); reason != "" {
			h.metrics.RecordCredentialFailure(reason)
			slog.WarnContext(ctx, "credential rejected", "reason", reason)
			h.reject(ctx, w, metrics.OutcomeBadCredential, err)
			return
		}
		slog.ErrorContext(ctx, "credential decryption unavailable", "error", err)
		h.reject(ctx, w, metrics.OutcomeInternalError, err)
		return
	}

	upCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	upstream, err := h.opener.Open(upCtx, h.kind, req.Payload(h.kind), apiKey)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open provider stream", "error", err)
		h.reject(ctx, w, metrics.OutcomeUpstreamError, err)
		return
	}
	defer upstream.Close()

	h.metrics.RecordUpstreamLatency(provider, upstream.Latency)
	h.metrics.RecordRequest(provider, metrics.OutcomeStreamed)

	proxy.SetStreamHeaders(w)
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)
	_ = rc.Flush()

	h.metrics.StreamStarted()
	start := time.Now()

	n := stream.New(upstream.Body, h.kind, stream.Options{
		Policy:        h.opts.Policy,
		MaxFrameBytes: h.opts.MaxFrameBytes,
	})

	reason, streamErr := h.relay(upCtx, cancel, w, rc, n)
	if reason == metrics.ReasonEOF && n.Sentinel() {
		reason = metrics.ReasonDone
	}

	h.metrics.StreamFinished(provider, reason, n.Events(), n.Bytes())

	attrs := []any{
		"reason", reason,
		"events", n.Events(),
		"bytes", n.Bytes(),
		"upstream_latency_ms", upstream.Latency.Milliseconds(),
		"latency_ms", time.Since(start).Milliseconds(),
	}

	switch reason {
	case metrics.ReasonDone, metrics.ReasonEOF:
		slog.InfoContext(ctx, "stream completed", attrs...)
	case metrics.ReasonClientGone:
		slog.InfoContext(ctx, "client disconnected", attrs...)
	default:
		slog.ErrorContext(ctx, "stream aborted", append(attrs, "error", streamErr)...)
		// Headers are committed; abort the connection so the client sees a
		// truncated response rather than a clean end.
		panic(http.ErrAbortHandler)
	}
}

// relay pulls batches until the stream ends and returns the termination
// reason. Each pull happens only after the previous batch was written and
// flushed.
//
// The idle watchdog runs only while Next waits on the upstream. Time spent
// writing to a slow client is backpressure, not upstream idleness.
func (h *StreamHandler) relay(ctx context.Context, cancel context.CancelCauseFunc, w http.ResponseWriter, rc *http.ResponseController, n *stream.Normalizer) (string, error) {
	idle := h.opts.IdleTimeout
	var watchdog *time.Timer
	if idle > 0 {
		watchdog = time.AfterFunc(idle, func() { cancel(ErrIdleTimeout) })
		watchdog.Stop()
		defer watchdog.Stop()
	}

	for {
		if watchdog != nil {
			watchdog.Reset(idle)
		}
		batch, err := n.Next(ctx)
		if watchdog != nil {
			watchdog.Stop()
		}
		if err != nil {
			return classify(ctx, err), err
		}
		if len(batch) == 0 {
			continue
		}

		if _, err := w.Write(batch); err != nil {
			return metrics.ReasonClientGone, err
		}
		if err := rc.Flush(); err != nil {
			return metrics.ReasonClientGone, err
		}
	}
}

// classify maps a terminal Next error to a termination reason.
func classify(ctx context.Context, err error) string {
	var (
		parseErr    *stream.ParseError
		frameErr    *stream.FrameTooLargeError
		encodingErr *stream.EncodingError
	)

	switch {
	case errors.Is(err, io.EOF):
		return metrics.ReasonEOF
	case errors.Is(err, ErrIdleTimeout), errors.Is(context.Cause(ctx), ErrIdleTimeout):
		return metrics.ReasonIdleTimeout
	case ctx.Err() != nil:
		return metrics.ReasonClientGone
	case errors.As(err, &parseErr), errors.As(err, &frameErr), errors.As(err, &encodingErr):
		return metrics.ReasonParseError
	default:
		return metrics.ReasonReadError
	}
}

// reject writes the JSON error response for a failure before streaming.
func (h *StreamHandler) reject(ctx context.Context, w http.ResponseWriter, outcome string, err error) {
	h.metrics.RecordRequest(h.kind.String(), outcome)
	if werr := proxy.WriteErrorResponse(w, proxy.HandleError(err)); werr != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", werr)
	}
}
