package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/evalprd/evalprd-api/pkg/schema"
)

// Streamer runs the upstream model call, invoking onChunk for every
// incremental text fragment in arrival order, and returns the final payload.
type Streamer func(ctx context.Context, onChunk func(delta string)) (json.RawMessage, error)

// ValidateFunc checks the final payload before it is emitted to the client.
type ValidateFunc func(payload json.RawMessage) error

// Config tunes the relay. Zero values fall back to the defaults below.
type Config struct {
	HeartbeatInterval time.Duration
	Timeout           time.Duration
	Logger            zerolog.Logger
}

const (
	defaultHeartbeatInterval = 5 * time.Second
	defaultTimeout           = 180 * time.Second
)

// Relay drives server-sent-event evaluation sessions. One Run call is one
// session; instances share no per-request state and are safe for concurrent use.
type Relay struct {
	heartbeat time.Duration
	timeout   time.Duration
	logger    zerolog.Logger
}

// New constructs a relay from the configuration.
func New(cfg Config) *Relay {
	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Relay{
		heartbeat: heartbeat,
		timeout:   timeout,
		logger:    cfg.Logger.With().Str("component", "relay").Logger(),
	}
}

type callResult struct {
	payload json.RawMessage
	err     error
}

// Run drives one SSE session: a start event, heartbeats while the upstream
// call is in flight, one delta event per chunk, and exactly one terminal done
// or error event. A failed write marks the client gone; after that no further
// writes are attempted and the upstream call drains in the background. The
// session timeout behaves identically to an upstream error.
func (r *Relay) Run(parent context.Context, w *bufio.Writer, correlationID string, stream Streamer, validate ValidateFunc) {
	logger := r.logger.With().Str("correlation_id", correlationID).Logger()

	// The client going away must not cancel the upstream call; only the
	// session timeout bounds it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), r.timeout)
	defer cancel()

	writer := &sessionWriter{w: w}
	stopped := make(chan struct{})
	defer close(stopped)

	deltas := make(chan string, 32)
	outcome := make(chan callResult, 1)

	go func() {
		payload, err := stream(ctx, func(delta string) {
			select {
			case deltas <- delta:
			case <-stopped:
			}
		})
		outcome <- callResult{payload: payload, err: err}
	}()

	writer.write("start", map[string]interface{}{"timestamp": time.Now().UTC()})

	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case delta := <-deltas:
			writer.write("delta", map[string]interface{}{"delta": delta})

		case <-ticker.C:
			writer.write("heartbeat", map[string]interface{}{"timestamp": time.Now().UTC()})

		case result := <-outcome:
			ticker.Stop()
			r.finalize(writer, logger, deltas, result, validate)
			return

		case <-ctx.Done():
			ticker.Stop()
			logger.Warn().Dur("timeout", r.timeout).Msg("evaluation timed out")
			writer.write("error", map[string]interface{}{"type": "error", "error": "evaluation timed out"})
			return
		}
	}
}

func (r *Relay) finalize(writer *sessionWriter, logger zerolog.Logger, deltas <-chan string, result callResult, validate ValidateFunc) {
	// Chunks buffered ahead of the upstream result still belong to the stream.
	for {
		select {
		case delta := <-deltas:
			writer.write("delta", map[string]interface{}{"delta": delta})
			continue
		default:
		}
		break
	}

	if writer.gone {
		logger.Info().Msg("client disconnected before completion, discarding result")
		return
	}

	if result.err != nil {
		logger.Error().Err(result.err).Msg("upstream evaluation failed")
		writer.write("error", map[string]interface{}{"type": "error", "error": result.err.Error()})
		return
	}

	if validate != nil {
		if err := validate(result.payload); err != nil {
			var verr *schema.ValidationError
			if errors.As(err, &verr) {
				logger.Error().Interface("issues", verr.Issues).Msg("model output failed schema validation")
				writer.write("error", map[string]interface{}{"type": "error", "error": "output validation failed"})
				return
			}
			logger.Error().Err(err).Msg("model output rejected")
			writer.write("error", map[string]interface{}{"type": "error", "error": err.Error()})
			return
		}
	}

	writer.write("done", map[string]interface{}{"result": result.payload})
	logger.Info().Int("result_bytes", len(result.payload)).Msg("evaluation stream completed")
}

var errClientGone = fmt.Errorf("client disconnected")

// sessionWriter frames SSE events and latches the first write failure: once
// the client is gone every later write is a silent no-op, never a panic.
type sessionWriter struct {
	w    *bufio.Writer
	gone bool
}

func (sw *sessionWriter) write(event string, payload interface{}) error {
	if sw.gone {
		return errClientGone
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		sw.gone = true
		return errClientGone
	}

	if err := sw.w.Flush(); err != nil {
		sw.gone = true
		return errClientGone
	}

	return nil
}
