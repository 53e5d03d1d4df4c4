package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"speedmeter/internal/domain"
	"speedmeter/internal/metrics"
	"speedmeter/internal/payload"
)

const (
	// DefaultChunkSize is the per-step write unit when the caller does not
	// override it.
	DefaultChunkSize = 1 << 20

	minChunkSize = 4 << 10
	maxChunkSize = 8 << 20
)

// StreamConfig bounds what a single download request may ask for.
type StreamConfig struct {
	MinSizeBytes int64
	MaxSizeBytes int64
	MinDuration  time.Duration
	MaxDuration  time.Duration
	ChunkSize    int // default chunk size; per-request override is clamped
}

// StreamResult summarizes a finished transfer. Aborts are not errors: the
// remote party hung up, the result just records that it happened.
type StreamResult struct {
	BytesSent int64
	State     domain.SessionState
	Elapsed   time.Duration
}

// StreamPayload drives download transfers: it validates bounds, creates
// sessions, and runs the chunked generate/write loop against the sink.
type StreamPayload struct {
	Config StreamConfig
	Logger *slog.Logger
	Now    func() time.Time
}

func (uc StreamPayload) now() time.Time {
	if uc.Now != nil {
		return uc.Now()
	}
	return time.Now()
}

func (uc StreamPayload) logger() *slog.Logger {
	if uc.Logger != nil {
		return uc.Logger
	}
	return slog.Default()
}

// ClampChunkSize normalizes a requested chunk size. Chunk size only tunes
// write granularity, so out-of-range values are clamped rather than rejected.
func (uc StreamPayload) ClampChunkSize(requested int) int {
	chunk := requested
	if chunk <= 0 {
		chunk = uc.Config.ChunkSize
	}
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	if chunk < minChunkSize {
		chunk = minChunkSize
	}
	if chunk > maxChunkSize {
		chunk = maxChunkSize
	}
	return chunk
}

// NewSized validates totalBytes against the configured bounds and creates a
// size-bounded session. No bytes are written here; validation failures happen
// before any session exists.
func (uc StreamPayload) NewSized(totalBytes int64, chunkSize int) (*domain.TransferSession, error) {
	if totalBytes < uc.Config.MinSizeBytes {
		return nil, fmt.Errorf("%w: %d bytes (minimum %d)", ErrSizeTooSmall, totalBytes, uc.Config.MinSizeBytes)
	}
	if uc.Config.MaxSizeBytes > 0 && totalBytes > uc.Config.MaxSizeBytes {
		return nil, fmt.Errorf("%w: %d bytes (maximum %d)", ErrSizeTooLarge, totalBytes, uc.Config.MaxSizeBytes)
	}
	return uc.newSession(domain.NewSizedSession(totalBytes, uc.ClampChunkSize(chunkSize), uc.now())), nil
}

// NewTimed validates the duration and creates a duration-bounded session.
func (uc StreamPayload) NewTimed(duration time.Duration, chunkSize int) (*domain.TransferSession, error) {
	if duration < uc.Config.MinDuration || duration <= 0 {
		return nil, fmt.Errorf("%w: %s (minimum %s)", ErrDurationTooShort, duration, uc.Config.MinDuration)
	}
	if uc.Config.MaxDuration > 0 && duration > uc.Config.MaxDuration {
		return nil, fmt.Errorf("%w: %s (maximum %s)", ErrDurationTooLong, duration, uc.Config.MaxDuration)
	}
	return uc.newSession(domain.NewTimedSession(duration, uc.ClampChunkSize(chunkSize), uc.now())), nil
}

func (uc StreamPayload) newSession(s *domain.TransferSession) *domain.TransferSession {
	s.OnTransition(func(from, to domain.SessionState) {
		metrics.SessionStateTransitionsTotal.WithLabelValues(from.String(), to.String()).Inc()
	})
	return s
}

// Run drives a session to a terminal state against the sink. One chunk buffer
// is in flight at a time, so memory stays O(chunkSize) no matter how large or
// long the transfer is. The blocking sink write is the loop's only suspension
// point: the session reports Draining while a chunk sits on the sink and
// resumes Streaming once the write is acknowledged.
//
// Sink errors and context cancellation abort the transfer; neither is
// surfaced as an error because a vanished client is an expected event.
func (uc StreamPayload) Run(ctx context.Context, session *domain.TransferSession, sink io.Writer) StreamResult {
	gen := payload.New()
	chunk := make([]byte, session.ChunkSize())
	deadline := session.StartedAt().Add(session.Duration())

	metrics.ActiveTransfers.Inc()
	defer metrics.ActiveTransfers.Dec()

	for {
		// Cancellation is observed within one scheduling step.
		if ctx.Err() != nil {
			session.Abort()
			break
		}

		n := int64(len(chunk))
		if session.SizeBounded() {
			remaining := session.Remaining()
			if remaining <= 0 {
				if err := session.Complete(); err != nil {
					uc.logger().Warn("session complete failed", slog.String("error", err.Error()))
				}
				break
			}
			if remaining < n {
				n = remaining
			}
		} else if !uc.now().Before(deadline) {
			if err := session.Complete(); err != nil {
				uc.logger().Warn("session complete failed", slog.String("error", err.Error()))
			}
			break
		}

		buf := chunk[:n]
		gen.Fill(buf)

		if err := session.Dispatch(); err != nil {
			session.Abort()
			break
		}
		// Every chunk write is bracketed by Drain/Resume whether or not the
		// sink actually blocks, so session_state_transitions_total records
		// one draining pair per chunk.
		_ = session.Drain()
		written, err := sink.Write(buf)
		if written > 0 {
			if addErr := session.AddBytes(int64(written)); addErr != nil {
				uc.logger().Error("byte accounting violated", slog.String("error", addErr.Error()))
				session.Abort()
				break
			}
			metrics.BytesStreamedTotal.Add(float64(written))
		}
		if err != nil {
			session.Abort()
			break
		}
		_ = session.Resume()
	}

	result := StreamResult{
		BytesSent: session.BytesSent(),
		State:     session.State(),
		Elapsed:   uc.now().Sub(session.StartedAt()),
	}
	metrics.TransfersTotal.WithLabelValues(result.State.String()).Inc()

	if result.State == domain.SessionAborted {
		uc.logger().Debug("transfer aborted",
			slog.Int64("bytesSent", result.BytesSent),
			slog.Int64("elapsedMs", result.Elapsed.Milliseconds()),
		)
	}
	return result
}
