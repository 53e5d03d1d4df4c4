package domain

import (
	"fmt"
	"sync"
	"time"
)

// SessionState is the FSM state of a TransferSession.
type SessionState int

const (
	SessionPending   SessionState = iota
	SessionStreaming              // chunks are being generated and written
	SessionDraining               // a write is pending on the sink (backpressure)
	SessionCompleted              // termination criterion met, final write acked
	SessionAborted                // sink closed/errored or cancellation observed
)

var sessionStateNames = [...]string{
	"pending", "streaming", "draining", "completed", "aborted",
}

func (s SessionState) String() string {
	if int(s) < len(sessionStateNames) {
		return sessionStateNames[s]
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// Terminal reports whether no further transitions are possible.
func (s SessionState) Terminal() bool {
	return s == SessionCompleted || s == SessionAborted
}

// TransferSession tracks one download transfer. Exactly one termination
// criterion is active: a total byte bound or a wall-clock duration bound.
// The scheduler driving the session is the only mutator of bytesSent.
type TransferSession struct {
	mu    sync.Mutex
	state SessionState

	totalBytes int64         // byte bound; < 0 means duration-bounded
	duration   time.Duration // wall-clock bound; 0 means size-bounded
	chunkSize  int
	bytesSent  int64
	startedAt  time.Time

	onTransition func(from, to SessionState)
}

// NewSizedSession creates a session bounded by an absolute byte count.
func NewSizedSession(totalBytes int64, chunkSize int, startedAt time.Time) *TransferSession {
	return &TransferSession{
		state:      SessionPending,
		totalBytes: totalBytes,
		chunkSize:  chunkSize,
		startedAt:  startedAt,
	}
}

// NewTimedSession creates a session bounded by wall-clock duration; its total
// size is unbounded.
func NewTimedSession(duration time.Duration, chunkSize int, startedAt time.Time) *TransferSession {
	return &TransferSession{
		state:      SessionPending,
		totalBytes: -1,
		duration:   duration,
		chunkSize:  chunkSize,
		startedAt:  startedAt,
	}
}

// OnTransition registers a hook invoked after every state change. Must be set
// before the scheduler starts driving the session.
func (s *TransferSession) OnTransition(hook func(from, to SessionState)) {
	s.onTransition = hook
}

func (s *TransferSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *TransferSession) BytesSent() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytesSent
}

func (s *TransferSession) StartedAt() time.Time { return s.startedAt }
func (s *TransferSession) ChunkSize() int       { return s.chunkSize }

// SizeBounded reports whether the byte bound is the active termination
// criterion.
func (s *TransferSession) SizeBounded() bool { return s.totalBytes >= 0 }

// TotalBytes returns the byte bound, or -1 for duration-bounded sessions.
func (s *TransferSession) TotalBytes() int64 { return s.totalBytes }

// Duration returns the wall-clock bound, or 0 for size-bounded sessions.
func (s *TransferSession) Duration() time.Duration { return s.duration }

// Remaining returns how many bytes are still owed for a size-bounded session.
func (s *TransferSession) Remaining() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.totalBytes < 0 {
		return -1
	}
	return s.totalBytes - s.bytesSent
}

// AddBytes records n bytes acknowledged by the sink. The byte bound is a hard
// invariant: overshooting it means the scheduler sized a chunk wrong.
func (s *TransferSession) AddBytes(n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		return fmt.Errorf("%w: negative byte count %d", ErrIllegalTransition, n)
	}
	if s.totalBytes >= 0 && s.bytesSent+n > s.totalBytes {
		return fmt.Errorf("%w: %d+%d exceeds bound %d", ErrByteBoundExceeded, s.bytesSent, n, s.totalBytes)
	}
	s.bytesSent += n
	return nil
}

// Dispatch moves Pending -> Streaming on the first chunk. Subsequent calls
// while already Streaming are no-ops.
func (s *TransferSession) Dispatch() error {
	return s.transition(SessionStreaming, SessionPending, SessionStreaming)
}

// Drain moves Streaming -> Draining while a write sits on the sink.
func (s *TransferSession) Drain() error {
	return s.transition(SessionDraining, SessionStreaming)
}

// Resume moves Draining -> Streaming once the sink accepted the pending
// chunk. This is the only legal backward transition.
func (s *TransferSession) Resume() error {
	return s.transition(SessionStreaming, SessionDraining)
}

// Complete marks the session terminal after the final write was acked.
func (s *TransferSession) Complete() error {
	return s.transition(SessionCompleted, SessionPending, SessionStreaming)
}

// Abort marks the session terminal from any non-terminal state. Aborting an
// already-terminal session is a no-op so disconnect races stay harmless.
func (s *TransferSession) Abort() {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	from := s.state
	s.state = SessionAborted
	hook := s.onTransition
	s.mu.Unlock()
	if hook != nil {
		hook(from, SessionAborted)
	}
}

func (s *TransferSession) transition(to SessionState, allowedFrom ...SessionState) error {
	s.mu.Lock()
	from := s.state
	if from == to {
		s.mu.Unlock()
		return nil
	}
	legal := false
	for _, f := range allowedFrom {
		if from == f {
			legal = true
			break
		}
	}
	if !legal {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	s.state = to
	hook := s.onTransition
	s.mu.Unlock()
	if hook != nil {
		hook(from, to)
	}
	return nil
}
