package domain

import (
	"errors"
	"testing"
	"time"
)

func TestSessionLifecycle_SizedHappyPath(t *testing.T) {
	s := NewSizedSession(10<<20, 1<<20, time.Now())
	if s.State() != SessionPending {
		t.Fatalf("new session state = %s, want pending", s.State())
	}
	if !s.SizeBounded() {
		t.Fatal("sized session reports not size-bounded")
	}

	if err := s.Dispatch(); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := s.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if s.State() != SessionDraining {
		t.Fatalf("state = %s, want draining", s.State())
	}
	if err := s.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := s.AddBytes(10 << 20); err != nil {
		t.Fatalf("add bytes: %v", err)
	}
	if err := s.Complete(); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !s.State().Terminal() {
		t.Fatalf("completed session is not terminal")
	}
}

func TestSessionTimed_NotSizeBounded(t *testing.T) {
	s := NewTimedSession(5*time.Second, 1<<20, time.Now())
	if s.SizeBounded() {
		t.Fatal("timed session reports size-bounded")
	}
	if s.Remaining() != -1 {
		t.Fatalf("timed session remaining = %d, want -1", s.Remaining())
	}
	if s.Duration() != 5*time.Second {
		t.Fatalf("duration = %s", s.Duration())
	}
	// A timed session has no byte bound; large counts are fine.
	if err := s.AddBytes(1 << 40); err != nil {
		t.Fatalf("add bytes on timed session: %v", err)
	}
}

func TestSession_ByteBoundIsHard(t *testing.T) {
	s := NewSizedSession(100, 64, time.Now())
	if err := s.AddBytes(64); err != nil {
		t.Fatalf("first add: %v", err)
	}
	err := s.AddBytes(64)
	if !errors.Is(err, ErrByteBoundExceeded) {
		t.Fatalf("overshoot error = %v, want ErrByteBoundExceeded", err)
	}
	if s.BytesSent() != 64 {
		t.Fatalf("bytesSent after rejected add = %d, want 64", s.BytesSent())
	}
}

func TestSession_IllegalTransitions(t *testing.T) {
	s := NewSizedSession(100, 64, time.Now())
	if err := s.Drain(); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("pending -> draining error = %v, want ErrIllegalTransition", err)
	}
	if err := s.Resume(); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("pending -> resume error = %v, want ErrIllegalTransition", err)
	}

	if err := s.Complete(); err != nil {
		t.Fatalf("complete from pending: %v", err)
	}
	if err := s.Dispatch(); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("completed -> streaming error = %v, want ErrIllegalTransition", err)
	}
}

func TestSession_AbortFromAnyState(t *testing.T) {
	for name, setup := range map[string]func(*TransferSession){
		"pending":   func(*TransferSession) {},
		"streaming": func(s *TransferSession) { _ = s.Dispatch() },
		"draining":  func(s *TransferSession) { _ = s.Dispatch(); _ = s.Drain() },
	} {
		s := NewSizedSession(100, 64, time.Now())
		setup(s)
		s.Abort()
		if s.State() != SessionAborted {
			t.Errorf("%s: state after abort = %s", name, s.State())
		}
	}
}

func TestSession_AbortDoesNotOverrideCompleted(t *testing.T) {
	s := NewSizedSession(100, 64, time.Now())
	if err := s.Complete(); err != nil {
		t.Fatalf("complete: %v", err)
	}
	s.Abort()
	if s.State() != SessionCompleted {
		t.Fatalf("abort overrode completed: state = %s", s.State())
	}
}

func TestSession_TransitionHook(t *testing.T) {
	s := NewSizedSession(100, 64, time.Now())
	var got [][2]SessionState
	s.OnTransition(func(from, to SessionState) {
		got = append(got, [2]SessionState{from, to})
	})
	_ = s.Dispatch()
	_ = s.Dispatch() // no-op, must not fire the hook
	_ = s.Drain()
	_ = s.Resume()
	s.Abort()

	want := [][2]SessionState{
		{SessionPending, SessionStreaming},
		{SessionStreaming, SessionDraining},
		{SessionDraining, SessionStreaming},
		{SessionStreaming, SessionAborted},
	}
	if len(got) != len(want) {
		t.Fatalf("hook fired %d times, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %s->%s, want %s->%s",
				i, got[i][0], got[i][1], want[i][0], want[i][1])
		}
	}
}

func TestSessionState_String(t *testing.T) {
	if SessionDraining.String() != "draining" {
		t.Errorf("draining String() = %q", SessionDraining.String())
	}
	if SessionState(99).String() != "unknown(99)" {
		t.Errorf("unknown String() = %q", SessionState(99).String())
	}
}
