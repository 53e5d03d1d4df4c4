package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

// dribbleReader serves its payload in tiny fragments, mimicking a client
// sending many small writes.
type dribbleReader struct {
	data []byte
	step int
}

func (r *dribbleReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.step
	if n > len(r.data) {
		n = len(r.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func TestReceiveUpload_ExactCountSingleRead(t *testing.T) {
	uc := ReceiveUpload{}
	body := bytes.NewReader(make([]byte, 3_000_000))

	result, err := uc.Execute(context.Background(), body)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.BytesReceived != 3_000_000 {
		t.Fatalf("BytesReceived = %d, want 3000000", result.BytesReceived)
	}
}

func TestReceiveUpload_ExactCountManySmallReads(t *testing.T) {
	uc := ReceiveUpload{}
	body := &dribbleReader{data: make([]byte, 100_001), step: 7}

	result, err := uc.Execute(context.Background(), body)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.BytesReceived != 100_001 {
		t.Fatalf("BytesReceived = %d, want 100001", result.BytesReceived)
	}
}

func TestReceiveUpload_EmptyBody(t *testing.T) {
	uc := ReceiveUpload{}
	result, err := uc.Execute(context.Background(), bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.BytesReceived != 0 {
		t.Fatalf("BytesReceived = %d, want 0", result.BytesReceived)
	}
}

func TestReceiveUpload_MeasuresElapsed(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	uc := ReceiveUpload{Now: func() time.Time {
		now := clock
		clock = clock.Add(250 * time.Millisecond)
		return now
	}}

	result, err := uc.Execute(context.Background(), bytes.NewReader(make([]byte, 10)))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Elapsed != 250*time.Millisecond {
		t.Fatalf("Elapsed = %s, want 250ms", result.Elapsed)
	}
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("unexpected EOF") }

func TestReceiveUpload_ReadFailure(t *testing.T) {
	uc := ReceiveUpload{}
	_, err := uc.Execute(context.Background(), brokenReader{})
	if err == nil {
		t.Fatal("expected error for broken body reader")
	}
}

func TestReceiveUpload_CancelledContextSurfaced(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	uc := ReceiveUpload{}
	_, err := uc.Execute(ctx, brokenReader{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
