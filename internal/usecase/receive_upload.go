package usecase

import (
	"context"
	"fmt"
	"io"
	"time"

	"speedmeter/internal/metrics"
)

// UploadResult reports the exact payload size and receive time for one
// upload; the client computes throughput from these.
type UploadResult struct {
	BytesReceived int64
	Elapsed       time.Duration
}

// ReceiveUpload consumes an inbound byte stream and measures it. It only
// counts payload bytes: transfer framing is already stripped by the HTTP
// layer handing us the body reader.
type ReceiveUpload struct {
	Now func() time.Time
}

func (uc ReceiveUpload) now() time.Time {
	if uc.Now != nil {
		return uc.Now()
	}
	return time.Now()
}

// Execute drains body to completion, counting bytes. The count is exact
// regardless of how the client chunked its writes. A client that disconnects
// mid-upload yields a context error with the bytes counted so far.
func (uc ReceiveUpload) Execute(ctx context.Context, body io.Reader) (UploadResult, error) {
	start := uc.now()
	n, err := io.Copy(io.Discard, body)
	elapsed := uc.now().Sub(start)

	metrics.BytesReceivedTotal.Add(float64(n))

	result := UploadResult{BytesReceived: n, Elapsed: elapsed}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		return result, fmt.Errorf("upload read failed: %w", err)
	}
	return result, nil
}
