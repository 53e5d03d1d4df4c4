package apihttp

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"speedmeter/internal/domain"
	"speedmeter/internal/metrics"
	"speedmeter/internal/usecase"
)

const megabyte = 1 << 20

type pingResponse struct {
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET or HEAD")
		return
	}

	w.Header().Set("Cache-Control", "no-store, max-age=0")
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, pingResponse{
		Message:   "pong",
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	key, ok := s.admit(w, r)
	if !ok {
		return
	}

	sizeMB, err := parseSizeMB(r.URL.Query().Get("size"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "size must be a positive integer (MB)")
		return
	}
	if sizeMB == 0 {
		sizeMB = s.defaultSizeMB
	}
	chunkSize := s.download.ClampChunkSize(parseChunkBytes(r.URL.Query().Get("chunk")))

	// A size that would overflow the byte count saturates instead of
	// wrapping, so the bound check still rejects it.
	totalBytes := int64(math.MaxInt64)
	if sizeMB <= math.MaxInt64/megabyte {
		totalBytes = sizeMB * megabyte
	}

	// Validation happens before any session exists; an out-of-bounds size
	// never starts a partial stream.
	session, err := s.download.NewSized(totalBytes, chunkSize)
	if err != nil {
		writeStreamError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	w.Header().Set("Content-Length", strconv.FormatInt(totalBytes, 10))
	w.WriteHeader(http.StatusOK)

	s.activeTransfers.Add(1)
	result := s.download.Run(r.Context(), session, newFlushWriter(w))
	s.activeTransfers.Add(-1)
	s.recordTransfer(result)

	if result.State == domain.SessionCompleted {
		s.limiter.Forgive(key)
	}
}

func (s *Server) handleDownloadProgressive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	key, ok := s.admit(w, r)
	if !ok {
		return
	}

	durationMs, err := strconv.ParseInt(r.URL.Query().Get("duration"), 10, 64)
	if err != nil || durationMs <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "duration must be a positive integer (ms)")
		return
	}
	chunkSize := s.download.ClampChunkSize(parseChunkBytes(r.URL.Query().Get("chunk")))

	// Same saturation as the download size: an overflowing millisecond value
	// must land above the duration bound, not wrap below it.
	duration := time.Duration(math.MaxInt64)
	if durationMs <= math.MaxInt64/int64(time.Millisecond) {
		duration = time.Duration(durationMs) * time.Millisecond
	}
	session, err := s.download.NewTimed(duration, chunkSize)
	if err != nil {
		writeStreamError(w, err)
		return
	}

	// Duration-bounded streams have no total size; the response stays
	// chunked and terminates at the deadline.
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	w.WriteHeader(http.StatusOK)

	s.activeTransfers.Add(1)
	result := s.download.Run(r.Context(), session, newFlushWriter(w))
	s.activeTransfers.Add(-1)
	s.recordTransfer(result)

	if result.State == domain.SessionCompleted {
		s.limiter.Forgive(key)
	}
}

type uploadResponse struct {
	BytesReceived int64 `json:"bytesReceived"`
	ElapsedMs     int64 `json:"elapsedMs"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}
	key, ok := s.admit(w, r)
	if !ok {
		return
	}

	result, err := s.upload.Execute(r.Context(), r.Body)
	s.bytesReceived.Add(result.BytesReceived)
	if err != nil {
		if r.Context().Err() != nil {
			// Client went away mid-upload; nothing to respond to.
			s.logger.Debug("upload aborted by client",
				slog.Int64("bytesReceived", result.BytesReceived))
			return
		}
		writeError(w, http.StatusBadRequest, "upload_failed", "could not read upload body")
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		BytesReceived: result.BytesReceived,
		ElapsedMs:     result.Elapsed.Milliseconds(),
	})
	s.limiter.Forgive(key)
}

type healthResponse struct {
	Status          string `json:"status"`
	UptimeSeconds   int64  `json:"uptimeSeconds"`
	ActiveTransfers int64  `json:"activeTransfers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:          "ok",
		UptimeSeconds:   int64(time.Since(s.startedAt).Seconds()),
		ActiveTransfers: s.activeTransfers.Load(),
	})
}

// admit runs the per-client admission window. Denials carry a Retry-After
// hint with the remaining window time.
func (s *Server) admit(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := clientIP(r)
	decision := s.limiter.Admit(key)
	if !decision.Allowed {
		metrics.RateLimitRejectionsTotal.Inc()
		retrySec := int(math.Ceil(decision.RetryAfter.Seconds()))
		if retrySec < 1 {
			retrySec = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retrySec))
		writeError(w, http.StatusTooManyRequests, "rate_limited", "request quota exhausted for this client")
		return key, false
	}
	return key, true
}

func writeStreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrSizeTooLarge),
		errors.Is(err, usecase.ErrSizeTooSmall):
		writeError(w, http.StatusBadRequest, "size_out_of_bounds", err.Error())
	case errors.Is(err, usecase.ErrDurationTooLong),
		errors.Is(err, usecase.ErrDurationTooShort):
		writeError(w, http.StatusBadRequest, "duration_out_of_bounds", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
