package apihttp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"speedmeter/internal/domain"
	"speedmeter/internal/ratelimit"
	"speedmeter/internal/usecase"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type DownloadUseCase interface {
	ClampChunkSize(requested int) int
	NewSized(totalBytes int64, chunkSize int) (*domain.TransferSession, error)
	NewTimed(duration time.Duration, chunkSize int) (*domain.TransferSession, error)
	Run(ctx context.Context, session *domain.TransferSession, sink io.Writer) usecase.StreamResult
}

type UploadUseCase interface {
	Execute(ctx context.Context, body io.Reader) (usecase.UploadResult, error)
}

// Admitter is the per-client admission gate in front of measurement
// endpoints.
type Admitter interface {
	Admit(key string) ratelimit.Decision
	Forgive(key string)
}

// noopAdmitter admits everything; used when no limiter is configured.
type noopAdmitter struct{}

func (noopAdmitter) Admit(string) ratelimit.Decision { return ratelimit.Decision{Allowed: true} }
func (noopAdmitter) Forgive(string)                  {}

type Server struct {
	download       DownloadUseCase
	upload         UploadUseCase
	limiter        Admitter
	allowedOrigins []string
	defaultSizeMB  int64
	globalRPS      float64
	globalBurst    int
	logger         *slog.Logger
	handler        http.Handler
	wsHub          *wsHub
	startedAt      time.Time

	activeTransfers    atomic.Int64
	transfersCompleted atomic.Int64
	transfersAborted   atomic.Int64
	bytesStreamed      atomic.Int64
	bytesReceived      atomic.Int64
}

type ServerOption func(*Server)

func WithUpload(uc UploadUseCase) ServerOption {
	return func(s *Server) {
		s.upload = uc
	}
}

func WithLimiter(limiter Admitter) ServerOption {
	return func(s *Server) {
		s.limiter = limiter
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAllowedOrigins configures the CORS allowed origins whitelist.
// When empty (default), any origin is permitted (development mode).
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithDefaultDownloadMB sets the size used when /download omits the size
// query parameter.
func WithDefaultDownloadMB(mb int64) ServerOption {
	return func(s *Server) {
		if mb > 0 {
			s.defaultSizeMB = mb
		}
	}
}

// WithGlobalRate configures the process-wide token bucket that fronts every
// endpoint except health and metrics.
func WithGlobalRate(rps float64, burst int) ServerOption {
	return func(s *Server) {
		s.globalRPS = rps
		s.globalBurst = burst
	}
}

func NewServer(download DownloadUseCase, opts ...ServerOption) *Server {
	s := &Server{
		download:      download,
		defaultSizeMB: 10,
		globalRPS:     100,
		globalBurst:   200,
		startedAt:     time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.upload == nil {
		s.upload = usecase.ReceiveUpload{}
	}
	if s.limiter == nil {
		s.limiter = noopAdmitter{}
	}

	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", s.handlePing)
	mux.HandleFunc("/download", s.handleDownload)
	mux.HandleFunc("/download-progressive", s.handleDownloadProgressive)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.handleWS)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "speedmeter",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(s.globalRPS, s.globalBurst, metricsMiddleware(corsMiddleware(s.allowedOrigins, traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close disconnects all WebSocket clients and stops the hub.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{
		hub:  s.wsHub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.wsHub.register <- client
	go client.writePump()
	go client.readPump()
}

type serverStats struct {
	ActiveTransfers    int64 `json:"activeTransfers"`
	TransfersCompleted int64 `json:"transfersCompleted"`
	TransfersAborted   int64 `json:"transfersAborted"`
	BytesStreamed      int64 `json:"bytesStreamed"`
	BytesReceived      int64 `json:"bytesReceived"`
	UptimeSeconds      int64 `json:"uptimeSeconds"`
}

func (s *Server) snapshotStats() serverStats {
	return serverStats{
		ActiveTransfers:    s.activeTransfers.Load(),
		TransfersCompleted: s.transfersCompleted.Load(),
		TransfersAborted:   s.transfersAborted.Load(),
		BytesStreamed:      s.bytesStreamed.Load(),
		BytesReceived:      s.bytesReceived.Load(),
		UptimeSeconds:      int64(time.Since(s.startedAt).Seconds()),
	}
}

// BroadcastStats pushes current transfer statistics to all WebSocket clients.
func (s *Server) BroadcastStats() {
	if s.wsHub != nil {
		s.wsHub.Broadcast("stats", s.snapshotStats())
	}
}

func (s *Server) recordTransfer(result usecase.StreamResult) {
	s.bytesStreamed.Add(result.BytesSent)
	if result.State == domain.SessionCompleted {
		s.transfersCompleted.Add(1)
	} else {
		s.transfersAborted.Add(1)
	}
}
