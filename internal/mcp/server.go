// Package mcp exposes the conversion tools over the Model Context Protocol,
// either on stdio or on streamable HTTP.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"convertmcp/internal/config"
)

// ServerName is the MCP implementation name announced to clients.
const ServerName = "file-convert-mcp"

const (
	rateLimitCleanupInterval = time.Minute
	rateLimitIdleTTL         = 10 * time.Minute
	shutdownTimeout          = 5 * time.Second
)

// ServerOptions for running the MCP server.
type ServerOptions struct {
	Config  *config.Config
	Tools   ToolService
	Logger  zerolog.Logger
	Version string
}

type Server struct {
	cfg     *config.Config
	tools   ToolService
	logger  zerolog.Logger
	mcp     *mcpsdk.Server
	limiter *clientLimiter
}

func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("mcp: config is required")
	}
	if opts.Tools == nil {
		return nil, errors.New("mcp: tool service is required")
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	s := &Server{
		cfg:     opts.Config,
		tools:   opts.Tools,
		logger:  opts.Logger,
		mcp:     mcpsdk.NewServer(&mcpsdk.Implementation{Name: ServerName, Version: version}, nil),
		limiter: newClientLimiter(float64(opts.Config.RateLimitRPS), opts.Config.RateLimitBurst),
	}
	s.registerTools()
	return s, nil
}

// RunStdio serves one MCP session over stdin/stdout until ctx is cancelled or
// the client disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	s.logger.Info().Str("transport", config.TransportStdio).Msg("mcp server ready")
	err := s.mcp.Run(ctx, &mcpsdk.StdioTransport{})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handler returns the HTTP routes: the MCP endpoint behind the rate limiter,
// GET /health and GET /tools.
func (s *Server) Handler() http.Handler {
	streamable := mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return s.mcp
	}, nil)

	mux := http.NewServeMux()
	mux.Handle(s.cfg.MCPPath, s.rateLimit(streamable))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /tools", s.handleTools)
	return mux
}

// Serve blocks while handling HTTP. Cancel ctx to initiate graceful
// shutdown; in-flight requests are allowed to drain.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	go s.cleanupLoop(cleanupCtx)

	s.logger.Info().
		Str("transport", config.TransportHTTP).
		Str("addr", listener.Addr().String()).
		Str("mcp_path", s.cfg.MCPPath).
		Msg("mcp server ready")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(listener) }()
	select {
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(rateLimitCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.forget(rateLimitIdleTTL)
		}
	}
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientAddress(r)
		if ok, wait := s.limiter.take(client); !ok {
			s.logger.Warn().Str("client_ip", client).Dur("retry_after", wait).Msg("rate limit exceeded")
			w.Header().Set("Retry-After", retryAfter(wait))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "mcp-server"})
}

type toolsResponse struct {
	Tools      []ToolInfo `json:"tools"`
	TotalTools int        `json:"total_tools"`
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	tools := Tools()
	writeJSON(w, http.StatusOK, toolsResponse{Tools: tools, TotalTools: len(tools)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
