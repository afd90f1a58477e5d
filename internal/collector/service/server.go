package service

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const defaultMaxBodySize = 64 * 1024

// ServerOptions tunes the public fasthttp server
type ServerOptions struct {
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	MaxRequestBodySize int
}

// Server is the public collector listener
type Server struct {
	server   *fasthttp.Server
	listener net.Listener
	logger   *zap.Logger
}

func NewServer(handler fasthttp.RequestHandler, opts ServerOptions, logger *zap.Logger) *Server {
	maxBody := opts.MaxRequestBodySize
	if maxBody <= 0 {
		maxBody = defaultMaxBodySize
	}
	return &Server{
		server: &fasthttp.Server{
			Handler:            handler,
			Name:               "Beacon-Collector",
			ReadTimeout:        opts.ReadTimeout,
			WriteTimeout:       opts.WriteTimeout,
			MaxRequestBodySize: maxBody,
			TCPKeepalive:       true,
		},
		logger: logger,
	}
}

// ListenAndServe blocks until the server stops
func (s *Server) ListenAndServe(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	return s.Serve(listener)
}

// Serve accepts connections from listener until Shutdown
func (s *Server) Serve(listener net.Listener) error {
	s.listener = listener
	s.logger.Info("Collector listening", zap.String("address", listener.Addr().String()))
	return s.server.Serve(listener)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down collector server")
	return s.server.ShutdownWithContext(ctx)
}
