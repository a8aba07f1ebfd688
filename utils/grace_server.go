package utils

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	DefaultReadTimeout     = 60 * time.Second
	DefaultWriteTimeout    = DefaultReadTimeout
	DefaultShutdownTimeout = 30 * time.Second
)

// Server wraps http.Server with signal driven graceful shutdown.
type Server struct {
	*http.Server

	signalChan chan os.Signal
	onShutdown []func()
}

// NewServer creates a Server with timeouts and handler.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *Server {
	return &Server{
		Server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		signalChan: make(chan os.Signal, 1),
	}
}

// OnShutdown registers fn to run after the HTTP server has drained.
func (srv *Server) OnShutdown(fn func()) {
	srv.onShutdown = append(srv.onShutdown, fn)
}

// ListenAndServe serves until SIGTERM or SIGINT, then drains in-flight requests.
func (srv *Server) ListenAndServe() error {
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return srv.Serve(ln)
}

// Serve serves on ln with the same shutdown handling as ListenAndServe.
func (srv *Server) Serve(ln net.Listener) error {
	signal.Notify(srv.signalChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(srv.signalChan)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sig, ok := <-srv.signalChan
		if !ok {
			return
		}
		Sugar.Infof("received %s, graceful shutting down HTTP server", sig)
		srv.shutdown()
	}()

	err := srv.Server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return err
}

// Stop triggers the same path as a SIGTERM.
func (srv *Server) Stop() {
	srv.signalChan <- syscall.SIGTERM
}

func (srv *Server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		Sugar.Errorf("HTTP server shutdown error: %v", err)
	} else {
		Sugar.Info("HTTP server shutdown success")
	}
	for _, fn := range srv.onShutdown {
		fn()
	}
}

// GraceServer starts an HTTP server with graceful shutdown.
func GraceServer(addr string, handler http.Handler, onShutdown ...func()) error {
	srv := NewServer(addr, handler, DefaultReadTimeout, DefaultWriteTimeout)
	for _, fn := range onShutdown {
		srv.OnShutdown(fn)
	}
	return srv.ListenAndServe()
}
