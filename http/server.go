package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	DefaultReadTimeout  = 5 * time.Second
	DefaultWriteTimeout = 5 * time.Second
)

type Server struct {
	Name    string
	Handler Handler
	Logger  *slog.Logger

	// Workers is the number of connections served at once. 1 serves
	// connections strictly one after another.
	Workers        int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxHeaderBytes int

	// Limiter throttles accepted connections when set.
	Limiter *rate.Limiter
}

func NewServer(name string, handler Handler, logger *slog.Logger) *Server {
	return &Server{
		Name:           name,
		Handler:        handler,
		Logger:         logger,
		Workers:        1,
		ReadTimeout:    DefaultReadTimeout,
		WriteTimeout:   DefaultWriteTimeout,
		MaxHeaderBytes: DefaultMaxHeaderBytes,
	}
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listener)
}

// Serve accepts connections until ctx is done, then closes listener, waits
// for in-flight connections and returns nil. Accept errors are logged and
// retried with backoff.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		listener.Close()
	})
	defer stop()

	// in-flight connections outlive shutdown
	connCtx := context.WithoutCancel(ctx)
	pool := NewWorkerPool(s.Workers, func(reqCtx *RequestCtx, conn net.Conn) {
		s.serveConn(connCtx, reqCtx, conn)
	})
	defer pool.Stop()

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 5 * time.Millisecond
	retry.MaxInterval = time.Second
	retry.MaxElapsedTime = 0

	for {
		if s.Limiter != nil {
			if err := s.Limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}

		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}

			delay := retry.NextBackOff()
			s.Logger.Error("failed to accept connection", "error", err, "retry_in", delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		retry.Reset()

		pool.Serve(conn)
	}
}

// ServeConn serves a single request on conn and closes it.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	s.serveConn(ctx, NewRequestCtx(), conn)
}

func (s *Server) serveConn(ctx context.Context, reqCtx *RequestCtx, conn net.Conn) {
	reqCtx.Reset(ctx, conn, s.Logger)
	defer func() {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			reqCtx.Logger.Debug("closing connection error", "error", err)
		}
	}()

	if s.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
	}

	var parseErr *ParseError
	err := reqCtx.Request.Parse(reqCtx.ConnReader, s.MaxHeaderBytes)
	switch {
	case err == nil:
		s.Handler(reqCtx)
	case errors.As(err, &parseErr):
		reqCtx.Logger.Debug("malformed request", "error", err)
		reqCtx.WithStatus(StatusBadRequest)
	case errors.Is(err, io.EOF):
		return
	default:
		reqCtx.Logger.Warn("failed to read request", "error", err)
		return
	}

	if reqCtx.Response == nil {
		NotFoundHandler(reqCtx)
	}

	if s.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
	}

	if err := reqCtx.Response.Write(reqCtx.ConnWriter); err != nil {
		reqCtx.Logger.Warn("failed to write response", "error", err)
	}
}
