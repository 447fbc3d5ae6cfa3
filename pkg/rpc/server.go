// Package rpc provides a lightweight JSON-over-TCP RPC framework for
// internal service-to-service calls.
//
// Protocol: newline-delimited JSON over a persistent TCP connection. Each
// request carries a method name in "Service.Method" form, a caller-chosen
// ID echoed back in the response, and an optional request ID that is
// attached to the handler's context for log correlation.
//
// Example server:
//
//	s := rpc.NewServer()
//	s.Register("SalaryEstimator.Options", func(ctx context.Context, _ json.RawMessage) (any, error) {
//	    return est.Options(), nil
//	})
//	go s.ListenAndServe(":9100")
//
// Example client:
//
//	c, _ := rpc.Dial(ctx, "localhost:9100")
//	var opts proto.OptionsResponse
//	c.Call(ctx, "SalaryEstimator.Options", nil, &opts)
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/hrdatainsights/salary-platform/pkg/errors"
	"github.com/hrdatainsights/salary-platform/pkg/logger"
)

// HandlerFunc processes an RPC request and returns a response or error.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Request is the wire format for an RPC request.
type Request struct {
	Method    string          `json:"method"`
	ID        string          `json:"id"`
	RequestID string          `json:"request_id,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// Response is the wire format for an RPC response. Code follows HTTP status
// semantics so callers can map failures the same way the HTTP API does.
type Response struct {
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
	Code  int             `json:"code,omitempty"`
}

// Server is a lightweight JSON-over-TCP RPC server.
type Server struct {
	handlers       map[string]HandlerFunc
	requestTimeout time.Duration
	logger         *slog.Logger

	mu       sync.RWMutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// NewServer creates a new RPC server. Handlers run with a 10s deadline
// unless SetRequestTimeout changes it.
func NewServer() *Server {
	return &Server{
		handlers:       make(map[string]HandlerFunc),
		requestTimeout: 10 * time.Second,
		logger:         slog.Default().With("component", "rpc-server"),
		conns:          make(map[net.Conn]struct{}),
		done:           make(chan struct{}),
	}
}

// SetRequestTimeout bounds each handler call. Zero disables the bound.
func (s *Server) SetRequestTimeout(d time.Duration) {
	s.mu.Lock()
	s.requestTimeout = d
	s.mu.Unlock()
}

// Register adds a handler for the given RPC method name.
// Method names follow the "Service.Method" convention.
func (s *Server) Register(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
	s.logger.Debug("method registered", "method", method)
}

// ListenAndServe listens on addr and serves until Stop is called.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. It blocks until Stop is called and then
// returns nil.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info("rpc server listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accept error", "error", err)
			continue
		}
		s.mu.Lock()
		select {
		case <-s.done:
			s.mu.Unlock()
			conn.Close()
			return nil
		default:
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	for {
		var req Request
		if err := decoder.Decode(&req); err != nil {
			return // connection closed or read error
		}

		resp := s.dispatch(req)
		if err := encoder.Encode(resp); err != nil {
			s.logger.Error("write error", "method", req.Method, "error", err)
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	s.mu.RLock()
	handler, exists := s.handlers[req.Method]
	timeout := s.requestTimeout
	s.mu.RUnlock()

	resp := Response{ID: req.ID}
	if !exists {
		resp.Error = fmt.Sprintf("unknown method: %s", req.Method)
		resp.Code = http.StatusNotFound
		return resp
	}

	ctx := context.Background()
	if req.RequestID != "" {
		ctx = logger.WithRequestID(ctx, req.RequestID)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	data, err := s.call(ctx, handler, req)
	log := logger.FromContext(ctx).With("component", "rpc-server", "method", req.Method)
	if err != nil {
		resp.Code = apperrors.HTTPStatusCode(err)
		resp.Error = apperrors.PublicMessage(err)
		if resp.Code >= http.StatusInternalServerError {
			log.Error("rpc call failed", "error", err, "duration", time.Since(start))
		} else {
			log.Debug("rpc call rejected", "error", err)
		}
		return resp
	}
	raw, err := json.Marshal(data)
	if err != nil {
		log.Error("encoding rpc result", "error", err)
		resp.Code = http.StatusInternalServerError
		resp.Error = "internal error"
		return resp
	}
	resp.Data = raw
	log.Debug("rpc call served", "duration", time.Since(start))
	return resp
}

// call runs handler and turns a panic into an internal error so one bad
// request cannot take the connection down.
func (s *Server) call(ctx context.Context, handler HandlerFunc, req Request) (data any, err error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("rpc handler panic", "method", req.Method, "panic", p)
			err = fmt.Errorf("%w: handler panic", apperrors.ErrInternal)
		}
	}()
	return handler(ctx, req.Params)
}

// MethodCount returns the number of registered methods.
func (s *Server) MethodCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// Stop closes the listener and every open connection, then waits for
// in-flight connection goroutines to exit. It is safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
		s.logger.Info("rpc server stopped")
	})
}
