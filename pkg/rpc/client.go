package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	apperrors "github.com/hrdatainsights/salary-platform/pkg/errors"
	"github.com/hrdatainsights/salary-platform/pkg/logger"
)

// RemoteError is a failure reported by the server. It unwraps to the
// platform sentinel matching Code, so callers can use errors.Is.
type RemoteError struct {
	Method  string
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpc %s: %s (code %d)", e.Method, e.Message, e.Code)
}

func (e *RemoteError) Unwrap() error {
	switch e.Code {
	case http.StatusBadRequest:
		return apperrors.ErrInvalidInput
	case http.StatusNotFound:
		return apperrors.ErrNotFound
	case http.StatusTooManyRequests:
		return apperrors.ErrRateLimited
	case http.StatusServiceUnavailable:
		return apperrors.ErrDatasetUnavailable
	default:
		return apperrors.ErrInternal
	}
}

// Client is a lightweight JSON-over-TCP RPC client. Calls are serialized on
// one connection.
type Client struct {
	conn    net.Conn
	encoder *json.Encoder
	decoder *json.Decoder
	mu      sync.Mutex
	nextID  atomic.Int64
}

// Dial connects to an RPC server at the given address.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return &Client{
		conn:    conn,
		encoder: json.NewEncoder(conn),
		decoder: json.NewDecoder(conn),
	}, nil
}

// Call invokes the named RPC method with params and decodes the response
// into result. The context deadline bounds the round trip, and a request ID
// stored in ctx is forwarded to the server. Call is safe for concurrent use.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	id := c.nextID.Add(1)

	req := Request{
		Method:    method,
		ID:        strconv.FormatInt(id, 10),
		RequestID: logger.RequestID(ctx),
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshaling params: %w", err)
		}
		req.Params = raw
	}

	// Zero deadline clears any previous one.
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("setting deadline: %w", err)
	}

	if err := c.encoder.Encode(req); err != nil {
		return fmt.Errorf("sending request: %w", err)
	}

	var resp Response
	if err := c.decoder.Decode(&resp); err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return fmt.Errorf("%w: %s", apperrors.ErrTimeout, method)
		}
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.ID != req.ID {
		return fmt.Errorf("response id %q does not match request %q", resp.ID, req.ID)
	}

	if resp.Error != "" {
		return &RemoteError{Method: method, Code: resp.Code, Message: resp.Error}
	}

	if result != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, result); err != nil {
			return fmt.Errorf("unmarshaling into result: %w", err)
		}
	}

	return nil
}

// Close closes the underlying TCP connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
