package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	evserrors "github.com/evs-automation/evsctl/internal/errors"
	"github.com/evs-automation/evsctl/internal/logging"
)

// Conn is a synchronous request/response connection to one endpoint.
// It is safe for concurrent use; calls are serialized.
type Conn struct {
	endpoint string
	rwc      io.ReadWriteCloser
	enc      *encoder
	dec      *decoder
	logger   *logging.Logger

	// slot holds a token while a call owns the stream.
	slot chan struct{}

	mu     sync.Mutex
	closed bool
	lost   error
}

type callResult struct {
	resp *Response
	err  error
}

// NewConn wraps an open stream. A nil logger disables logging.
func NewConn(endpoint string, rwc io.ReadWriteCloser, logger *logging.Logger) *Conn {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Conn{
		endpoint: endpoint,
		rwc:      rwc,
		enc:      &encoder{w: rwc},
		dec:      newDecoder(rwc),
		logger:   logger.With("endpoint", endpoint),
		slot:     make(chan struct{}, 1),
	}
}

// Dial opens endpoint with d and wraps it in a Conn.
func Dial(ctx context.Context, d Dialer, endpoint string, logger *logging.Logger) (*Conn, error) {
	rwc, err := d.Dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return NewConn(endpoint, rwc, logger), nil
}

// Endpoint returns the endpoint path this connection was opened on.
func (c *Conn) Endpoint() string { return c.endpoint }

// Call sends one request and waits for its reply.
//
// If ctx ends first, Call returns ctx.Err() and the request keeps the
// connection until its reply arrives and is discarded. A read or write
// failure closes the connection and every later Call fails with
// ErrConnectionLost.
func (c *Conn) Call(ctx context.Context, method string, args ...any) (*Response, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}

	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Another call may have lost the connection while we queued.
	if err := c.usable(); err != nil {
		<-c.slot
		return nil, err
	}

	log := c.logger.WithMethod(method)
	start := time.Now()
	done := make(chan callResult, 1)

	go func() {
		defer func() { <-c.slot }()
		resp, err := c.roundTrip(method, args)
		if err != nil {
			err = c.fail(err)
		}
		done <- callResult{resp: resp, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			log.Warn("call failed", "error", res.err.Error(), "duration_ms", time.Since(start).Milliseconds())
			return nil, res.err
		}
		log.Debug("call completed", "success", res.resp.Success, "duration_ms", time.Since(start).Milliseconds())
		return res.resp, nil
	case <-ctx.Done():
		log.Warn("call abandoned; reply will be discarded", "duration_ms", time.Since(start).Milliseconds())
		return nil, ctx.Err()
	}
}

func (c *Conn) roundTrip(method string, args []any) (*Response, error) {
	if err := c.enc.Encode(Request{Method: method, Args: args}); err != nil {
		return nil, fmt.Errorf("sending %s: %w", method, err)
	}
	resp, err := c.dec.Decode()
	if err != nil {
		return nil, fmt.Errorf("reading %s reply: %w", method, err)
	}
	return resp, nil
}

// fail records an I/O failure and converts it to the error callers see.
func (c *Conn) fail(cause error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("%w: %v", evserrors.ErrSessionClosed, cause)
	}
	if c.lost == nil {
		c.lost = cause
		_ = c.rwc.Close()
	}
	return fmt.Errorf("%w: %v", evserrors.ErrConnectionLost, cause)
}

func (c *Conn) usable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return evserrors.ErrSessionClosed
	case c.lost != nil:
		return fmt.Errorf("%w: %v", evserrors.ErrConnectionLost, c.lost)
	}
	return nil
}

// Busy reports whether a call, or the drain of an abandoned call, holds the
// connection.
func (c *Conn) Busy() bool { return len(c.slot) > 0 }

// Lost returns the I/O error that broke the connection, or nil.
func (c *Conn) Lost() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lost
}

// Close closes the stream. An in-flight call fails with ErrSessionClosed.
// Close is idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	alreadyLost := c.lost != nil
	c.mu.Unlock()

	if alreadyLost {
		return nil
	}
	return c.rwc.Close()
}
