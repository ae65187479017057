package transport

import (
	"context"
	"fmt"
	"io"
)

// endpointPrefix precedes the PID in every endpoint name.
const endpointPrefix = "EVS_"

// EndpointName returns the bare endpoint name for pid.
func EndpointName(pid int) string {
	return fmt.Sprintf("%s%d", endpointPrefix, pid)
}

// EndpointForPID returns the full platform-specific endpoint path for pid.
func EndpointForPID(pid int) string {
	return endpointPath(EndpointName(pid))
}

// Dialer opens a byte stream to an endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (io.ReadWriteCloser, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, endpoint string) (io.ReadWriteCloser, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, endpoint string) (io.ReadWriteCloser, error) {
	return f(ctx, endpoint)
}

// SystemDialer dials named pipes on Windows and unix sockets elsewhere.
type SystemDialer struct{}

// Dial opens endpoint. It fails immediately when nothing is listening; callers
// poll for readiness.
func (SystemDialer) Dial(ctx context.Context, endpoint string) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return dialEndpoint(ctx, endpoint)
}
