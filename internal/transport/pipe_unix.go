//go:build !windows

package transport

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
)

// endpointPath places the socket in XDG_RUNTIME_DIR, falling back to the
// temp directory.
func endpointPath(name string) string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, name)
}

func dialEndpoint(ctx context.Context, endpoint string) (io.ReadWriteCloser, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", endpoint)
}
