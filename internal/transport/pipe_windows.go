//go:build windows

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/windows"
)

func endpointPath(name string) string {
	return `\\.\pipe\` + name
}

func dialEndpoint(_ context.Context, endpoint string) (io.ReadWriteCloser, error) {
	name, err := windows.UTF16PtrFromString(endpoint)
	if err != nil {
		return nil, err
	}

	h, err := windows.CreateFile(
		name,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", endpoint, err)
	}

	mode := uint32(windows.PIPE_READMODE_MESSAGE)
	if err := windows.SetNamedPipeHandleState(h, &mode, nil, nil); err != nil {
		_ = windows.CloseHandle(h)
		return nil, fmt.Errorf("setting message mode on %s: %w", endpoint, err)
	}

	return &messagePipe{File: os.NewFile(uintptr(h), endpoint)}, nil
}

// messagePipe treats a partially read message as a successful short read;
// the rest of the message arrives on the next Read.
type messagePipe struct {
	*os.File
}

func (p *messagePipe) Read(b []byte) (int, error) {
	n, err := p.File.Read(b)
	if err != nil && errors.Is(err, windows.ERROR_MORE_DATA) {
		return n, nil
	}
	return n, err
}
