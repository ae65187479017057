package evs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/evs-automation/evsctl/internal/evstest"
	"github.com/evs-automation/evsctl/internal/locator"
)

const testExecutable = "/opt/evs/bin/system/EarthVolumetricStudio.exe"

// fixture wires a Config to an in-memory EVS.
func fixture(t *testing.T, opts ...evstest.Option) (*evstest.Server, Config) {
	t.Helper()

	srv := evstest.New(opts...)
	t.Cleanup(srv.Exit)

	return srv, configFor(t, srv, srv.Lister())
}

func configFor(t *testing.T, srv *evstest.Server, lister locator.Lister) Config {
	t.Helper()

	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, testExecutable, []byte("MZ"), 0o755); err != nil {
		t.Fatalf("writing fake executable: %v", err)
	}

	loc := locator.New(
		locator.WithFs(fs),
		locator.WithLister(lister),
		locator.WithInstallations(func() ([]locator.Installation, error) { return nil, nil }),
		locator.WithLookPath(func(string) (string, error) { return "", errors.New("not on PATH") }),
	)

	return Config{
		Executable:     testExecutable,
		LaunchTimeout:  2 * time.Second,
		ConnectTimeout: 2 * time.Second,
		PollInterval:   5 * time.Millisecond,
		ShutdownGrace:  200 * time.Millisecond,
		Launcher:       srv.Launcher(),
		Attacher:       srv.Attach,
		Dialer:         srv.Dialer(),
		Locator:        loc,
	}
}

// started launches a session against srv and closes it at cleanup.
func started(t *testing.T, cfg Config) *Session {
	t.Helper()

	s, err := StartNew(context.Background(), cfg)
	if err != nil {
		t.Fatalf("StartNew() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
