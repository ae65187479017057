package locator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"

	evserrors "github.com/evs-automation/evsctl/internal/errors"
)

// DefaultProcessName is the image name EVS runs under.
const DefaultProcessName = "EarthVolumetricStudio.exe"

// executableBase is the file name of the EVS binary without extension.
const executableBase = "EarthVolumetricStudio"

// Instance describes one running process that matched a lookup.
type Instance struct {
	PID        int
	Name       string
	Executable string
	Started    time.Time
}

// Lister enumerates running processes.
type Lister interface {
	List(ctx context.Context) ([]Instance, error)
}

// ListerFunc adapts a function to the Lister interface.
type ListerFunc func(ctx context.Context) ([]Instance, error)

// List calls f.
func (f ListerFunc) List(ctx context.Context) ([]Instance, error) { return f(ctx) }

// ExecutableOptions controls ResolveExecutable.
type ExecutableOptions struct {
	// Override is an explicit executable path. When set, nothing else is consulted.
	Override string
	// Version requests a specific installed version.
	Version string
	// PreferDevelopment selects a development build when one is installed.
	PreferDevelopment bool
}

// Locator resolves executables and scans running processes.
type Locator struct {
	fs            afero.Fs
	lister        Lister
	installations func() ([]Installation, error)
	lookPath      func(string) (string, error)
}

// Option configures a Locator.
type Option func(*Locator)

// WithFs sets the filesystem used to check executable paths.
func WithFs(fs afero.Fs) Option {
	return func(l *Locator) { l.fs = fs }
}

// WithLister replaces the OS process table.
func WithLister(lister Lister) Option {
	return func(l *Locator) { l.lister = lister }
}

// WithInstallations replaces the installation registry lookup.
func WithInstallations(fn func() ([]Installation, error)) Option {
	return func(l *Locator) { l.installations = fn }
}

// WithLookPath replaces the PATH search.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(l *Locator) { l.lookPath = fn }
}

// New creates a Locator backed by the operating system.
func New(opts ...Option) *Locator {
	l := &Locator{
		fs:            afero.NewOsFs(),
		lister:        systemLister{},
		installations: systemInstallations,
		lookPath:      systemLookPath,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ResolveExecutable returns the path of the EVS executable to launch. It
// fails with ErrExecutableNotFound when no candidate exists on disk.
func (l *Locator) ResolveExecutable(opts ExecutableOptions) (string, error) {
	if opts.Override != "" {
		if err := l.checkFile(opts.Override); err != nil {
			return "", evserrors.NewLaunchError("configured executable is not usable",
				fmt.Errorf("%w: %w", evserrors.ErrExecutableNotFound, err)).WithExecutable(opts.Override)
		}
		return opts.Override, nil
	}

	installs, err := l.installations()
	if err != nil {
		return "", evserrors.NewLaunchError("reading installation registry",
			fmt.Errorf("%w: %w", evserrors.ErrExecutableNotFound, err))
	}
	if inst, ok := ChooseInstallation(installs, opts.Version, opts.PreferDevelopment); ok {
		path := InstallationExecutable(inst)
		if err := l.checkFile(path); err != nil {
			return "", evserrors.NewLaunchError(fmt.Sprintf("installation %q is incomplete", inst.Version),
				fmt.Errorf("%w: %w", evserrors.ErrExecutableNotFound, err)).WithExecutable(path)
		}
		return path, nil
	}

	path, err := l.lookPath(executableBase)
	if err != nil {
		return "", evserrors.NewLaunchError("no EVS installation found",
			fmt.Errorf("%w: %w", evserrors.ErrExecutableNotFound, err))
	}
	if err := l.checkFile(path); err != nil {
		return "", evserrors.NewLaunchError("executable on PATH is not usable",
			fmt.Errorf("%w: %w", evserrors.ErrExecutableNotFound, err)).WithExecutable(path)
	}
	return path, nil
}

// InstallationExecutable returns the executable path inside an installation.
// Development builds keep the binary at the root of Path; releases keep it
// under bin/system.
func InstallationExecutable(inst Installation) string {
	name := executableBase + ".exe"
	if inst.IsDevelopment() {
		return filepath.Join(inst.Path, name)
	}
	return filepath.Join(inst.Path, "bin", "system", name)
}

func (l *Locator) checkFile(path string) error {
	info, err := l.fs.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

// Find returns the running processes whose name matches pattern, ordered by
// PID. An empty pattern means DefaultProcessName. Matching ignores case and
// tolerates a missing ".exe" suffix so the same pattern works on every OS.
func (l *Locator) Find(ctx context.Context, pattern string) ([]Instance, error) {
	if pattern == "" {
		pattern = DefaultProcessName
	}
	g, err := glob.Compile(strings.ToLower(pattern))
	if err != nil {
		return nil, evserrors.NewValidationError("invalid process name pattern").
			WithField("pattern").WithValue(pattern).WithCause(err)
	}

	all, err := l.lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}

	self := os.Getpid()
	var matches []Instance
	for _, inst := range all {
		if inst.PID == self {
			continue
		}
		if matchName(g, inst.Name) {
			matches = append(matches, inst)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].PID < matches[j].PID })
	return matches, nil
}

func matchName(g glob.Glob, name string) bool {
	lower := strings.ToLower(name)
	if g.Match(lower) {
		return true
	}
	return !strings.HasSuffix(lower, ".exe") && g.Match(lower+".exe")
}

// Select picks exactly one running instance. With pid > 0 the process must
// exist; its name is not checked. Otherwise the pattern must match exactly
// one process.
func (l *Locator) Select(ctx context.Context, pid int, pattern string) (Instance, error) {
	if pid > 0 {
		all, err := l.lister.List(ctx)
		if err != nil {
			return Instance{}, fmt.Errorf("listing processes: %w", err)
		}
		for _, inst := range all {
			if inst.PID == pid {
				return inst, nil
			}
		}
		return Instance{}, evserrors.NewAttachError(fmt.Sprintf("process %d not found", pid), evserrors.ErrNoInstanceFound).WithPID(pid)
	}

	if pattern == "" {
		pattern = DefaultProcessName
	}
	matches, err := l.Find(ctx, pattern)
	if err != nil {
		return Instance{}, err
	}

	switch len(matches) {
	case 0:
		return Instance{}, evserrors.NewAttachError("no running process matches", evserrors.ErrNoInstanceFound).WithPattern(pattern)
	case 1:
		return matches[0], nil
	default:
		pids := make([]int, len(matches))
		for i, m := range matches {
			pids[i] = m.PID
		}
		return Instance{}, evserrors.NewAttachError(fmt.Sprintf("%d processes match; pass a pid", len(matches)), evserrors.ErrAmbiguousInstance).
			WithPattern(pattern).
			WithCandidates(pids)
	}
}

func systemLookPath(name string) (string, error) {
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return lookPath(name)
}
