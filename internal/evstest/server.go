// Package evstest provides an in-memory Earth Volumetric Studio endpoint for
// tests. A Server speaks the automation wire protocol over net.Pipe, keeps a
// small module graph with typed properties, and stands in for the EVS process
// itself so launch, attach and shutdown paths can run without the real
// application.
package evstest

import (
	"context"
	"fmt"
	"io"
	"net"
	"sort"
	"sync"
	"time"

	evserrors "github.com/evs-automation/evsctl/internal/errors"
	"github.com/evs-automation/evsctl/internal/instance/process"
	"github.com/evs-automation/evsctl/internal/locator"
	"github.com/evs-automation/evsctl/internal/transport"
)

// Placement positions one module in a document.
type Placement struct {
	Type string
	Name string
	X, Y int
}

// Script is the simulated effect of running a script file.
type Script struct {
	// Delay is how long the call takes.
	Delay time.Duration
	// Error, when set, is returned as the remote failure text.
	Error string
	// Run is applied to the server after the delay.
	Run func(s *Server)
}

// Call records one request the server received.
type Call struct {
	Method string
	Args   []any
}

type module struct {
	typ       string
	x, y      int
	props     map[string]any
	portProps map[string]map[string]any
}

type link struct {
	from, fromPort, to, toPort string
}

// Server is a fake EVS instance. It is safe for concurrent use.
type Server struct {
	mu sync.Mutex

	pid        int
	apiVersion any
	appVersion string
	catalog    map[string]ModuleType
	readyAt    time.Time

	ignoreShutdown  bool
	exitBeforeReady bool
	shutdownDelay   time.Duration
	delays          map[string]time.Duration

	modules     map[string]*module
	links       []link
	documents   map[string][]Placement
	scripts     map[string]Script
	application string
	suspended   bool
	cancel      bool

	calls    []Call
	launches []process.Config
	conns    map[io.Closer]struct{}

	exitOnce sync.Once
	exited   chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithPID sets the process identifier the fake reports.
func WithPID(pid int) Option {
	return func(s *Server) { s.pid = pid }
}

// WithAPIVersion sets the value returned by Version.
func WithAPIVersion(v any) Option {
	return func(s *Server) { s.apiVersion = v }
}

// WithReadyAfter delays the endpoint accepting connections.
func WithReadyAfter(d time.Duration) Option {
	return func(s *Server) { s.readyAt = time.Now().Add(d) }
}

// WithCatalog replaces the module types.
func WithCatalog(c map[string]ModuleType) Option {
	return func(s *Server) { s.catalog = c }
}

// WithMethodDelay makes every call of method take d.
func WithMethodDelay(method string, d time.Duration) Option {
	return func(s *Server) { s.delays[method] = d }
}

// WithShutdownDelay makes the process take d to exit after Shutdown.
func WithShutdownDelay(d time.Duration) Option {
	return func(s *Server) { s.shutdownDelay = d }
}

// IgnoreShutdown makes the process keep running after a Shutdown request, so
// only termination stops it.
func IgnoreShutdown() Option {
	return func(s *Server) { s.ignoreShutdown = true }
}

// ExitBeforeReady makes a launched process exit without ever listening.
func ExitBeforeReady() Option {
	return func(s *Server) { s.exitBeforeReady = true }
}

// New creates a running fake instance.
func New(opts ...Option) *Server {
	s := &Server{
		pid:        4120,
		apiVersion: 1.0,
		appVersion: "2024.10.1",
		catalog:    DefaultCatalog(),
		delays:     make(map[string]time.Duration),
		modules:    make(map[string]*module),
		documents:  make(map[string][]Placement),
		scripts:    make(map[string]Script),
		conns:      make(map[io.Closer]struct{}),
		exited:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PID returns the fake process identifier.
func (s *Server) PID() int { return s.pid }

// Endpoint returns the endpoint path a client would dial for this server.
func (s *Server) Endpoint() string { return transport.EndpointForPID(s.pid) }

// AddDocument registers an application file that LoadApplication accepts.
func (s *Server) AddDocument(path string, modules ...Placement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[path] = modules
}

// AddScript registers a script file that ExecuteScript accepts.
func (s *Server) AddScript(path string, script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[path] = script
}

// RequestCancel simulates the user pressing cancel in EVS.
func (s *Server) RequestCancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = true
}

// Calls returns the requests received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Methods returns the method names received so far, in order.
func (s *Server) Methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	for i, c := range s.calls {
		out[i] = c.Method
	}
	return out
}

// Launches returns the configs passed to the fake launcher.
func (s *Server) Launches() []process.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]process.Config(nil), s.launches...)
}

// Modules returns the current module names, sorted.
func (s *Server) Modules() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moduleNames()
}

// Value returns a module property, for assertions.
func (s *Server) Value(moduleName, key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.modules[moduleName]
	if !ok {
		return nil, false
	}
	v, ok := m.props[key]
	return v, ok
}

// Connected reports whether from.fromPort feeds to.toPort.
func (s *Server) Connected(from, fromPort, to, toPort string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLink(link{from, fromPort, to, toPort}) >= 0
}

// Running reports whether the fake process is alive.
func (s *Server) Running() bool {
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

// Exit stops the fake process and breaks every open connection.
func (s *Server) Exit() {
	s.exitOnce.Do(func() {
		close(s.exited)
		s.DropConnections()
	})
}

// DropConnections breaks every open connection without stopping the process.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := make([]io.Closer, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[io.Closer]struct{})
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

// Dialer returns a transport.Dialer that connects to this server over
// net.Pipe. Dials fail while the server is not yet listening or has exited.
func (s *Server) Dialer() transport.Dialer {
	return transport.DialerFunc(func(ctx context.Context, endpoint string) (io.ReadWriteCloser, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if endpoint != s.Endpoint() {
			return nil, fmt.Errorf("dial %s: no such endpoint", endpoint)
		}
		if !s.Running() {
			return nil, fmt.Errorf("dial %s: process exited", endpoint)
		}
		if time.Now().Before(s.readyAt) {
			return nil, fmt.Errorf("dial %s: not listening yet", endpoint)
		}

		client, server := net.Pipe()
		s.mu.Lock()
		s.conns[server] = struct{}{}
		s.mu.Unlock()

		go s.serve(server)
		return client, nil
	})
}

// Launcher returns a process.Launcher whose launches start this server.
func (s *Server) Launcher() process.Launcher {
	return process.LauncherFunc(func(ctx context.Context, cfg process.Config) (process.Process, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.launches = append(s.launches, cfg)
		s.mu.Unlock()

		if s.exitBeforeReady {
			s.Exit()
		}
		return &Process{server: s, owned: true}, nil
	})
}

// Attach returns a handle on the fake process as if found in the process
// table. It fails for any other PID.
func (s *Server) Attach(_ context.Context, pid int) (process.Process, error) {
	if pid != s.pid || !s.Running() {
		return nil, evserrors.NewAttachError(fmt.Sprintf("process %d not found", pid), evserrors.ErrNoInstanceFound).WithPID(pid)
	}
	return &Process{server: s}, nil
}

// Lister returns a process table containing this server while it runs.
func (s *Server) Lister() locator.Lister {
	return locator.ListerFunc(func(context.Context) ([]locator.Instance, error) {
		if !s.Running() {
			return nil, nil
		}
		return []locator.Instance{{PID: s.pid, Name: locator.DefaultProcessName}}, nil
	})
}

// Process is the fake's process.Process.
type Process struct {
	server *Server
	owned  bool
}

// PID returns the server's PID.
func (p *Process) PID() int { return p.server.pid }

// IsRunning reports whether the server has not exited.
func (p *Process) IsRunning() bool { return p.server.Running() }

// Wait blocks until the server exits or ctx is done.
func (p *Process) Wait(ctx context.Context) error {
	select {
	case <-p.server.exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Terminate stops the server immediately.
func (p *Process) Terminate(time.Duration) error {
	p.server.Exit()
	return nil
}

// Owned reports whether the handle came from Launcher.
func (p *Process) Owned() bool { return p.owned }

func (s *Server) serve(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	codec := transport.NewServerCodec(conn)
	for {
		req, err := codec.ReadRequest()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.calls = append(s.calls, Call{Method: req.Method, Args: req.Args})
		delay := s.delays[req.Method]
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-s.exited:
				return
			}
		}

		value, after, err := s.dispatch(req)
		if err != nil {
			if werr := codec.WriteResponse(false, nil, err.Error()); werr != nil {
				return
			}
		} else if werr := codec.WriteResponse(true, value, ""); werr != nil {
			return
		}
		if after != nil {
			after()
		}
	}
}

func (s *Server) moduleNames() []string {
	names := make([]string, 0, len(s.modules))
	for name := range s.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) findLink(l link) int {
	for i, existing := range s.links {
		if existing == l {
			return i
		}
	}
	return -1
}
