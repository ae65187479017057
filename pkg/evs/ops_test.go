package evs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	evserrors "github.com/evs-automation/evsctl/internal/errors"
	"github.com/evs-automation/evsctl/internal/evstest"
)

func demoServer(t *testing.T, opts ...evstest.Option) (*evstest.Server, *Session) {
	t.Helper()

	srv, cfg := fixture(t, opts...)
	srv.AddDocument(`C:\data\demo.evs`,
		evstest.Placement{Type: "read_evs_field", Name: "read_evs_field", X: 10, Y: 10},
		evstest.Placement{Type: "explode_and_scale", Name: "explode_and_scale", X: 10, Y: 120},
		evstest.Placement{Type: "viewer", Name: "viewer", X: 10, Y: 400},
	)
	return srv, started(t, cfg)
}

func TestDemoScenario(t *testing.T) {
	srv, s := demoServer(t)
	ctx := testContext(t)

	if err := s.LoadApplication(ctx, `C:\data\demo.evs`); err != nil {
		t.Fatalf("LoadApplication() error = %v", err)
	}
	if err := s.WaitForReady(ctx); err != nil {
		t.Fatalf("WaitForReady() error = %v", err)
	}
	if s.State() != StateActive {
		t.Errorf("State() = %v, want %v", s.State(), StateActive)
	}

	title, err := s.InstanceModule(ctx, "titles", "titles", 200, 50)
	if err != nil {
		t.Fatalf("InstanceModule() error = %v", err)
	}
	if title.Name() != "titles" {
		t.Errorf("InstanceModule() name = %q, want titles", title.Name())
	}

	if err := s.SetModule(ctx, title, "Properties", "Title", "Demo"); err != nil {
		t.Fatalf("SetModule() error = %v", err)
	}
	got, err := s.GetModule(ctx, title, "Properties", "Title")
	if err != nil {
		t.Fatalf("GetModule() error = %v", err)
	}
	if got != "Demo" {
		t.Errorf("GetModule() = %v, want Demo", got)
	}

	viewer, err := s.Module("viewer")
	if err != nil {
		t.Fatalf("Module() error = %v", err)
	}
	if err := s.Connect(ctx, title, "Output Object", viewer, "Objects"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !srv.Connected("titles", "Output Object", "viewer", "Objects") {
		t.Error("titles not connected to viewer")
	}

	refs, err := s.Modules(ctx)
	if err != nil {
		t.Fatalf("Modules() error = %v", err)
	}
	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = r.Name()
	}
	want := []string{"explode_and_scale", "read_evs_field", "titles", "viewer"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Modules() mismatch (-want +got):\n%s", diff)
	}

	info, err := s.ApplicationInfo(ctx)
	if err != nil {
		t.Fatalf("ApplicationInfo() error = %v", err)
	}
	if info["Application"] != `C:\data\demo.evs` {
		t.Errorf("ApplicationInfo()[Application] = %v", info["Application"])
	}
}

func TestModuleGraph(t *testing.T) {
	srv, s := demoServer(t)
	ctx := testContext(t)

	first, err := s.InstanceModule(ctx, "titles", "label", 0, 0)
	if err != nil {
		t.Fatalf("InstanceModule() error = %v", err)
	}
	second, err := s.InstanceModule(ctx, "titles", "label", 0, 40)
	if err != nil {
		t.Fatalf("InstanceModule() error = %v", err)
	}
	if second.Name() != "label#1" {
		t.Errorf("second name = %q, want label#1", second.Name())
	}

	typ, err := s.ModuleType(ctx, second)
	if err != nil || typ != "titles" {
		t.Errorf("ModuleType() = %q, %v; want titles", typ, err)
	}
	pos, err := s.ModulePosition(ctx, second)
	if err != nil {
		t.Fatalf("ModulePosition() error = %v", err)
	}
	if diff := cmp.Diff(Position{X: 0, Y: 40}, pos); diff != "" {
		t.Errorf("ModulePosition() mismatch (-want +got):\n%s", diff)
	}

	renamed, err := s.RenameModule(ctx, first, "heading")
	if err != nil {
		t.Fatalf("RenameModule() error = %v", err)
	}
	if renamed.Name() != "heading" {
		t.Errorf("RenameModule() = %q, want heading", renamed.Name())
	}

	if err := s.DeleteModule(ctx, second); err != nil {
		t.Fatalf("DeleteModule() error = %v", err)
	}
	if diff := cmp.Diff([]string{"heading"}, srv.Modules()); diff != "" {
		t.Errorf("modules mismatch (-want +got):\n%s", diff)
	}

	viewer, err := s.InstanceModule(ctx, "viewer", "", 0, 200)
	if err != nil {
		t.Fatalf("InstanceModule() error = %v", err)
	}
	if err := s.Connect(ctx, renamed, "Output Object", viewer, "Objects"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := s.Disconnect(ctx, renamed, "Output Object", viewer, "Objects"); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if srv.Connected("heading", "Output Object", "viewer", "Objects") {
		t.Error("link survived Disconnect")
	}
}

func TestRejectedSetKeepsReadyState(t *testing.T) {
	srv, cfg := fixture(t)
	srv.AddDocument(`C:\data\titles.evs`, evstest.Placement{Type: "titles", Name: "titles", X: 363, Y: 679})
	ctx := testContext(t)

	// Load through a second session so the first makes no call before the
	// rejected one.
	loader, err := ConnectExisting(ctx, Selector{PID: srv.PID()}, cfg)
	if err != nil {
		t.Fatalf("ConnectExisting() error = %v", err)
	}
	if err := loader.LoadApplication(ctx, `C:\data\titles.evs`); err != nil {
		t.Fatalf("LoadApplication() error = %v", err)
	}
	if err := loader.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s := started(t, cfg)
	if s.State() != StateReady {
		t.Fatalf("State() = %v, want %v", s.State(), StateReady)
	}
	title, err := s.Module("titles")
	if err != nil {
		t.Fatalf("Module() error = %v", err)
	}

	err = s.SetModule(ctx, title, "Properties", "Font Size", 900)
	if !errors.Is(err, evserrors.ErrPropertyRejected) {
		t.Fatalf("SetModule() error = %v, want ErrPropertyRejected", err)
	}
	if s.State() != StateReady {
		t.Errorf("State() = %v after rejected SetModule, want %v", s.State(), StateReady)
	}
	if got, _ := srv.Value("titles", "Properties/Font Size"); got != 20.0 {
		t.Errorf("Font Size = %v, want unchanged 20", got)
	}
}

func TestRemoteFailures(t *testing.T) {
	_, s := demoServer(t)
	ctx := testContext(t)

	if err := s.LoadApplication(ctx, `C:\data\demo.evs`); err != nil {
		t.Fatalf("LoadApplication() error = %v", err)
	}
	field, _ := s.Module("read_evs_field")
	viewer, _ := s.Module("viewer")
	ghost, _ := s.Module("ghost")

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{
			name: "missing document",
			call: func() error { return s.LoadApplication(ctx, `C:\data\missing.evs`) },
			want: evserrors.ErrInvalidDocument,
		},
		{
			name: "unknown module type",
			call: func() error {
				_, err := s.InstanceModule(ctx, "no_such_module", "", 0, 0)
				return err
			},
			want: evserrors.ErrUnknownModuleType,
		},
		{
			name: "incompatible ports",
			call: func() error { return s.Connect(ctx, field, "Output Field", viewer, "Objects") },
			want: evserrors.ErrPortMismatch,
		},
		{
			name: "value out of range",
			call: func() error { return s.SetModule(ctx, viewer, "View", "Azimuth", 400) },
			want: evserrors.ErrPropertyRejected,
		},
		{
			name: "wrong value type",
			call: func() error { return s.SetModule(ctx, viewer, "View", "Scale", "large") },
			want: evserrors.ErrPropertyRejected,
		},
		{
			name: "module not found",
			call: func() error { return s.DeleteModule(ctx, ghost) },
			want: evserrors.ErrRemoteCall,
		},
		{
			name: "missing script",
			call: func() error { return s.ExecutePythonScript(ctx, `C:\scripts\none.py`) },
			want: evserrors.ErrRemoteCall,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if !evserrors.IsRemote(err) {
				t.Errorf("IsRemote(%v) = false", err)
			}
			if evserrors.RemoteText(err) == "" {
				t.Error("RemoteText() is empty")
			}
			if !s.State().CanServe() {
				t.Errorf("remote failure moved state to %v", s.State())
			}
		})
	}

	v, err := s.GetModule(ctx, viewer, "View", "Azimuth")
	if err != nil || v != 180.0 {
		t.Errorf("Azimuth after rejected set = %v, %v; want 180", v, err)
	}
}

func TestLocalValidation(t *testing.T) {
	srv, s := demoServer(t)
	ctx := testContext(t)

	if err := s.LoadApplication(ctx, `C:\data\demo.evs`); err != nil {
		t.Fatalf("LoadApplication() error = %v", err)
	}
	viewer, _ := s.Module("viewer")
	sent := len(srv.Calls())

	tests := []struct {
		name string
		call func() error
	}{
		{"empty path", func() error { return s.LoadApplication(ctx, " ") }},
		{"empty script", func() error { return s.ExecutePythonScript(ctx, "") }},
		{"empty module type", func() error { _, err := s.InstanceModule(ctx, "", "x", 0, 0); return err }},
		{"empty port", func() error { return s.Connect(ctx, viewer, "", viewer, "Objects") }},
		{"empty category", func() error { return s.SetModule(ctx, viewer, "", "Scale", 1) }},
		{"nil value", func() error { return s.SetModule(ctx, viewer, "View", "Scale", nil) }},
		{"empty port name", func() error { _, err := s.GetPort(ctx, viewer, "", "View", "Scale"); return err }},
		{"percent above range", func() error {
			return s.SetModuleInterpolated(ctx, viewer, "View", "Scale", 1, 2, 101, Linear)
		}},
		{"negative percent", func() error {
			return s.SetModuleInterpolated(ctx, viewer, "View", "Scale", 1, 2, -1, Linear)
		}},
		{"unknown method", func() error {
			return s.SetModuleInterpolated(ctx, viewer, "View", "Scale", 1, 2, 50, InterpolationMethod(3))
		}},
		{"zero digits", func() error { _, err := s.SigFig(ctx, 1.5, 0); return err }},
		{"too many digits", func() error { _, err := s.FormatNumber(ctx, 1.5, FormatOptions{Digits: 16}); return err }},
		{"empty rename", func() error { _, err := s.RenameModule(ctx, viewer, ""); return err }},
		{"empty module name", func() error { _, err := s.Module(""); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, evserrors.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}

	if got := len(srv.Calls()); got != sent {
		t.Errorf("validation failures sent %d requests", got-sent)
	}
}

func TestModuleReferences(t *testing.T) {
	_, s := demoServer(t)
	_, other := demoServer(t)
	ctx := testContext(t)

	foreign, err := other.Module("viewer")
	if err != nil {
		t.Fatalf("Module() error = %v", err)
	}

	tests := []struct {
		name string
		ref  ModuleRef
	}{
		{"zero", ModuleRef{}},
		{"other session", foreign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ModuleType(ctx, tt.ref)
			if !errors.Is(err, evserrors.ErrInvalidReference) {
				t.Errorf("error = %v, want ErrInvalidReference", err)
			}
			if !errors.Is(err, evserrors.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}

	t.Run("closed session", func(t *testing.T) {
		ref, err := s.InstanceModule(ctx, "titles", "", 0, 0)
		if err != nil {
			t.Fatalf("InstanceModule() error = %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		_, err = s.ModuleType(ctx, ref)
		if !errors.Is(err, evserrors.ErrInvalidReference) {
			t.Errorf("error = %v, want ErrInvalidReference", err)
		}
		if _, err := s.Module("titles"); !errors.Is(err, evserrors.ErrSessionClosed) {
			t.Errorf("Module() on closed session error = %v, want ErrSessionClosed", err)
		}
	})
}

func TestProperties(t *testing.T) {
	srv, s := demoServer(t)
	ctx := testContext(t)

	if err := s.LoadApplication(ctx, `C:\data\demo.evs`); err != nil {
		t.Fatalf("LoadApplication() error = %v", err)
	}
	viewer, _ := s.Module("viewer")
	explode, _ := s.Module("explode_and_scale")

	ext, err := s.GetModuleExtended(ctx, viewer, "View", "Azimuth")
	if err != nil {
		t.Fatalf("GetModuleExtended() error = %v", err)
	}
	want := map[string]any{
		"Value":    180.0,
		"Type":     "number",
		"Category": "View",
		"Property": "Azimuth",
		"Minimum":  0.0,
		"Maximum":  360.0,
	}
	if diff := cmp.Diff(want, ext); diff != "" {
		t.Errorf("GetModuleExtended() mismatch (-want +got):\n%s", diff)
	}

	if err := s.SetModuleInterpolated(ctx, viewer, "View", "Azimuth", 0, 360, 25, Linear); err != nil {
		t.Fatalf("SetModuleInterpolated() error = %v", err)
	}
	wantAz, err := evstest.Interpolate(0, 360, 25, int(Linear))
	if err != nil {
		t.Fatalf("Interpolate() error = %v", err)
	}
	if got, _ := srv.Value("viewer", "View/Azimuth"); got != wantAz {
		t.Errorf("Azimuth = %v, want %v", got, wantAz)
	}

	if err := s.SetPort(ctx, explode, "Input Field", "Properties", "Visible", false); err != nil {
		t.Fatalf("SetPort() error = %v", err)
	}
	v, err := s.GetPort(ctx, explode, "Input Field", "Properties", "Visible")
	if err != nil || v != false {
		t.Errorf("GetPort() = %v, %v; want false", v, err)
	}
	if _, err := s.GetPortExtended(ctx, explode, "Input Field", "Properties", "Visible"); err != nil {
		t.Errorf("GetPortExtended() error = %v", err)
	}
	err = s.SetPortInterpolated(ctx, explode, "Input Field", "Properties", "Visible", 0, 1, 50, Step)
	if !errors.Is(err, evserrors.ErrPropertyRejected) {
		t.Errorf("SetPortInterpolated() on a boolean error = %v, want ErrPropertyRejected", err)
	}

	if err := s.SetModuleInterpolated(ctx, explode, "Properties", "Z Scale", 1, 100, 50, LinearLog); err != nil {
		t.Fatalf("SetModuleInterpolated() error = %v", err)
	}
	wantZ, _ := evstest.Interpolate(1, 100, 50, int(LinearLog))
	if got, _ := srv.Value("explode_and_scale", "Properties/Z Scale"); got != wantZ {
		t.Errorf("Z Scale = %v, want %v", got, wantZ)
	}
}

func TestScripts(t *testing.T) {
	t.Run("runs", func(t *testing.T) {
		srv, s := demoServer(t)
		srv.AddScript(`C:\scripts\build.py`, evstest.Script{
			Run: func(srv *evstest.Server) { srv.AddDocument(`C:\data\built.evs`) },
		})

		if err := s.ExecutePythonScript(testContext(t), `C:\scripts\build.py`); err != nil {
			t.Fatalf("ExecutePythonScript() error = %v", err)
		}
		if err := s.LoadApplication(testContext(t), `C:\data\built.evs`); err != nil {
			t.Errorf("script side effect missing: %v", err)
		}
	})

	t.Run("script error", func(t *testing.T) {
		srv, s := demoServer(t)
		srv.AddScript(`C:\scripts\bad.py`, evstest.Script{Error: "NameError: name 'x' is not defined"})

		err := s.ExecutePythonScript(testContext(t), `C:\scripts\bad.py`)
		if got := evserrors.RemoteText(err); got != "NameError: name 'x' is not defined" {
			t.Errorf("RemoteText() = %q", got)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		srv, cfg := fixture(t)
		cfg.ScriptTimeout = 30 * time.Millisecond
		s := started(t, cfg)
		srv.AddScript(`C:\scripts\slow.py`, evstest.Script{Delay: 300 * time.Millisecond})
		ctx := testContext(t)

		err := s.ExecutePythonScript(ctx, `C:\scripts\slow.py`)
		if !errors.Is(err, evserrors.ErrScriptTimeout) || !errors.Is(err, evserrors.ErrTimeout) {
			t.Fatalf("error = %v, want ErrScriptTimeout", err)
		}

		// The late reply is drained before the next call is answered.
		v, err := s.APIVersion(ctx)
		if err != nil || v != SupportedAPIVersion {
			t.Errorf("APIVersion() = %q, %v after timeout", v, err)
		}
		if !s.State().CanServe() {
			t.Errorf("State() = %v after script timeout", s.State())
		}
	})
}

func TestExecution(t *testing.T) {
	srv, s := demoServer(t)
	ctx := testContext(t)

	for _, step := range []struct {
		name string
		fn   func(context.Context) error
	}{
		{"Suspend", s.Suspend},
		{"Resume", s.Resume},
		{"Refresh", s.Refresh},
		{"CheckCancel", s.CheckCancel},
	} {
		if err := step.fn(ctx); err != nil {
			t.Errorf("%s() error = %v", step.name, err)
		}
	}

	srv.RequestCancel()
	err := s.CheckCancel(ctx)
	if !errors.Is(err, evserrors.ErrCanceledByUser) {
		t.Errorf("CheckCancel() error = %v, want ErrCanceledByUser", err)
	}

	if s.IsModuleExecuted() {
		t.Error("IsModuleExecuted() = true")
	}
}

func TestNumberFormatting(t *testing.T) {
	_, s := demoServer(t)
	ctx := testContext(t)

	got, err := s.SigFig(ctx, 1234.5678, 3)
	if err != nil {
		t.Fatalf("SigFig() error = %v", err)
	}
	if want := evstest.SigFig(1234.5678, 3); got != want {
		t.Errorf("SigFig() = %v, want %v", got, want)
	}

	tests := []struct {
		name string
		opts FormatOptions
	}{
		{"defaults", FormatOptions{}},
		{"no separators", FormatOptions{Digits: 4, OmitThousandsSeparators: true}},
		{"trailing zeros", FormatOptions{Digits: 8, PreserveTrailingZeros: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FormatNumber(ctx, 1234567.5, tt.opts)
			if err != nil {
				t.Fatalf("FormatNumber() error = %v", err)
			}
			want := evstest.FormatNumber(1234567.5, tt.opts.digits(), !tt.opts.OmitThousandsSeparators, tt.opts.PreserveTrailingZeros)
			if got != want {
				t.Errorf("FormatNumber() = %q, want %q", got, want)
			}

			got, err = s.FormatNumberAdaptive(ctx, 12.345, 5000, tt.opts)
			if err != nil {
				t.Fatalf("FormatNumberAdaptive() error = %v", err)
			}
			want = evstest.FormatNumberAdaptive(12.345, 5000, tt.opts.digits(), !tt.opts.OmitThousandsSeparators, tt.opts.PreserveTrailingZeros)
			if got != want {
				t.Errorf("FormatNumberAdaptive() = %q, want %q", got, want)
			}
		})
	}
}

func TestAssertions(t *testing.T) {
	_, s := demoServer(t)

	if err := s.Test(true, "unused"); err != nil {
		t.Errorf("Test(true) error = %v", err)
	}
	err := s.Test(false, "viewer missing")
	if !errors.Is(err, evserrors.ErrAssertionFailed) {
		t.Errorf("Test(false) error = %v, want ErrAssertionFailed", err)
	}
}

func TestInterpolationMethod(t *testing.T) {
	for _, m := range []InterpolationMethod{Step, Linear, LinearLog, Cosine, CosineLog} {
		parsed, ok := ParseInterpolationMethod(m.String())
		if !ok || parsed != m {
			t.Errorf("ParseInterpolationMethod(%q) = %v, %v", m.String(), parsed, ok)
		}
	}
	if InterpolationMethod(3).Valid() {
		t.Error("method 3 reported valid")
	}
	if _, ok := ParseInterpolationMethod("cubic"); ok {
		t.Error("ParseInterpolationMethod(cubic) succeeded")
	}
}

func TestScopedDemo(t *testing.T) {
	srv, cfg := fixture(t)
	srv.AddDocument("demo.evs")

	var session *Session
	err := WithNew(context.Background(), cfg, func(s *Session) error {
		session = s
		ctx := testContext(t)
		if err := s.LoadApplication(ctx, "demo.evs"); err != nil {
			return err
		}
		r, err := s.InstanceModule(ctx, "titles", "t1", 363, 679)
		if err != nil {
			return err
		}
		return s.SetModule(ctx, r, "Properties", "Title", "Hello")
	})
	if err != nil {
		t.Fatalf("WithNew() error = %v", err)
	}

	if srv.Running() {
		t.Error("process alive after scope exit")
	}
	if session.IsAlive(context.Background()) {
		t.Error("IsAlive() = true after scope exit")
	}
	if session.State() != StateClosed {
		t.Errorf("State() = %v, want %v", session.State(), StateClosed)
	}
}
