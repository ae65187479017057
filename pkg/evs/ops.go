package evs

import (
	"context"
	"errors"

	evserrors "github.com/evs-automation/evsctl/internal/errors"
)

// APIVersion returns the automation API version EVS implements.
func (s *Session) APIVersion(ctx context.Context) (string, error) {
	if err := s.checkUsable(); err != nil {
		return "", err
	}
	v, err := s.apiVersion(ctx)
	if err == nil {
		s.machine.MarkActive()
	}
	return v, err
}

// WaitForReady blocks until EVS has finished processing. Call it after
// loading an application or running a script.
func (s *Session) WaitForReady(ctx context.Context) error {
	_, err := s.call(ctx, "WaitForReady", evserrors.ErrRemoteCall)
	return err
}

// LoadApplication opens an .evs application file.
func (s *Session) LoadApplication(ctx context.Context, path string) error {
	if err := required("path", path); err != nil {
		return err
	}
	_, err := s.call(ctx, "LoadApplication", evserrors.ErrInvalidDocument, path)
	return err
}

// ExecutePythonScript runs a Python script inside EVS. With a ScriptTimeout
// configured, a script that runs longer fails with ErrScriptTimeout; the
// script keeps running in EVS and the session stays busy until it ends.
func (s *Session) ExecutePythonScript(ctx context.Context, path string) error {
	if err := required("path", path); err != nil {
		return err
	}

	timeout := s.cfg.ScriptTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	_, err := s.call(ctx, "ExecuteScript", evserrors.ErrRemoteCall, path)
	if timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
		return evserrors.NewTimeoutError("ExecuteScript "+path, timeout).WithCause(evserrors.ErrScriptTimeout)
	}
	return err
}

// ApplicationInfo returns EVS's description of the current application.
func (s *Session) ApplicationInfo(ctx context.Context) (map[string]any, error) {
	resp, err := s.call(ctx, "GetApplicationInformation", evserrors.ErrRemoteCall)
	if err != nil {
		return nil, err
	}
	var info map[string]any
	if err := resp.Decode(&info); err != nil {
		return nil, err
	}
	return info, nil
}

// Module returns a reference to an existing module by name. EVS checks that
// the module exists when the reference is used.
func (s *Session) Module(name string) (ModuleRef, error) {
	if err := required("name", name); err != nil {
		return ModuleRef{}, err
	}
	if s.machine.State().IsTerminal() {
		return ModuleRef{}, evserrors.NewSessionError("session has ended", evserrors.ErrSessionClosed).WithPID(s.PID())
	}
	return ModuleRef{name: name, session: s.id}, nil
}

// InstanceModule adds a module of moduleType at (x, y). EVS may assign a
// different name than suggestedName; the returned reference carries the
// assigned one.
func (s *Session) InstanceModule(ctx context.Context, moduleType, suggestedName string, x, y int) (ModuleRef, error) {
	if err := required("module type", moduleType); err != nil {
		return ModuleRef{}, err
	}
	resp, err := s.call(ctx, "InstanceModule", evserrors.ErrUnknownModuleType, moduleType, suggestedName, x, y)
	if err != nil {
		return ModuleRef{}, err
	}
	var name string
	if err := resp.Decode(&name); err != nil {
		return ModuleRef{}, err
	}
	return ModuleRef{name: name, session: s.id}, nil
}

func (s *Session) link(ctx context.Context, method string, src ModuleRef, outPort string, dst ModuleRef, inPort string) error {
	from, err := s.ref("source", src)
	if err != nil {
		return err
	}
	to, err := s.ref("destination", dst)
	if err != nil {
		return err
	}
	if err := requiredAll("output port", outPort, "input port", inPort); err != nil {
		return err
	}
	_, err = s.call(ctx, method, evserrors.ErrPortMismatch, from, outPort, to, inPort)
	return err
}

// Connect links src's output port to dst's input port.
func (s *Session) Connect(ctx context.Context, src ModuleRef, outPort string, dst ModuleRef, inPort string) error {
	return s.link(ctx, "Connect", src, outPort, dst, inPort)
}

// Disconnect removes the link from src's output port to dst's input port.
func (s *Session) Disconnect(ctx context.Context, src ModuleRef, outPort string, dst ModuleRef, inPort string) error {
	return s.link(ctx, "Disconnect", src, outPort, dst, inPort)
}

// DeleteModule removes a module.
func (s *Session) DeleteModule(ctx context.Context, module ModuleRef) error {
	name, err := s.ref("module", module)
	if err != nil {
		return err
	}
	_, err = s.call(ctx, "DeleteModule", evserrors.ErrRemoteCall, name)
	return err
}

// RenameModule renames a module and returns a reference under the name EVS
// assigned. The old reference is no longer valid in EVS.
func (s *Session) RenameModule(ctx context.Context, module ModuleRef, suggestedName string) (ModuleRef, error) {
	name, err := s.ref("module", module)
	if err != nil {
		return ModuleRef{}, err
	}
	if err := required("name", suggestedName); err != nil {
		return ModuleRef{}, err
	}
	resp, err := s.call(ctx, "RenameModule", evserrors.ErrRemoteCall, name, suggestedName)
	if err != nil {
		return ModuleRef{}, err
	}
	var assigned string
	if err := resp.Decode(&assigned); err != nil {
		return ModuleRef{}, err
	}
	return ModuleRef{name: assigned, session: s.id}, nil
}

// Modules lists every module in the application.
func (s *Session) Modules(ctx context.Context) ([]ModuleRef, error) {
	resp, err := s.call(ctx, "GetModules", evserrors.ErrRemoteCall)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := resp.Decode(&names); err != nil {
		return nil, err
	}
	refs := make([]ModuleRef, len(names))
	for i, n := range names {
		refs[i] = ModuleRef{name: n, session: s.id}
	}
	return refs, nil
}

// ModuleType returns the type a module was instanced from.
func (s *Session) ModuleType(ctx context.Context, module ModuleRef) (string, error) {
	name, err := s.ref("module", module)
	if err != nil {
		return "", err
	}
	resp, err := s.call(ctx, "GetModuleType", evserrors.ErrRemoteCall, name)
	if err != nil {
		return "", err
	}
	var typ string
	err = resp.Decode(&typ)
	return typ, err
}

// ModulePosition returns a module's canvas position.
func (s *Session) ModulePosition(ctx context.Context, module ModuleRef) (Position, error) {
	name, err := s.ref("module", module)
	if err != nil {
		return Position{}, err
	}
	resp, err := s.call(ctx, "GetModulePosition", evserrors.ErrRemoteCall, name)
	if err != nil {
		return Position{}, err
	}
	var pos Position
	err = resp.Decode(&pos)
	return pos, err
}

func (s *Session) getValue(ctx context.Context, module ModuleRef, port, category, property string, extended bool) (any, error) {
	name, err := s.ref("module", module)
	if err != nil {
		return nil, err
	}
	if err := requiredAll("category", category, "property", property); err != nil {
		return nil, err
	}
	resp, err := s.call(ctx, "GetValue", evserrors.ErrRemoteCall, name, port, category, property, extended)
	if err != nil {
		return nil, err
	}
	var v any
	err = resp.Decode(&v)
	return v, err
}

// GetModule reads a module property.
func (s *Session) GetModule(ctx context.Context, module ModuleRef, category, property string) (any, error) {
	return s.getValue(ctx, module, "", category, property, false)
}

// GetModuleExtended reads a module property with its metadata.
func (s *Session) GetModuleExtended(ctx context.Context, module ModuleRef, category, property string) (any, error) {
	return s.getValue(ctx, module, "", category, property, true)
}

// GetPort reads a property of one of a module's ports.
func (s *Session) GetPort(ctx context.Context, module ModuleRef, port, category, property string) (any, error) {
	if err := required("port", port); err != nil {
		return nil, err
	}
	return s.getValue(ctx, module, port, category, property, false)
}

// GetPortExtended reads a port property with its metadata.
func (s *Session) GetPortExtended(ctx context.Context, module ModuleRef, port, category, property string) (any, error) {
	if err := required("port", port); err != nil {
		return nil, err
	}
	return s.getValue(ctx, module, port, category, property, true)
}

func (s *Session) setValue(ctx context.Context, module ModuleRef, port, category, property string, value any) error {
	name, err := s.ref("module", module)
	if err != nil {
		return err
	}
	if err := requiredAll("category", category, "property", property); err != nil {
		return err
	}
	if err := checkValue(value); err != nil {
		return err
	}
	_, err = s.call(ctx, "SetValue", evserrors.ErrPropertyRejected, name, port, category, property, value)
	return err
}

// SetModule writes a module property.
func (s *Session) SetModule(ctx context.Context, module ModuleRef, category, property string, value any) error {
	return s.setValue(ctx, module, "", category, property, value)
}

// SetPort writes a property of one of a module's ports.
func (s *Session) SetPort(ctx context.Context, module ModuleRef, port, category, property string, value any) error {
	if err := required("port", port); err != nil {
		return err
	}
	return s.setValue(ctx, module, port, category, property, value)
}

func (s *Session) setInterpolated(ctx context.Context, module ModuleRef, port, category, property string, start, end, percent float64, method InterpolationMethod) error {
	name, err := s.ref("module", module)
	if err != nil {
		return err
	}
	if err := requiredAll("category", category, "property", property); err != nil {
		return err
	}
	if err := checkPercent(percent); err != nil {
		return err
	}
	if err := checkMethod(method); err != nil {
		return err
	}
	_, err = s.call(ctx, "SetValueInterpolated", evserrors.ErrPropertyRejected,
		name, port, category, property, start, end, percent, int(method))
	return err
}

// SetModuleInterpolated sets a numeric module property to the value percent
// (0 to 100) of the way from start to end.
func (s *Session) SetModuleInterpolated(ctx context.Context, module ModuleRef, category, property string, start, end, percent float64, method InterpolationMethod) error {
	return s.setInterpolated(ctx, module, "", category, property, start, end, percent, method)
}

// SetPortInterpolated is SetModuleInterpolated for a port property.
func (s *Session) SetPortInterpolated(ctx context.Context, module ModuleRef, port, category, property string, start, end, percent float64, method InterpolationMethod) error {
	if err := required("port", port); err != nil {
		return err
	}
	return s.setInterpolated(ctx, module, port, category, property, start, end, percent, method)
}

// Suspend pauses module execution until Resume.
func (s *Session) Suspend(ctx context.Context) error {
	_, err := s.call(ctx, "Suspend", evserrors.ErrRemoteCall)
	return err
}

// Resume runs operations queued while suspended.
func (s *Session) Resume(ctx context.Context) error {
	_, err := s.call(ctx, "Resume", evserrors.ErrRemoteCall)
	return err
}

// Refresh redraws the viewer and processes pending input in EVS.
func (s *Session) Refresh(ctx context.Context) error {
	_, err := s.call(ctx, "Refresh", evserrors.ErrRemoteCall)
	return err
}

// CheckCancel returns an error matching ErrCanceledByUser when the user has
// asked EVS to cancel.
func (s *Session) CheckCancel(ctx context.Context) error {
	resp, err := s.call(ctx, "CheckCancel", evserrors.ErrRemoteCall)
	if err != nil {
		return err
	}
	var canceled bool
	if err := resp.Decode(&canceled); err != nil {
		return err
	}
	if canceled {
		return evserrors.NewRemoteError("CheckCancel", evserrors.ErrCanceledByUser, "script canceled by user")
	}
	return nil
}

// SigFig rounds n to digits significant figures.
func (s *Session) SigFig(ctx context.Context, n float64, digits int) (float64, error) {
	if err := checkDigits(digits); err != nil {
		return 0, err
	}
	resp, err := s.call(ctx, "SigFig", evserrors.ErrRemoteCall, n, digits)
	if err != nil {
		return 0, err
	}
	var v float64
	err = resp.Decode(&v)
	return v, err
}

// FormatNumber renders n using EVS's number formatting.
func (s *Session) FormatNumber(ctx context.Context, n float64, opts FormatOptions) (string, error) {
	if err := checkDigits(opts.digits()); err != nil {
		return "", err
	}
	resp, err := s.call(ctx, "FormatNumber", evserrors.ErrRemoteCall,
		n, opts.digits(), !opts.OmitThousandsSeparators, opts.PreserveTrailingZeros)
	if err != nil {
		return "", err
	}
	var out string
	err = resp.Decode(&out)
	return out, err
}

// FormatNumberAdaptive renders n with the precision digits significant
// figures of adapt would need.
func (s *Session) FormatNumberAdaptive(ctx context.Context, n, adapt float64, opts FormatOptions) (string, error) {
	if err := checkDigits(opts.digits()); err != nil {
		return "", err
	}
	resp, err := s.call(ctx, "FormatNumberAdaptive", evserrors.ErrRemoteCall,
		n, adapt, opts.digits(), !opts.OmitThousandsSeparators, opts.PreserveTrailingZeros)
	if err != nil {
		return "", err
	}
	var out string
	err = resp.Decode(&out)
	return out, err
}

// Test returns an error matching ErrAssertionFailed when assertion is false.
// Unlike in EVS, a failed assertion is reported to the caller.
func (s *Session) Test(assertion bool, message string) error {
	if assertion {
		return nil
	}
	return evserrors.Wrap(evserrors.ErrAssertionFailed, message)
}

// IsModuleExecuted always returns false. It exists so scripts written for
// EVS's in-process API compile unchanged.
func (s *Session) IsModuleExecuted() bool {
	return false
}
