package evstest

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/evs-automation/evsctl/internal/transport"
)

type args []any

func (a args) str(i int) (string, error) {
	if i >= len(a) {
		return "", fmt.Errorf("missing argument %d", i)
	}
	s, ok := a[i].(string)
	if !ok {
		return "", fmt.Errorf("argument %d: expected a string", i)
	}
	return s, nil
}

func (a args) num(i int) (float64, error) {
	if i >= len(a) {
		return 0, fmt.Errorf("missing argument %d", i)
	}
	n, ok := a[i].(float64)
	if !ok {
		return 0, fmt.Errorf("argument %d: expected a number", i)
	}
	return n, nil
}

func (a args) boolean(i int) (bool, error) {
	if i >= len(a) {
		return false, fmt.Errorf("missing argument %d", i)
	}
	b, ok := a[i].(bool)
	if !ok {
		return false, fmt.Errorf("argument %d: expected a boolean", i)
	}
	return b, nil
}

// strs reads n string arguments starting at 0.
func (a args) strs(n int) ([]string, error) {
	out := make([]string, n)
	for i := range n {
		s, err := a.str(i)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// dispatch executes one request. after, when non-nil, runs once the reply
// has been written.
func (s *Server) dispatch(req *transport.Request) (value any, after func(), err error) {
	a := args(req.Args)

	switch req.Method {
	case "ExecuteScript":
		return s.executeScript(a)
	case "Shutdown":
		return nil, s.shutdown, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.Method {
	case "Version":
		return s.apiVersion, nil, nil
	case "WaitForReady":
		return nil, nil, nil
	case "LoadApplication":
		return nil, nil, s.loadApplication(a)
	case "GetApplicationInformation":
		return map[string]any{
			"Version":     s.appVersion,
			"Application": s.application,
			"ModuleCount": len(s.modules),
		}, nil, nil
	case "InstanceModule":
		v, err := s.instanceModule(a)
		return v, nil, err
	case "Connect":
		return nil, nil, s.connect(a)
	case "Disconnect":
		return nil, nil, s.disconnect(a)
	case "DeleteModule":
		return nil, nil, s.deleteModule(a)
	case "RenameModule":
		v, err := s.renameModule(a)
		return v, nil, err
	case "GetModules":
		return s.moduleNames(), nil, nil
	case "GetModuleType":
		m, err := s.module(a)
		if err != nil {
			return nil, nil, err
		}
		return m.typ, nil, nil
	case "GetModulePosition":
		m, err := s.module(a)
		if err != nil {
			return nil, nil, err
		}
		return map[string]int{"X": m.x, "Y": m.y}, nil, nil
	case "GetValue":
		v, err := s.getValue(a)
		return v, nil, err
	case "SetValue":
		return nil, nil, s.setValue(a)
	case "SetValueInterpolated":
		return nil, nil, s.setValueInterpolated(a)
	case "Suspend":
		s.suspended = true
		return nil, nil, nil
	case "Resume", "Refresh":
		s.suspended = false
		return nil, nil, nil
	case "CheckCancel":
		return s.cancel, nil, nil
	case "SigFig":
		n, err := a.num(0)
		if err != nil {
			return nil, nil, err
		}
		digits, err := a.num(1)
		if err != nil {
			return nil, nil, err
		}
		return SigFig(n, int(digits)), nil, nil
	case "FormatNumber":
		v, err := formatNumberArgs(a, false)
		return v, nil, err
	case "FormatNumberAdaptive":
		v, err := formatNumberArgs(a, true)
		return v, nil, err
	}
	return nil, nil, fmt.Errorf("Unknown method: %s", req.Method)
}

func (s *Server) shutdown() {
	if s.ignoreShutdown {
		return
	}
	if s.shutdownDelay > 0 {
		go func() {
			time.Sleep(s.shutdownDelay)
			s.Exit()
		}()
		return
	}
	s.Exit()
}

func (s *Server) executeScript(a args) (any, func(), error) {
	path, err := a.str(0)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	script, ok := s.scripts[path]
	s.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("Script file not found: %s", path)
	}

	if script.Delay > 0 {
		select {
		case <-time.After(script.Delay):
		case <-s.exited:
			return nil, nil, errors.New("application exited")
		}
	}
	if script.Run != nil {
		script.Run(s)
	}
	if script.Error != "" {
		return nil, nil, errors.New(script.Error)
	}
	return nil, nil, nil
}

func (s *Server) loadApplication(a args) error {
	path, err := a.str(0)
	if err != nil {
		return err
	}
	placements, ok := s.documents[path]
	if !ok {
		return fmt.Errorf("Unable to load application %s: file not found or not a valid application", path)
	}

	s.modules = make(map[string]*module)
	s.links = nil
	for _, p := range placements {
		if _, err := s.addModule(p.Type, p.Name, p.X, p.Y); err != nil {
			return err
		}
	}
	s.application = path
	return nil
}

func (s *Server) addModule(typ, suggested string, x, y int) (string, error) {
	mt, ok := s.catalog[typ]
	if !ok {
		return "", fmt.Errorf("Unknown module type: %s", typ)
	}
	if suggested == "" {
		suggested = typ
	}
	name := s.uniqueName(suggested)

	m := &module{
		typ:       typ,
		x:         x,
		y:         y,
		props:     make(map[string]any, len(mt.Properties)),
		portProps: make(map[string]map[string]any),
	}
	for key, spec := range mt.Properties {
		m.props[key] = spec.Default
	}
	for port, ps := range mt.Ports {
		if len(ps.Properties) == 0 {
			continue
		}
		m.portProps[port] = make(map[string]any, len(ps.Properties))
		for key, spec := range ps.Properties {
			m.portProps[port][key] = spec.Default
		}
	}
	s.modules[name] = m
	return name, nil
}

// uniqueName appends #1, #2, ... until the name is free, as EVS does.
func (s *Server) uniqueName(suggested string) string {
	if _, taken := s.modules[suggested]; !taken {
		return suggested
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s#%d", suggested, i)
		if _, taken := s.modules[candidate]; !taken {
			return candidate
		}
	}
}

func (s *Server) instanceModule(a args) (string, error) {
	names, err := a.strs(2)
	if err != nil {
		return "", err
	}
	x, err := a.num(2)
	if err != nil {
		return "", err
	}
	y, err := a.num(3)
	if err != nil {
		return "", err
	}
	return s.addModule(names[0], names[1], int(x), int(y))
}

func (s *Server) module(a args) (*module, error) {
	name, err := a.str(0)
	if err != nil {
		return nil, err
	}
	m, ok := s.modules[name]
	if !ok {
		return nil, fmt.Errorf("Module not found: %s", name)
	}
	return m, nil
}

func (s *Server) port(moduleName, portName string) (PortSpec, error) {
	m, ok := s.modules[moduleName]
	if !ok {
		return PortSpec{}, fmt.Errorf("Module not found: %s", moduleName)
	}
	ps, ok := s.catalog[m.typ].Ports[portName]
	if !ok {
		return PortSpec{}, fmt.Errorf("Port %q not found on module %s", portName, moduleName)
	}
	return ps, nil
}

func (s *Server) linkArgs(a args) (link, error) {
	p, err := a.strs(4)
	if err != nil {
		return link{}, err
	}
	l := link{from: p[0], fromPort: p[1], to: p[2], toPort: p[3]}

	out, err := s.port(l.from, l.fromPort)
	if err != nil {
		return link{}, err
	}
	in, err := s.port(l.to, l.toPort)
	if err != nil {
		return link{}, err
	}
	if out.Direction != Output || in.Direction != Input {
		return link{}, fmt.Errorf("Cannot connect %s.%s to %s.%s: ports must go from output to input", l.from, l.fromPort, l.to, l.toPort)
	}
	if out.DataType != in.DataType {
		return link{}, fmt.Errorf("Cannot connect %s (%s) to %s (%s): incompatible port types", l.fromPort, out.DataType, l.toPort, in.DataType)
	}
	return l, nil
}

func (s *Server) connect(a args) error {
	l, err := s.linkArgs(a)
	if err != nil {
		return err
	}
	if s.findLink(l) < 0 {
		s.links = append(s.links, l)
	}
	return nil
}

func (s *Server) disconnect(a args) error {
	l, err := s.linkArgs(a)
	if err != nil {
		return err
	}
	i := s.findLink(l)
	if i < 0 {
		return fmt.Errorf("No connection from %s.%s to %s.%s", l.from, l.fromPort, l.to, l.toPort)
	}
	s.links = append(s.links[:i], s.links[i+1:]...)
	return nil
}

func (s *Server) deleteModule(a args) error {
	name, err := a.str(0)
	if err != nil {
		return err
	}
	if _, ok := s.modules[name]; !ok {
		return fmt.Errorf("Module not found: %s", name)
	}
	delete(s.modules, name)

	kept := s.links[:0]
	for _, l := range s.links {
		if l.from != name && l.to != name {
			kept = append(kept, l)
		}
	}
	s.links = kept
	return nil
}

func (s *Server) renameModule(a args) (string, error) {
	names, err := a.strs(2)
	if err != nil {
		return "", err
	}
	oldName, suggested := names[0], names[1]
	m, ok := s.modules[oldName]
	if !ok {
		return "", fmt.Errorf("Module not found: %s", oldName)
	}
	if suggested == oldName {
		return oldName, nil
	}

	delete(s.modules, oldName)
	newName := s.uniqueName(suggested)
	s.modules[newName] = m

	for i, l := range s.links {
		if l.from == oldName {
			s.links[i].from = newName
		}
		if l.to == oldName {
			s.links[i].to = newName
		}
	}
	return newName, nil
}

// property resolves the spec and the value map for a module or port property.
func (s *Server) property(moduleName, portName, category, prop string) (PropertySpec, map[string]any, string, error) {
	m, ok := s.modules[moduleName]
	if !ok {
		return PropertySpec{}, nil, "", fmt.Errorf("Module not found: %s", moduleName)
	}
	key := category + "/" + prop

	if portName == "" {
		spec, ok := s.catalog[m.typ].Properties[key]
		if !ok {
			return PropertySpec{}, nil, "", fmt.Errorf("Property %s not found on module %s", key, moduleName)
		}
		return spec, m.props, key, nil
	}

	ps, err := s.port(moduleName, portName)
	if err != nil {
		return PropertySpec{}, nil, "", err
	}
	spec, ok := ps.Properties[key]
	if !ok {
		return PropertySpec{}, nil, "", fmt.Errorf("Property %s not found on port %s.%s", key, moduleName, portName)
	}
	return spec, m.portProps[portName], key, nil
}

func (s *Server) getValue(a args) (any, error) {
	p, err := a.strs(4)
	if err != nil {
		return nil, err
	}
	extended, err := a.boolean(4)
	if err != nil {
		return nil, err
	}

	spec, values, key, err := s.property(p[0], p[1], p[2], p[3])
	if err != nil {
		return nil, err
	}
	v := values[key]
	if !extended {
		return v, nil
	}

	info := map[string]any{
		"Value":    v,
		"Type":     string(spec.Kind),
		"Category": p[2],
		"Property": p[3],
	}
	if spec.Kind == KindNumber && spec.Max > spec.Min {
		info["Minimum"] = spec.Min
		info["Maximum"] = spec.Max
	}
	return info, nil
}

func checkValue(spec PropertySpec, v any) error {
	switch spec.Kind {
	case KindString:
		if _, ok := v.(string); !ok {
			return errors.New("Expected a string value")
		}
	case KindBool:
		if _, ok := v.(bool); !ok {
			return errors.New("Expected a boolean value")
		}
	case KindNumber:
		n, ok := v.(float64)
		if !ok {
			return errors.New("Expected a number")
		}
		if spec.Max > spec.Min && (n < spec.Min || n > spec.Max) {
			return fmt.Errorf("Value %g is outside the allowed range [%g, %g]", n, spec.Min, spec.Max)
		}
	}
	return nil
}

func (s *Server) setValue(a args) error {
	p, err := a.strs(4)
	if err != nil {
		return err
	}
	if len(a) < 5 {
		return errors.New("missing argument 4")
	}
	spec, values, key, err := s.property(p[0], p[1], p[2], p[3])
	if err != nil {
		return err
	}
	if err := checkValue(spec, a[4]); err != nil {
		return err
	}
	values[key] = a[4]
	return nil
}

func (s *Server) setValueInterpolated(a args) error {
	p, err := a.strs(4)
	if err != nil {
		return err
	}
	nums := make([]float64, 4)
	for i := range nums {
		if nums[i], err = a.num(4 + i); err != nil {
			return err
		}
	}
	start, end, percent, method := nums[0], nums[1], nums[2], int(nums[3])

	spec, values, key, err := s.property(p[0], p[1], p[2], p[3])
	if err != nil {
		return err
	}
	if spec.Kind != KindNumber {
		return errors.New("Interpolation requires a numeric property")
	}

	v, err := Interpolate(start, end, percent, method)
	if err != nil {
		return err
	}
	if err := checkValue(spec, v); err != nil {
		return err
	}
	values[key] = v
	return nil
}

// Interpolate computes the value percent (0-100) of the way from start to
// end using an EVS interpolation method code.
func Interpolate(start, end, percent float64, method int) (float64, error) {
	t := percent / 100
	switch method {
	case 1:
		if t < 1 {
			return start, nil
		}
		return end, nil
	case 2:
		return start + (end-start)*t, nil
	case 8:
		return start + (end-start)*(1-math.Cos(math.Pi*t))/2, nil
	case 4, 16:
		if start <= 0 || end <= 0 {
			return 0, errors.New("Logarithmic interpolation requires positive values")
		}
		if method == 16 {
			t = (1 - math.Cos(math.Pi*t)) / 2
		}
		ls, le := math.Log10(start), math.Log10(end)
		return math.Pow(10, ls+(le-ls)*t), nil
	}
	return 0, fmt.Errorf("Unknown interpolation method: %d", method)
}
