package evs

import "fmt"

// ModuleRef identifies a module inside one Session. The zero value is not a
// valid reference.
type ModuleRef struct {
	name    string
	session uint64
}

// Name returns the name EVS assigned to the module.
func (r ModuleRef) Name() string { return r.name }

// IsZero reports whether r is the zero reference.
func (r ModuleRef) IsZero() bool { return r.session == 0 }

// String returns the module name.
func (r ModuleRef) String() string { return r.name }

// Position is a module's location on the application canvas.
type Position struct {
	X int `json:"X"`
	Y int `json:"Y"`
}

// InterpolationMethod selects the curve used by the interpolated setters.
type InterpolationMethod int

// Interpolation methods, with the codes EVS uses.
const (
	Step      InterpolationMethod = 1
	Linear    InterpolationMethod = 2
	LinearLog InterpolationMethod = 4
	Cosine    InterpolationMethod = 8
	CosineLog InterpolationMethod = 16
)

// Valid reports whether m is a known method.
func (m InterpolationMethod) Valid() bool {
	switch m {
	case Step, Linear, LinearLog, Cosine, CosineLog:
		return true
	}
	return false
}

// String returns the method name.
func (m InterpolationMethod) String() string {
	switch m {
	case Step:
		return "Step"
	case Linear:
		return "Linear"
	case LinearLog:
		return "LinearLog"
	case Cosine:
		return "Cosine"
	case CosineLog:
		return "CosineLog"
	default:
		return fmt.Sprintf("InterpolationMethod(%d)", int(m))
	}
}

// ParseInterpolationMethod converts a method name to its code.
func ParseInterpolationMethod(name string) (InterpolationMethod, bool) {
	for _, m := range []InterpolationMethod{Step, Linear, LinearLog, Cosine, CosineLog} {
		if m.String() == name {
			return m, true
		}
	}
	return 0, false
}

// FormatOptions controls FormatNumber and FormatNumberAdaptive. The zero
// value means six significant digits with thousands separators and trailing
// zeros trimmed.
type FormatOptions struct {
	// Digits is the number of significant digits, 1 to 15. Zero means 6.
	Digits int
	// OmitThousandsSeparators disables digit grouping.
	OmitThousandsSeparators bool
	// PreserveTrailingZeros keeps zeros after the last significant digit.
	PreserveTrailingZeros bool
}

func (o FormatOptions) digits() int {
	if o.Digits == 0 {
		return 6
	}
	return o.Digits
}
