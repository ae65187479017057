package evs

import (
	"strings"

	evserrors "github.com/evs-automation/evsctl/internal/errors"
)

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return evserrors.NewValidationError("must not be empty").WithField(field)
	}
	return nil
}

// requiredAll checks field/value pairs in order.
func requiredAll(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := required(pairs[i], pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// ref resolves a ModuleRef to its module name, rejecting references that do
// not belong to this live session.
func (s *Session) ref(field string, r ModuleRef) (string, error) {
	switch {
	case r.IsZero():
		return "", evserrors.NewValidationError("module reference is empty").
			WithField(field).WithCause(evserrors.ErrInvalidReference)
	case r.session != s.id:
		return "", evserrors.NewValidationError("module reference belongs to another session").
			WithField(field).WithValue(r.name).WithCause(evserrors.ErrInvalidReference)
	case s.machine.State().IsTerminal():
		return "", evserrors.NewValidationError("module reference outlived its session").
			WithField(field).WithValue(r.name).WithCause(evserrors.ErrInvalidReference)
	}
	return r.name, nil
}

func checkPercent(percent float64) error {
	if percent < 0 || percent > 100 {
		return evserrors.NewValidationError("must be between 0 and 100").WithField("percent").WithValue(percent)
	}
	return nil
}

func checkDigits(digits int) error {
	if digits < 1 || digits > 15 {
		return evserrors.NewValidationError("must be between 1 and 15").WithField("digits").WithValue(digits)
	}
	return nil
}

func checkMethod(m InterpolationMethod) error {
	if !m.Valid() {
		return evserrors.NewValidationError("unknown interpolation method").WithField("method").WithValue(int(m))
	}
	return nil
}

func checkValue(v any) error {
	if v == nil {
		return evserrors.NewValidationError("must not be nil").WithField("value")
	}
	return nil
}
