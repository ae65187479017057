// Package batch runs a YAML manifest of EVS jobs, each in its own session,
// with bounded parallelism.
package batch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	evserrors "github.com/evs-automation/evsctl/internal/errors"
)

// Manifest is the top-level batch file.
type Manifest struct {
	// Parallel overrides the configured job parallelism when positive.
	Parallel int   `yaml:"parallel"`
	Jobs     []Job `yaml:"jobs"`
}

// Job is one unit of work: load an application, apply property sets, then
// run scripts, all in a fresh EVS instance.
type Job struct {
	Name        string   `yaml:"name"`
	Application string   `yaml:"application"`
	Set         []Set    `yaml:"set"`
	Scripts     []string `yaml:"scripts"`
	// KeepRunning leaves the instance open after the job finishes.
	KeepRunning bool `yaml:"keep_running"`
}

// Set assigns one module property.
type Set struct {
	Module   string `yaml:"module"`
	Port     string `yaml:"port"`
	Category string `yaml:"category"`
	Property string `yaml:"property"`
	Value    any    `yaml:"value"`
}

// Load reads and validates a manifest from fs.
func Load(fs afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a manifest, rejecting unknown keys, and fills in default
// job names.
func Parse(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, evserrors.NewValidationError("manifest is empty")
		}
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	for i := range m.Jobs {
		if m.Jobs[i].Name == "" {
			m.Jobs[i].Name = fmt.Sprintf("job-%d", i+1)
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that every job has work to do and unique names.
func (m *Manifest) Validate() error {
	if len(m.Jobs) == 0 {
		return evserrors.NewValidationError("manifest has no jobs").WithField("jobs")
	}
	if m.Parallel < 0 {
		return evserrors.NewValidationError("must be non-negative").WithField("parallel").WithValue(m.Parallel)
	}

	seen := make(map[string]bool, len(m.Jobs))
	var errs []error
	for i, job := range m.Jobs {
		field := fmt.Sprintf("jobs[%d]", i)
		if seen[job.Name] {
			errs = append(errs, evserrors.NewValidationError("duplicate job name").WithField(field+".name").WithValue(job.Name))
		}
		seen[job.Name] = true

		if job.Application == "" && len(job.Scripts) == 0 {
			errs = append(errs, evserrors.NewValidationError("needs an application or at least one script").WithField(field))
		}
		for j, s := range job.Set {
			f := fmt.Sprintf("%s.set[%d]", field, j)
			switch {
			case strings.TrimSpace(s.Module) == "":
				errs = append(errs, evserrors.NewValidationError("module is required").WithField(f))
			case s.Category == "" || s.Property == "":
				errs = append(errs, evserrors.NewValidationError("category and property are required").WithField(f))
			case s.Value == nil:
				errs = append(errs, evserrors.NewValidationError("value is required").WithField(f))
			}
		}
	}
	return errors.Join(errs...)
}
