package locator

import (
	"context"
	"os/exec"
	"time"

	gops "github.com/shirou/gopsutil/v4/process"
)

var lookPath = exec.LookPath

// systemLister reads the OS process table through gopsutil.
type systemLister struct{}

// List returns every process whose name can be read. Processes that vanish
// or deny access mid-scan are skipped.
func (systemLister) List(ctx context.Context) ([]Instance, error) {
	procs, err := gops.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Instance, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		inst := Instance{PID: int(p.Pid), Name: name}
		if exe, err := p.ExeWithContext(ctx); err == nil {
			inst.Executable = exe
		}
		if ms, err := p.CreateTimeWithContext(ctx); err == nil {
			inst.Started = time.UnixMilli(ms)
		}
		out = append(out, inst)
	}
	return out, nil
}
