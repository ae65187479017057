//go:build windows

package process

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// platformHandle carries per-OS resources attached to a started child.
type platformHandle interface {
	Close()
}

type jobHandle windows.Handle

func (j jobHandle) Close() {
	_ = windows.CloseHandle(windows.Handle(j))
}

func configureCmd(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
	}
}

// afterStart places the child in a job object so forceKill reaches any
// processes EVS spawned. The job is not kill-on-close: a session that keeps
// EVS running must be able to drop the handle.
func afterStart(cmd *exec.Cmd) platformHandle {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return nil
	}

	handle, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(cmd.Process.Pid))
	if err != nil {
		_ = windows.CloseHandle(job)
		return nil
	}
	defer windows.CloseHandle(handle)

	if err := windows.AssignProcessToJobObject(job, handle); err != nil {
		_ = windows.CloseHandle(job)
		return nil
	}
	return jobHandle(job)
}

// requestStop is a no-op: a GUI process has no console signal to receive.
// The graceful path is the remote Shutdown call.
func requestStop(*exec.Cmd, platformHandle) {}

func forceKill(cmd *exec.Cmd, h platformHandle) error {
	if job, ok := h.(jobHandle); ok {
		if err := windows.TerminateJobObject(windows.Handle(job), 1); err == nil {
			return nil
		}
	}
	return cmd.Process.Kill()
}
