//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// platformHandle carries per-OS resources attached to a started child.
type platformHandle interface {
	Close()
}

func configureCmd(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

func afterStart(*exec.Cmd) platformHandle {
	return nil
}

func requestStop(cmd *exec.Cmd, _ platformHandle) {
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err == nil {
		_ = syscall.Kill(-pgid, syscall.SIGTERM)
	} else {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}
}

func forceKill(cmd *exec.Cmd, _ platformHandle) error {
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err == nil && pgid > 0 {
		return syscall.Kill(-pgid, syscall.SIGKILL)
	}
	return cmd.Process.Kill()
}
