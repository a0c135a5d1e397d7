//go:build unix

package osutil

import (
	"os/exec"
	"syscall"
)

// isolate starts cmd in a new process group and signals the whole group on
// cancel, walking the process tree when the group is already gone.
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err == nil {
			return nil
		}
		return KillProcessTree(cmd.Process.Pid)
	}
}
