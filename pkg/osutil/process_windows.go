//go:build windows

package osutil

import "os/exec"

func isolate(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return KillProcessTree(cmd.Process.Pid)
	}
}
