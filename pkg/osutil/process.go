// Package osutil runs external helper processes, such as the skills.sh
// registry CLI, so that cancelling them never leaves orphans behind.
package osutil

import (
	"os/exec"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/process"
)

// waitDelay bounds how long Wait blocks on output pipes held open by
// grandchildren after the process tree was killed.
const waitDelay = time.Second

// Isolate prepares cmd, built with exec.CommandContext, so that cancelling
// its context kills cmd together with every process it spawned. It must be
// called before cmd.Start.
func Isolate(cmd *exec.Cmd) {
	isolate(cmd)
	cmd.WaitDelay = waitDelay
}

// KillProcessTree kills the process with the given pid and all of its
// descendants, children first.
func KillProcessTree(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return errors.Wrapf(err, "failed to find process %d", pid)
	}
	return killTree(p)
}

func killTree(p *process.Process) error {
	children, _ := p.Children()
	for _, child := range children {
		_ = killTree(child)
	}
	if err := p.Kill(); err != nil {
		return errors.Wrapf(err, "failed to kill process %d", p.Pid)
	}
	return nil
}
