//go:build !windows

package parse

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup puts the renderer in its own process group so that
// cancelling also stops the node process npx spawns.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
