//go:build windows

package parse

import "os/exec"

func configureProcessGroup(cmd *exec.Cmd) {}
