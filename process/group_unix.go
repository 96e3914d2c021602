//go:build !windows

package process

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setGroup puts the child process in its own process group.
func setGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killGroup sends SIGKILL to the entire process group.
func killGroup(pgid int) error {
	return unix.Kill(-pgid, unix.SIGKILL)
}
