//go:build windows

package process

import (
	"os/exec"
	"strconv"
)

// Windows has no process groups, the child keeps default attributes.
func setGroup(cmd *exec.Cmd) {}

// killGroup terminates the process tree rooted at pgid.
func killGroup(pgid int) error {
	return exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pgid)).Run()
}
