//go:build !windows

package app

import "syscall"

var notifySignals = Signals{syscall.SIGUSR1}
