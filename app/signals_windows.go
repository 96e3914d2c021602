//go:build windows

package app

// no user signals on windows, restarts go through Notify only
var notifySignals Signals
