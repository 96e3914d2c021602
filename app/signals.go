package app

import (
	"os"
	"syscall"
)

type (
	Signal           = os.Signal
	Signals          = []Signal
	SignalGroup      uint8
	SignalGroupIndex = map[Signal]SignalGroup
)

const (
	SignalGroupStop SignalGroup = iota
	SignalGroupNotify
)

var (
	SignalGroups = []SignalGroup{
		SignalGroupStop,
		SignalGroupNotify,
	}
)

func signalsOf(sgid SignalGroup) Signals {
	switch sgid {
	case SignalGroupStop:
		return Signals{syscall.SIGINT, syscall.SIGTERM}
	case SignalGroupNotify:
		return notifySignals
	}
	return nil
}

func GroupSignals(s interface{ Signals(...SignalGroup) Signals }) SignalGroupIndex {
	sgids := SignalGroupIndex{}
	for _, sgid := range SignalGroups {
		for _, sig := range s.Signals(sgid) {
			sgids[sig] = sgid
		}
	}
	return sgids
}
