package process

import (
	"fmt"
	"strings"
)

// Mode selects how the worker is spawned.
type Mode uint8

const (
	// ModeSidecar resolves a co-packaged binary by logical name and tracks
	// only the spawned child.
	ModeSidecar Mode = iota
	// ModeGrouped spawns the worker in its own process group, killing the
	// handle kills the worker descendants too.
	ModeGrouped
)

var modeNames = map[Mode]string{
	ModeSidecar: "sidecar",
	ModeGrouped: "grouped",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Valid reports whether m names a known launch mode.
func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

func ParseMode(s string) (Mode, error) {
	for mode, name := range modeNames {
		if strings.EqualFold(s, name) {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unsupported launch mode %q", s)
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}
