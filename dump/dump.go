package dump

import (
	"io"

	"github.com/davecgh/go-spew/spew"
)

var dumper = spew.ConfigState{
	Indent:                  "  ",
	SortKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

func Print(xs ...any) {
	dumper.Dump(xs...)
}

// Fprint writes a deterministic dump of xs, suitable for logs and diffs.
func Fprint(w io.Writer, xs ...any) {
	dumper.Fdump(w, xs...)
}

func Sprint(xs ...any) string {
	return dumper.Sdump(xs...)
}

func Sprintf(format string, xs ...any) string {
	return dumper.Sprintf(format, xs...)
}
