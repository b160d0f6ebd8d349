package solver

import "fmt"

// Diagnostics is an append-only list of warnings and info lines threaded
// through the pipeline (spec §9 design note: "replace global mutable state
// for warnings/infos with a Diagnostics value threaded through the
// pipeline; append-only, no cross-thread sharing").
type Diagnostics struct {
	lines []string
}

func (d *Diagnostics) Info(format string, args ...interface{}) {
	d.lines = append(d.lines, "info: "+fmt.Sprintf(format, args...))
}

func (d *Diagnostics) Warn(format string, args ...interface{}) {
	d.lines = append(d.lines, "warn: "+fmt.Sprintf(format, args...))
}

// Lines returns the accumulated diagnostics in emission order.
func (d *Diagnostics) Lines() []string {
	out := make([]string, len(d.lines))
	copy(out, d.lines)
	return out
}
