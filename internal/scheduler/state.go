package scheduler

import "sync/atomic"

// State is the scan state of the scheduler.
type State int32

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// flight is the idle -> running -> idle machine that keeps at most one
// scan in flight. The zero value is idle.
type flight struct {
	state atomic.Int32
}

// begin moves idle to running. It reports false when a scan is already
// running.
func (f *flight) begin() bool {
	return f.state.CompareAndSwap(int32(StateIdle), int32(StateRunning))
}

// end moves running back to idle.
func (f *flight) end() {
	f.state.CompareAndSwap(int32(StateRunning), int32(StateIdle))
}

func (f *flight) current() State {
	return State(f.state.Load())
}
