package executor

import (
	"sync"
	"time"
)

// EmergencyStop is the process-wide halt flag checked at the top of every
// execute() call. Modeled on the teacher's circuit-breaker trip/reset pair,
// simplified to a plain admin-toggled boolean rather than automatic
// threshold-based tripping.
type EmergencyStop struct {
	mu        sync.Mutex
	stopped   bool
	reason    string
	stoppedAt time.Time
}

// Trip halts all execution until Resume is called.
func (e *EmergencyStop) Trip(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	e.reason = reason
	e.stoppedAt = time.Now()
}

// Resume clears the halt flag.
func (e *EmergencyStop) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = false
	e.reason = ""
	e.stoppedAt = time.Time{}
}

// IsStopped reports whether execution is currently halted.
func (e *EmergencyStop) IsStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// Reason returns the last trip reason, or "" if not stopped.
func (e *EmergencyStop) Reason() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.stopped {
		return ""
	}
	return e.reason
}
