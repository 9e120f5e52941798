package lua

import (
	"context"
	"time"
)

type governorState int

const (
	governorIdle governorState = iota
	governorArmed
	governorFired
)

// Governor bounds the number of VM instructions a state may execute.
//
// It is installed with LState.SetContext. gopher-lua calls Done before every
// instruction it executes, so each call is counted as one instruction. When
// the count reaches the armed limit the governor fires: it re-arms itself with
// a limit of 1 and Done returns a closed channel, so the VM raises Err on that
// instruction and on every following one until Arm is called again.
//
// A Governor is not safe for concurrent use; it belongs to the goroutine that
// runs its state.
type Governor struct {
	parent context.Context
	count  int64
	limit  int64
	state  governorState
	fired  chan struct{}
}

// NewGovernor returns an idle governor. An idle governor counts instructions
// but never fires.
func NewGovernor() *Governor {
	fired := make(chan struct{})
	close(fired)
	return &Governor{
		parent: context.Background(),
		fired:  fired,
	}
}

// Arm zeroes the instruction counter and fires after every max(limit, 1)
// executed instructions.
func (g *Governor) Arm(limit int) {
	if limit < 1 {
		limit = 1
	}
	g.count = 0
	g.limit = int64(limit)
	g.state = governorArmed
}

// Instructions returns the number of instructions counted since the last Arm.
func (g *Governor) Instructions() int64 {
	return g.count
}

// Limit returns the current limit, or 0 if the governor was never armed.
func (g *Governor) Limit() int64 {
	return g.limit
}

// Fired reports whether the governor has fired since the last Arm.
func (g *Governor) Fired() bool {
	return g.state == governorFired
}

// Done implements context.Context. It is the per-instruction hook.
func (g *Governor) Done() <-chan struct{} {
	g.count++
	if g.state == governorIdle {
		return nil
	}
	if g.count%g.limit == 0 {
		g.limit = 1
		g.state = governorFired
	}
	if g.state == governorFired {
		return g.fired
	}
	return nil
}

// Err implements context.Context.
func (g *Governor) Err() error {
	if g.state == governorFired {
		return ErrInstructionLimit
	}
	return g.parent.Err()
}

// Deadline implements context.Context.
func (g *Governor) Deadline() (time.Time, bool) {
	return g.parent.Deadline()
}

// Value implements context.Context.
func (g *Governor) Value(key any) any {
	return g.parent.Value(key)
}
