// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import "fmt"

// State is a session's position in its lifecycle.
type State string

const (
	Idle       State = "idle"
	Locking    State = "locking"
	Launching  State = "launching"
	Running    State = "running"
	Collecting State = "collecting"
	Done       State = "done"
	Failed     State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

// next lists the forward transition from each non-terminal state. Failed
// is reachable from all of them.
var next = map[State]State{
	Idle:       Locking,
	Locking:    Launching,
	Launching:  Running,
	Running:    Collecting,
	Collecting: Done,
}

func allowed(from, to State) bool {
	if from.Terminal() {
		return false
	}
	return to == Failed || next[from] == to
}

// TransitionError reports an attempt to move a session along an edge the
// lifecycle does not have.
type TransitionError struct {
	From State
	To   State
}

func (err *TransitionError) Error() string {
	return fmt.Sprintf("invalid session transition %s -> %s", err.From, err.To)
}
