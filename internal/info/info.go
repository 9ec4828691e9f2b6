// Package info defines the auxiliary information carried along exploration
// paths and the hooks that produce it.
//
// Info values are immutable. Compose merges the information of two paths that
// reach an equal state and must be associative; the engines assume it is also
// commutative enough that worklist order does not change the fixpoint.
package info

import "github.com/roach88/absim/internal/ir"

// Info is composable transition information.
type Info[I any] interface {
	Compose(other I) I
	Equal(other I) bool
	Canonical() ir.IRObject
}

// Reason says why a process became ready.
type Reason string

const (
	ReasonDelta  Reason = "delta"
	ReasonTime   Reason = "time"
	ReasonEvents Reason = "events"
)

// Handler is called by the engines at fixed points of evaluation. Handlers
// return updated information and never influence control flow.
type Handler[I Info[I]] interface {
	Empty() I
	OnStartOfCode(cur I, thread string) I
	OnUnblocked(cur I, process string, reason Reason) I
	OnAccess(cur I, thread string, variable string, write bool) I
}
