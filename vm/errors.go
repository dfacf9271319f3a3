package vm

import "fmt"

// ---------------------------------------------------------------------------
// Trap: fatal execution errors
// ---------------------------------------------------------------------------

// TrapKind classifies the invariant a program broke.
type TrapKind int

const (
	TrapInvalidRegister TrapKind = iota
	TrapInvalidJumpTarget
	TrapStackUnderflow
	TrapStackOverflow
	TrapStackReadOutOfBounds
	TrapStackWriteOutOfBounds
	TrapCallStackUnderflow
	TrapDoubleJumpScheduled
	TrapUnknownOpcode
)

var trapKindNames = map[TrapKind]string{
	TrapInvalidRegister:       "InvalidRegister",
	TrapInvalidJumpTarget:     "InvalidJumpTarget",
	TrapStackUnderflow:        "StackUnderflow",
	TrapStackOverflow:         "StackOverflow",
	TrapStackReadOutOfBounds:  "StackReadOutOfBounds",
	TrapStackWriteOutOfBounds: "StackWriteOutOfBounds",
	TrapCallStackUnderflow:    "CallStackUnderflow",
	TrapDoubleJumpScheduled:   "DoubleJumpScheduled",
	TrapUnknownOpcode:         "UnknownOpcode",
}

// String returns the kind's stable name.
func (k TrapKind) String() string {
	if name, ok := trapKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TrapKind(%d)", int(k))
}

// Trap describes a fatal fault raised during execution. IP is the index of
// the instruction whose effect broke the invariant.
type Trap struct {
	Kind    TrapKind
	IP      uint64
	Message string
}

// Error implements the error interface.
func (t *Trap) Error() string {
	return fmt.Sprintf("%s at ip %d: %s", t.Kind, t.IP, t.Message)
}

// newTrap creates a trap with an unresolved instruction pointer. The
// interpreter fills in IP when it surfaces the trap to its caller.
func newTrap(kind TrapKind, format string, args ...any) *Trap {
	return &Trap{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
