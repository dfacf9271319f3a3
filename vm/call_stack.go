package vm

import "github.com/tomaz-v/vesper/bytecode"

// ---------------------------------------------------------------------------
// CallStack: frames for in-flight calls
// ---------------------------------------------------------------------------

// CallFrame records one suspended caller. Return addresses live here, apart
// from the operand stack, so user bytecode cannot overwrite control flow
// with data.
type CallFrame struct {
	ReturnAddress       bytecode.JumpAddress
	ParametersByteCount uint64
}

// CallStack is the VM's stack of active call frames.
type CallStack struct {
	frames []CallFrame
}

// NewCallStack creates an empty call stack.
func NewCallStack() *CallStack {
	return &CallStack{}
}

// Depth returns the number of active frames.
func (cs *CallStack) Depth() int {
	return len(cs.frames)
}

// Push records a new frame for a call.
func (cs *CallStack) Push(returnAddress bytecode.JumpAddress, parametersByteCount uint64) {
	cs.frames = append(cs.frames, CallFrame{
		ReturnAddress:       returnAddress,
		ParametersByteCount: parametersByteCount,
	})
}

// Pop removes and returns the top frame. A pop with no active frame is a
// return-without-call and raises CallStackUnderflow.
func (cs *CallStack) Pop() (CallFrame, error) {
	if len(cs.frames) == 0 {
		return CallFrame{}, newTrap(TrapCallStackUnderflow, "return with empty call stack")
	}
	frame := cs.frames[len(cs.frames)-1]
	cs.frames = cs.frames[:len(cs.frames)-1]
	return frame, nil
}
