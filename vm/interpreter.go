package vm

import "github.com/tomaz-v/vesper/bytecode"

// ---------------------------------------------------------------------------
// Interpreter: fetch/dispatch loop
// ---------------------------------------------------------------------------

// Interpreter drives a package against a VM. It owns the instruction pointer
// and the pending-jump slot; instructions never touch the instruction pointer
// directly, they schedule a jump that the interpreter applies after the
// instruction's effect has run.
type Interpreter struct {
	vm  *VM
	pkg *bytecode.Package

	ip            uint64
	pendingJump   bytecode.JumpAddress
	jumpScheduled bool

	// Index of the instruction whose jump produced the current ip, used to
	// attribute an InvalidJumpTarget trap raised at fetch time.
	controlIP    uint64
	hasControlIP bool
}

// NewInterpreter creates an interpreter executing pkg against vm.
func NewInterpreter(machine *VM, pkg *bytecode.Package) *Interpreter {
	return &Interpreter{vm: machine, pkg: pkg}
}

// VM returns the machine state this interpreter drives.
func (i *Interpreter) VM() *VM {
	return i.vm
}

// IP returns the index of the next instruction to fetch.
func (i *Interpreter) IP() uint64 {
	return i.ip
}

// SetEntryPoint positions the instruction pointer at the given instruction
// index. The caller is responsible for picking a valid entry.
func (i *Interpreter) SetEntryPoint(entry uint64) {
	i.ip = entry
	i.hasControlIP = false
}

// Execute runs until the instruction pointer moves past the last instruction
// (normal termination) or an instruction traps.
func (i *Interpreter) Execute() error {
	for {
		done, err := i.Step()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// Step fetches and executes a single instruction. It returns done=true when
// the instruction pointer equals the package's instruction count, which is
// the machine's normal way of terminating; an instruction pointer beyond
// that returns an InvalidJumpTarget trap. Driving Step in a loop with an
// iteration budget is how an embedder bounds a non-terminating program.
func (i *Interpreter) Step() (done bool, err error) {
	if !i.pkg.IsValid(i.ip) {
		// Overshooting the package by exactly one instruction slot is the
		// normal exit. Anything farther is a corrupt jump.
		if i.ip == i.pkg.Count() {
			return true, nil
		}
		trap := newTrap(TrapInvalidJumpTarget,
			"instruction pointer %d outside package of %d instructions", i.ip, i.pkg.Count())
		trap.IP = i.ip
		if i.hasControlIP {
			trap.IP = i.controlIP
		}
		return false, trap
	}

	instructionIP := i.ip
	inst := i.pkg.Fetch(instructionIP)
	i.ip++

	if err := i.executeInstruction(inst); err != nil {
		trap, ok := err.(*Trap)
		if ok {
			trap.IP = instructionIP
		}
		return false, err
	}

	if i.jumpScheduled {
		i.ip = i.pendingJump.Value
		i.jumpScheduled = false
		i.controlIP = instructionIP
		i.hasControlIP = true
	} else {
		i.hasControlIP = false
	}
	return false, nil
}

// Jump schedules the deferred jump for the current step. At most one jump may
// be scheduled per instruction; a second schedule is a programming error in
// the instruction set, not in user bytecode.
func (i *Interpreter) Jump(target bytecode.JumpAddress) error {
	if i.jumpScheduled {
		return newTrap(TrapDoubleJumpScheduled,
			"jump to %s scheduled while a jump to %s is already pending", target, i.pendingJump)
	}
	i.pendingJump = target
	i.jumpScheduled = true
	return nil
}

// Call records a frame holding the return address (the instruction after the
// call) and the caller's parameter byte count, then schedules the jump into
// the callee.
func (i *Interpreter) Call(callee bytecode.JumpAddress, parametersByteCount uint64) error {
	// The instruction pointer was already advanced by the fetch, so it names
	// the instruction following the Call.
	returnAddress := bytecode.NewJumpAddress(i.ip)
	i.vm.CallStack().Push(returnAddress, parametersByteCount)
	return i.Jump(callee)
}

// ReturnFromCall pops the top call frame, releases the caller-pushed
// parameter region and schedules the jump back to the return address.
func (i *Interpreter) ReturnFromCall() error {
	frame, err := i.vm.CallStack().Pop()
	if err != nil {
		return err
	}
	if err := i.vm.Stack().Pop(frame.ParametersByteCount); err != nil {
		return err
	}
	return i.Jump(frame.ReturnAddress)
}

// executeInstruction applies one instruction's effect to the VM state.
func (i *Interpreter) executeInstruction(inst *bytecode.Instruction) error {
	m := i.vm
	switch inst.Op {
	case bytecode.OpLoadImmediate8:
		return m.SetRegister(inst.Dst, inst.Value)

	case bytecode.OpPushImmediate8:
		return m.Stack().PushU8(uint8(inst.Value))
	case bytecode.OpPushImmediate16:
		return m.Stack().PushU16(uint16(inst.Value))
	case bytecode.OpPushImmediate32:
		return m.Stack().PushU32(uint32(inst.Value))
	case bytecode.OpPushImmediate64:
		return m.Stack().PushU64(inst.Value)

	case bytecode.OpPushRegister:
		value, err := m.Register(inst.Src)
		if err != nil {
			return err
		}
		return m.Stack().PushRegisterSlot(value)
	case bytecode.OpPopRegister:
		return m.Stack().PopRegisterSlot()
	case bytecode.OpPush:
		_, err := m.Stack().Push(inst.Value)
		return err
	case bytecode.OpPop:
		return m.Stack().Pop(inst.Value)

	case bytecode.OpLoadFromStack:
		value, err := m.Stack().ReadRegisterSlotAt(inst.Offset)
		if err != nil {
			return err
		}
		return m.SetRegister(inst.Dst, value)
	case bytecode.OpLoad8FromStack:
		value, err := m.Stack().ReadU8At(inst.Offset)
		if err != nil {
			return err
		}
		return m.SetRegister(inst.Dst, uint64(value))
	case bytecode.OpLoad16FromStack:
		value, err := m.Stack().ReadU16At(inst.Offset)
		if err != nil {
			return err
		}
		return m.SetRegister(inst.Dst, uint64(value))
	case bytecode.OpLoad32FromStack:
		value, err := m.Stack().ReadU32At(inst.Offset)
		if err != nil {
			return err
		}
		return m.SetRegister(inst.Dst, uint64(value))

	case bytecode.OpStoreToStack:
		value, err := m.Register(inst.Src)
		if err != nil {
			return err
		}
		return m.Stack().WriteRegisterSlotAt(inst.Offset, value)
	case bytecode.OpStore8ToStack:
		value, err := m.Register(inst.Src)
		if err != nil {
			return err
		}
		return m.Stack().WriteU8At(inst.Offset, uint8(value))
	case bytecode.OpStore16ToStack:
		value, err := m.Register(inst.Src)
		if err != nil {
			return err
		}
		return m.Stack().WriteU16At(inst.Offset, uint16(value))
	case bytecode.OpStore32ToStack:
		value, err := m.Register(inst.Src)
		if err != nil {
			return err
		}
		return m.Stack().WriteU32At(inst.Offset, uint32(value))

	case bytecode.OpAdd:
		lhs, rhs, err := i.readOperands(inst.Src, inst.Src2)
		if err != nil {
			return err
		}
		return m.SetRegister(inst.Dst, lhs+rhs)
	case bytecode.OpSub:
		lhs, rhs, err := i.readOperands(inst.Src, inst.Src2)
		if err != nil {
			return err
		}
		return m.SetRegister(inst.Dst, lhs-rhs)
	case bytecode.OpIncrement:
		value, err := m.Register(inst.Dst)
		if err != nil {
			return err
		}
		return m.SetRegister(inst.Dst, value+1)
	case bytecode.OpDecrement:
		value, err := m.Register(inst.Dst)
		if err != nil {
			return err
		}
		return m.SetRegister(inst.Dst, value-1)
	case bytecode.OpCompareGreater:
		lhs, rhs, err := i.readOperands(inst.Src, inst.Src2)
		if err != nil {
			return err
		}
		var result uint64
		if lhs > rhs {
			result = 1
		}
		return m.SetRegister(inst.Dst, result)

	case bytecode.OpJump:
		return i.Jump(inst.Target)
	case bytecode.OpJumpIf:
		condition, err := m.Register(inst.Src)
		if err != nil {
			return err
		}
		if condition != 0 {
			return i.Jump(inst.Target)
		}
		return nil
	case bytecode.OpCall:
		return i.Call(inst.Target, inst.Value)
	case bytecode.OpReturn:
		return i.ReturnFromCall()

	default:
		return newTrap(TrapUnknownOpcode, "opcode %d is not part of the instruction set", uint16(inst.Op))
	}
}

func (i *Interpreter) readOperands(lhs, rhs bytecode.Register) (uint64, uint64, error) {
	lhsValue, err := i.vm.Register(lhs)
	if err != nil {
		return 0, 0, err
	}
	rhsValue, err := i.vm.Register(rhs)
	if err != nil {
		return 0, 0, err
	}
	return lhsValue, rhsValue, nil
}
