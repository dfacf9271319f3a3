package vm

import "github.com/tomaz-v/vesper/bytecode"

// ---------------------------------------------------------------------------
// VM: register file, operand stack and call stack
// ---------------------------------------------------------------------------

// Config carries the tunable resource limits of a VM.
type Config struct {
	// StackLimit is the operand stack's growth ceiling in bytes.
	StackLimit uint64
}

// DefaultConfig returns the limits used by NewVM.
func DefaultConfig() Config {
	return Config{StackLimit: DefaultStackLimit}
}

// VM owns the mutable machine state an interpreter executes against: the
// fixed register file, the operand stack and the call stack. One interpreter
// at a time may drive a VM; separate VMs are fully independent.
type VM struct {
	registers [bytecode.RegisterCount]uint64
	stack     *OperandStack
	callStack *CallStack
}

// NewVM creates a VM with all registers zeroed and default limits.
func NewVM() *VM {
	return NewVMWithConfig(DefaultConfig())
}

// NewVMWithConfig creates a VM with the given resource limits.
func NewVMWithConfig(cfg Config) *VM {
	if cfg.StackLimit == 0 {
		cfg.StackLimit = DefaultStackLimit
	}
	return &VM{
		stack:     NewOperandStack(cfg.StackLimit),
		callStack: NewCallStack(),
	}
}

// Register returns the current value of r.
func (m *VM) Register(r bytecode.Register) (uint64, error) {
	if !r.IsValid() {
		return 0, newTrap(TrapInvalidRegister, "register index %d outside the register file", uint8(r))
	}
	return m.registers[r], nil
}

// SetRegister stores value into r.
func (m *VM) SetRegister(r bytecode.Register, value uint64) error {
	if !r.IsValid() {
		return newTrap(TrapInvalidRegister, "register index %d outside the register file", uint8(r))
	}
	m.registers[r] = value
	return nil
}

// Stack returns the VM's operand stack.
func (m *VM) Stack() *OperandStack {
	return m.stack
}

// CallStack returns the VM's call stack.
func (m *VM) CallStack() *CallStack {
	return m.callStack
}
