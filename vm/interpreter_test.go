package vm

import (
	"errors"
	"math"
	"testing"

	"github.com/tomaz-v/vesper/bytecode"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func assemble(instructions ...bytecode.Instruction) *bytecode.Package {
	pkg := bytecode.NewPackage()
	for _, inst := range instructions {
		pkg.Emit(inst)
	}
	return pkg
}

func runPackage(t *testing.T, pkg *bytecode.Package, entry uint64) *VM {
	t.Helper()
	machine := NewVM()
	interp := NewInterpreter(machine, pkg)
	interp.SetEntryPoint(entry)
	if err := interp.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return machine
}

func registerValue(t *testing.T, machine *VM, r bytecode.Register) uint64 {
	t.Helper()
	value, err := machine.Register(r)
	if err != nil {
		t.Fatalf("Register(%s): %v", r, err)
	}
	return value
}

// ---------------------------------------------------------------------------
// Basic execution tests
// ---------------------------------------------------------------------------

func TestExecuteEmptyPackage(t *testing.T) {
	machine := NewVM()
	interp := NewInterpreter(machine, assemble())
	if err := interp.Execute(); err != nil {
		t.Fatalf("Execute on empty package: %v", err)
	}
}

func TestLoadImmediate(t *testing.T) {
	machine := runPackage(t, assemble(bytecode.NewLoadImmediate8(bytecode.GPR2, 42)), 0)
	if got := registerValue(t, machine, bytecode.GPR2); got != 42 {
		t.Errorf("GPR2 = %d, want 42", got)
	}
}

func TestRegistersStartZeroed(t *testing.T) {
	machine := runPackage(t, assemble(bytecode.NewIncrement(bytecode.GPR0)), 0)
	if got := registerValue(t, machine, bytecode.GPR0); got != 1 {
		t.Errorf("GPR0 = %d, want 1", got)
	}
	if got := registerValue(t, machine, bytecode.GPR3); got != 0 {
		t.Errorf("GPR3 = %d, want 0", got)
	}
}

// ---------------------------------------------------------------------------
// Arithmetic boundary behaviour
// ---------------------------------------------------------------------------

func TestAddWraps(t *testing.T) {
	machine := NewVM()
	if err := machine.SetRegister(bytecode.GPR0, math.MaxUint64); err != nil {
		t.Fatal(err)
	}
	if err := machine.SetRegister(bytecode.GPR1, 1); err != nil {
		t.Fatal(err)
	}
	interp := NewInterpreter(machine, assemble(bytecode.NewAdd(bytecode.GPR2, bytecode.GPR0, bytecode.GPR1)))
	if err := interp.Execute(); err != nil {
		t.Fatal(err)
	}
	if got := registerValue(t, machine, bytecode.GPR2); got != 0 {
		t.Errorf("max + 1 = %d, want 0", got)
	}
}

func TestSubWraps(t *testing.T) {
	machine := runPackage(t, assemble(
		bytecode.NewLoadImmediate8(bytecode.GPR0, 0),
		bytecode.NewLoadImmediate8(bytecode.GPR1, 1),
		bytecode.NewSub(bytecode.GPR2, bytecode.GPR0, bytecode.GPR1),
	), 0)
	if got := registerValue(t, machine, bytecode.GPR2); got != math.MaxUint64 {
		t.Errorf("0 - 1 = %d, want max", got)
	}
}

func TestCompareGreaterEqualOperands(t *testing.T) {
	machine := runPackage(t, assemble(
		bytecode.NewLoadImmediate8(bytecode.GPR0, 7),
		bytecode.NewLoadImmediate8(bytecode.GPR1, 7),
		bytecode.NewLoadImmediate8(bytecode.GPR2, 1),
		bytecode.NewCompareGreater(bytecode.GPR2, bytecode.GPR0, bytecode.GPR1),
	), 0)
	if got := registerValue(t, machine, bytecode.GPR2); got != 0 {
		t.Errorf("7 > 7 = %d, want 0", got)
	}
}

// Add then Sub with the same operand restores the original value.
func TestAddSubInverse(t *testing.T) {
	machine := runPackage(t, assemble(
		bytecode.NewLoadImmediate8(bytecode.GPR0, 19),
		bytecode.NewLoadImmediate8(bytecode.GPR1, 23),
		bytecode.NewAdd(bytecode.GPR2, bytecode.GPR0, bytecode.GPR1),
		bytecode.NewSub(bytecode.GPR3, bytecode.GPR2, bytecode.GPR1),
	), 0)
	if got := registerValue(t, machine, bytecode.GPR3); got != 19 {
		t.Errorf("GPR3 = %d, want 19", got)
	}
}

// ---------------------------------------------------------------------------
// Stack instruction round trips
// ---------------------------------------------------------------------------

func TestPushImmediateLoadRoundTrips(t *testing.T) {
	tests := []struct {
		name string
		push bytecode.Instruction
		load bytecode.Instruction
		want uint64
	}{
		{"u8", bytecode.NewPushImmediate8(0xAB), bytecode.NewLoad8FromStack(bytecode.GPR0, 0), 0xAB},
		{"u16", bytecode.NewPushImmediate16(0xBEEF), bytecode.NewLoad16FromStack(bytecode.GPR0, 0), 0xBEEF},
		{"u32", bytecode.NewPushImmediate32(0xCAFEBABE), bytecode.NewLoad32FromStack(bytecode.GPR0, 0), 0xCAFEBABE},
		{"u64", bytecode.NewPushImmediate64(0xDEADBEEFCAFEBABE), bytecode.NewLoadFromStack(bytecode.GPR0, 0), 0xDEADBEEFCAFEBABE},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			machine := runPackage(t, assemble(test.push, test.load), 0)
			if got := registerValue(t, machine, bytecode.GPR0); got != test.want {
				t.Errorf("loaded %#x, want %#x", got, test.want)
			}
		})
	}
}

func TestPushRegisterPopRegisterPreservesRegisters(t *testing.T) {
	machine := runPackage(t, assemble(
		bytecode.NewLoadImmediate8(bytecode.GPR0, 11),
		bytecode.NewLoadImmediate8(bytecode.GPR1, 22),
		bytecode.NewPushRegister(bytecode.GPR0),
		bytecode.NewPopRegister(),
	), 0)
	if got := registerValue(t, machine, bytecode.GPR0); got != 11 {
		t.Errorf("GPR0 = %d, want 11", got)
	}
	if got := registerValue(t, machine, bytecode.GPR1); got != 22 {
		t.Errorf("GPR1 = %d, want 22", got)
	}
	if top := machine.Stack().Top(); top != 0 {
		t.Errorf("stack top = %d, want 0", top)
	}
}

func TestStoreToStackNarrowWidths(t *testing.T) {
	machine := runPackage(t, assemble(
		bytecode.NewPushImmediate64(0),
		bytecode.NewLoadImmediate8(bytecode.GPR0, 0xFF),
		bytecode.NewStore8ToStack(0, bytecode.GPR0),
		bytecode.NewLoad8FromStack(bytecode.GPR1, 0),
	), 0)
	if got := registerValue(t, machine, bytecode.GPR1); got != 0xFF {
		t.Errorf("GPR1 = %#x, want 0xFF", got)
	}
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

func TestJumpIfFalseFallsThrough(t *testing.T) {
	// GPR0 stays zero, so the conditional jump over the increment must not
	// be taken.
	machine := runPackage(t, assemble(
		bytecode.NewJumpIf(bytecode.GPR0, bytecode.NewJumpAddress(2)),
		bytecode.NewIncrement(bytecode.GPR1),
	), 0)
	if got := registerValue(t, machine, bytecode.GPR1); got != 1 {
		t.Errorf("GPR1 = %d, want 1 (fall through)", got)
	}
}

// Jumping exactly one past the last instruction is the normal exit.
func TestJumpToCountTerminates(t *testing.T) {
	pkg := assemble(
		bytecode.NewJump(bytecode.NewJumpAddress(2)),
		bytecode.NewIncrement(bytecode.GPR0),
	)
	machine := runPackage(t, pkg, 0)
	if got := registerValue(t, machine, bytecode.GPR0); got != 0 {
		t.Errorf("GPR0 = %d, the skipped increment ran", got)
	}
}

// Jumping farther than one past the end is a corrupt jump.
func TestJumpPastCountTraps(t *testing.T) {
	pkg := assemble(bytecode.NewJump(bytecode.NewJumpAddress(5)))
	interp := NewInterpreter(NewVM(), pkg)
	err := interp.Execute()
	if err == nil {
		t.Fatal("jump past count+1 succeeded")
	}
	var trap *Trap
	if !errors.As(err, &trap) {
		t.Fatalf("error %v is not a *Trap", err)
	}
	if trap.Kind != TrapInvalidJumpTarget {
		t.Errorf("kind = %v, want InvalidJumpTarget", trap.Kind)
	}
	if trap.IP != 0 {
		t.Errorf("trap ip = %d, want 0 (the offending Jump)", trap.IP)
	}
}

// A single-instruction loop never terminates; Step lets the harness bound it.
func TestInfiniteLoopIsBoundable(t *testing.T) {
	pkg := assemble(bytecode.NewJump(bytecode.NewJumpAddress(0)))
	interp := NewInterpreter(NewVM(), pkg)
	for step := 0; step < 1000; step++ {
		done, err := interp.Step()
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		if done {
			t.Fatal("Jump @0 loop terminated")
		}
	}
	if interp.IP() != 0 {
		t.Errorf("ip = %d, want 0", interp.IP())
	}
}

func TestDoubleJumpScheduledTraps(t *testing.T) {
	interp := NewInterpreter(NewVM(), assemble(bytecode.NewReturn()))
	if err := interp.Jump(bytecode.NewJumpAddress(0)); err != nil {
		t.Fatalf("first Jump: %v", err)
	}
	err := interp.Jump(bytecode.NewJumpAddress(1))
	if err == nil {
		t.Fatal("second jump in one step succeeded")
	}
	if kind := trapKind(t, err); kind != TrapDoubleJumpScheduled {
		t.Errorf("kind = %v, want DoubleJumpScheduled", kind)
	}
}

func TestReturnWithoutCallTraps(t *testing.T) {
	interp := NewInterpreter(NewVM(), assemble(bytecode.NewReturn()))
	err := interp.Execute()
	if err == nil {
		t.Fatal("return without call succeeded")
	}
	var trap *Trap
	if !errors.As(err, &trap) {
		t.Fatalf("error %v is not a *Trap", err)
	}
	if trap.Kind != TrapCallStackUnderflow {
		t.Errorf("kind = %v, want CallStackUnderflow", trap.Kind)
	}
	if trap.IP != 0 {
		t.Errorf("trap ip = %d, want 0", trap.IP)
	}
}

func TestInvalidRegisterTraps(t *testing.T) {
	// The constructors cannot produce an out-of-range register, so build the
	// instruction record directly, as a hostile decoder might.
	pkg := assemble(bytecode.Instruction{Op: bytecode.OpIncrement, Dst: bytecode.Register(9)})
	err := NewInterpreter(NewVM(), pkg).Execute()
	if err == nil {
		t.Fatal("out-of-range register succeeded")
	}
	if kind := trapKind(t, err); kind != TrapInvalidRegister {
		t.Errorf("kind = %v, want InvalidRegister", kind)
	}
}

func TestUnknownOpcodeTraps(t *testing.T) {
	pkg := assemble(bytecode.Instruction{Op: bytecode.OpUnknown})
	err := NewInterpreter(NewVM(), pkg).Execute()
	if err == nil {
		t.Fatal("unknown opcode succeeded")
	}
	if kind := trapKind(t, err); kind != TrapUnknownOpcode {
		t.Errorf("kind = %v, want UnknownOpcode", kind)
	}
}

// ---------------------------------------------------------------------------
// Call/Return discipline
// ---------------------------------------------------------------------------

// A call frame's parameter byte count releases exactly the parameter region,
// leaving older pushes untouched.
func TestCallReturnLeavesOlderStackData(t *testing.T) {
	pkg := assemble(
		/* [0] */ bytecode.NewJump(bytecode.NewJumpAddress(2)),
		/* [1] */ bytecode.NewReturn(),
		/* [2] */ bytecode.NewPushImmediate64(1111),
		/* [3] */ bytecode.NewPushImmediate64(2222),
		/* [4] */ bytecode.NewCall(bytecode.NewJumpAddress(1), 8),
		/* [5] */ bytecode.NewLoadFromStack(bytecode.GPR0, 0),
	)
	machine := runPackage(t, pkg, 0)
	if top := machine.Stack().Top(); top != 8 {
		t.Fatalf("stack top = %d, want 8 (only the first push)", top)
	}
	if got := registerValue(t, machine, bytecode.GPR0); got != 1111 {
		t.Errorf("surviving slot = %d, want 1111", got)
	}
	if depth := machine.CallStack().Depth(); depth != 0 {
		t.Errorf("call stack depth = %d, want 0", depth)
	}
}

func TestCallRecordsReturnAddressPastCall(t *testing.T) {
	// The callee stores a marker and returns; execution must resume at the
	// instruction after the Call.
	pkg := assemble(
		/* [0] */ bytecode.NewJump(bytecode.NewJumpAddress(3)),
		/* [1] */ bytecode.NewIncrement(bytecode.GPR1),
		/* [2] */ bytecode.NewReturn(),
		/* [3] */ bytecode.NewCall(bytecode.NewJumpAddress(1), 0),
		/* [4] */ bytecode.NewIncrement(bytecode.GPR2),
	)
	machine := runPackage(t, pkg, 0)
	if got := registerValue(t, machine, bytecode.GPR1); got != 1 {
		t.Errorf("callee ran %d times, want 1", got)
	}
	if got := registerValue(t, machine, bytecode.GPR2); got != 1 {
		t.Errorf("post-call instruction ran %d times, want 1", got)
	}
}

// ---------------------------------------------------------------------------
// End-to-end programs
// ---------------------------------------------------------------------------

// Sum of 1..10 in registers.
func TestProgramSumLoop(t *testing.T) {
	pkg := assemble(
		bytecode.NewLoadImmediate8(bytecode.GPR0, 0),
		bytecode.NewLoadImmediate8(bytecode.GPR1, 1),
		bytecode.NewLoadImmediate8(bytecode.GPR2, 10),
		bytecode.NewCompareGreater(bytecode.GPR3, bytecode.GPR1, bytecode.GPR2),
		bytecode.NewJumpIf(bytecode.GPR3, bytecode.NewJumpAddress(8)),
		bytecode.NewAdd(bytecode.GPR0, bytecode.GPR0, bytecode.GPR1),
		bytecode.NewIncrement(bytecode.GPR1),
		bytecode.NewJump(bytecode.NewJumpAddress(3)),
	)
	machine := runPackage(t, pkg, 0)
	if got := registerValue(t, machine, bytecode.GPR0); got != 55 {
		t.Errorf("sum = %d, want 55", got)
	}
}

// Iterative Fibonacci over stack locals: n = 15 leaves b = F(16) = 987.
func TestProgramFibonacciLinear(t *testing.T) {
	pkg := assemble(
		/* [ 0] */ bytecode.NewPushImmediate64(15),
		/* [ 1] */ bytecode.NewPushImmediate64(0),
		/* [ 2] */ bytecode.NewPushImmediate64(1),
		/* [ 3] */ bytecode.NewPushImmediate64(1),
		/* [ 4] */ bytecode.NewLoadFromStack(bytecode.GPR0, 24),
		/* [ 5] */ bytecode.NewLoadFromStack(bytecode.GPR1, 0),
		/* [ 6] */ bytecode.NewCompareGreater(bytecode.GPR0, bytecode.GPR1, bytecode.GPR0),
		/* [ 7] */ bytecode.NewJumpIf(bytecode.GPR0, bytecode.NewJumpAddress(20)),
		/* [ 8] */ bytecode.NewLoadFromStack(bytecode.GPR0, 16),
		/* [ 9] */ bytecode.NewPushRegister(bytecode.GPR0),
		/* [10] */ bytecode.NewLoadFromStack(bytecode.GPR0, 16),
		/* [11] */ bytecode.NewStoreToStack(24, bytecode.GPR0),
		/* [12] */ bytecode.NewLoadFromStack(bytecode.GPR1, 0),
		/* [13] */ bytecode.NewAdd(bytecode.GPR0, bytecode.GPR1, bytecode.GPR0),
		/* [14] */ bytecode.NewStoreToStack(16, bytecode.GPR0),
		/* [15] */ bytecode.NewPopRegister(),
		/* [16] */ bytecode.NewLoadFromStack(bytecode.GPR0, 0),
		/* [17] */ bytecode.NewIncrement(bytecode.GPR0),
		/* [18] */ bytecode.NewStoreToStack(0, bytecode.GPR0),
		/* [19] */ bytecode.NewJump(bytecode.NewJumpAddress(4)),
		/* [20] */ bytecode.NewLoadFromStack(bytecode.GPR0, 8),
		/* [21] */ bytecode.NewPopRegister(),
		/* [22] */ bytecode.NewPopRegister(),
		/* [23] */ bytecode.NewPopRegister(),
		/* [24] */ bytecode.NewPopRegister(),
	)
	machine := runPackage(t, pkg, 0)
	if got := registerValue(t, machine, bytecode.GPR0); got != 987 {
		t.Errorf("F(16) = %d, want 987", got)
	}
	if top := machine.Stack().Top(); top != 0 {
		t.Errorf("stack top = %d after unwind, want 0", top)
	}
}

// Recursive Fibonacci with Call/Return: F(11) = 89.
func TestProgramFibonacciRecursive(t *testing.T) {
	pkg := assemble(
		/* [ 0] */ bytecode.NewLoadFromStack(bytecode.GPR0, 0),
		/* [ 1] */ bytecode.NewLoadImmediate8(bytecode.GPR1, 1),
		/* [ 2] */ bytecode.NewCompareGreater(bytecode.GPR1, bytecode.GPR0, bytecode.GPR1),
		/* [ 3] */ bytecode.NewJumpIf(bytecode.GPR1, bytecode.NewJumpAddress(6)),
		/* [ 4] */ bytecode.NewStoreToStack(8, bytecode.GPR0),
		/* [ 5] */ bytecode.NewReturn(),
		/* [ 6] */ bytecode.NewDecrement(bytecode.GPR0),
		/* [ 7] */ bytecode.NewPushRegister(bytecode.GPR0),
		/* [ 8] */ bytecode.NewPush(8),
		/* [ 9] */ bytecode.NewPushRegister(bytecode.GPR0),
		/* [10] */ bytecode.NewCall(bytecode.NewJumpAddress(0), 8),
		/* [11] */ bytecode.NewLoadFromStack(bytecode.GPR2, 0),
		/* [12] */ bytecode.NewPop(8),
		/* [13] */ bytecode.NewLoadFromStack(bytecode.GPR0, 0),
		/* [14] */ bytecode.NewPopRegister(),
		/* [15] */ bytecode.NewDecrement(bytecode.GPR0),
		/* [16] */ bytecode.NewPushRegister(bytecode.GPR0),
		/* [17] */ bytecode.NewPushRegister(bytecode.GPR2),
		/* [18] */ bytecode.NewPush(8),
		/* [19] */ bytecode.NewPushRegister(bytecode.GPR0),
		/* [20] */ bytecode.NewCall(bytecode.NewJumpAddress(0), 8),
		/* [21] */ bytecode.NewLoadFromStack(bytecode.GPR3, 0),
		/* [22] */ bytecode.NewPop(8),
		/* [23] */ bytecode.NewLoadFromStack(bytecode.GPR2, 0),
		/* [24] */ bytecode.NewLoadFromStack(bytecode.GPR0, 8),
		/* [25] */ bytecode.NewPopRegister(),
		/* [26] */ bytecode.NewPopRegister(),
		/* [27] */ bytecode.NewAdd(bytecode.GPR0, bytecode.GPR2, bytecode.GPR3),
		/* [28] */ bytecode.NewStoreToStack(8, bytecode.GPR0),
		/* [29] */ bytecode.NewReturn(),
		/* [30] */ bytecode.NewPush(8),
		/* [31] */ bytecode.NewPushImmediate64(11),
		/* [32] */ bytecode.NewCall(bytecode.NewJumpAddress(0), 8),
		/* [33] */ bytecode.NewLoadFromStack(bytecode.GPR0, 0),
		/* [34] */ bytecode.NewPop(8),
	)
	machine := runPackage(t, pkg, 30)
	if got := registerValue(t, machine, bytecode.GPR0); got != 89 {
		t.Errorf("F(11) = %d, want 89", got)
	}
	if top := machine.Stack().Top(); top != 0 {
		t.Errorf("stack top = %d after unwind, want 0", top)
	}
	if depth := machine.CallStack().Depth(); depth != 0 {
		t.Errorf("call stack depth = %d, want 0", depth)
	}
}

// ---------------------------------------------------------------------------
// Stack faults surface with the offending ip
// ---------------------------------------------------------------------------

func TestStackFaultCarriesIP(t *testing.T) {
	pkg := assemble(
		bytecode.NewPushImmediate64(1),
		bytecode.NewLoadFromStack(bytecode.GPR0, 8), // reads past the only slot
	)
	err := NewInterpreter(NewVM(), pkg).Execute()
	if err == nil {
		t.Fatal("out-of-bounds load succeeded")
	}
	var trap *Trap
	if !errors.As(err, &trap) {
		t.Fatalf("error %v is not a *Trap", err)
	}
	if trap.Kind != TrapStackReadOutOfBounds {
		t.Errorf("kind = %v, want StackReadOutOfBounds", trap.Kind)
	}
	if trap.IP != 1 {
		t.Errorf("trap ip = %d, want 1", trap.IP)
	}
}

func TestStackOverflowDuringExecution(t *testing.T) {
	machine := NewVMWithConfig(Config{StackLimit: 16})
	pkg := assemble(
		bytecode.NewPushImmediate64(1),
		bytecode.NewPushImmediate64(2),
		bytecode.NewPushImmediate64(3),
	)
	err := NewInterpreter(machine, pkg).Execute()
	if err == nil {
		t.Fatal("push past the stack limit succeeded")
	}
	var trap *Trap
	if !errors.As(err, &trap) {
		t.Fatalf("error %v is not a *Trap", err)
	}
	if trap.Kind != TrapStackOverflow {
		t.Errorf("kind = %v, want StackOverflow", trap.Kind)
	}
	if trap.IP != 2 {
		t.Errorf("trap ip = %d, want 2", trap.IP)
	}
}
