package main

import (
	"fmt"
	"sort"

	"github.com/tomaz-v/vesper/bytecode"
)

// Sample is a hand-assembled bytecode program used to exercise the VM until
// the compiler front end lands.
type Sample struct {
	Name        string
	Description string
	Entry       uint64
	// Result names the register holding the program's result after execution.
	Result bytecode.Register
	Build  func() *bytecode.Package
}

var samples = map[string]Sample{
	"gauss": {
		Name:        "gauss",
		Description: "sum of 1..10 computed in registers",
		Result:      bytecode.GPR0,
		Build:       buildGauss,
	},
	"fib-linear": {
		Name:        "fib-linear",
		Description: "iterative Fibonacci F(16) from n=15 on stack locals",
		Result:      bytecode.GPR0,
		Build:       buildFibonacciLinear,
	},
	"fib-recursive": {
		Name:        "fib-recursive",
		Description: "recursive Fibonacci F(11) with Call/Return",
		Entry:       30,
		Result:      bytecode.GPR0,
		Build:       buildFibonacciRecursive,
	},
}

// sampleNames returns the sample names in stable order.
func sampleNames() []string {
	names := make([]string, 0, len(samples))
	for name := range samples {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// lookupSample returns the named sample.
func lookupSample(name string) (Sample, error) {
	sample, ok := samples[name]
	if !ok {
		return Sample{}, fmt.Errorf("unknown program %q (available: %v)", name, sampleNames())
	}
	return sample, nil
}

// buildGauss assembles a register-only loop summing the integers 1..10.
func buildGauss() *bytecode.Package {
	pkg := bytecode.NewPackage()

	// accumulator = 0; i = 1; n = 10
	/* [0] */ pkg.Emit(bytecode.NewLoadImmediate8(bytecode.GPR0, 0))
	/* [1] */ pkg.Emit(bytecode.NewLoadImmediate8(bytecode.GPR1, 1))
	/* [2] */ pkg.Emit(bytecode.NewLoadImmediate8(bytecode.GPR2, 10))

	// while (i <= n) { accumulator += i; ++i; }
	/* [3] */ pkg.Emit(bytecode.NewCompareGreater(bytecode.GPR3, bytecode.GPR1, bytecode.GPR2))
	/* [4] */ pkg.Emit(bytecode.NewJumpIf(bytecode.GPR3, bytecode.NewJumpAddress(8)))
	/* [5] */ pkg.Emit(bytecode.NewAdd(bytecode.GPR0, bytecode.GPR0, bytecode.GPR1))
	/* [6] */ pkg.Emit(bytecode.NewIncrement(bytecode.GPR1))
	/* [7] */ pkg.Emit(bytecode.NewJump(bytecode.NewJumpAddress(3)))

	return pkg
}

// buildFibonacciLinear assembles the iterative Fibonacci program. Locals live
// on the operand stack; offsets address them from the top of the stack.
func buildFibonacciLinear() *bytecode.Package {
	pkg := bytecode.NewPackage()

	// u64 n = 15, a = 0, b = 1;
	// u64 i = 1;
	/* [ 0] */ pkg.Emit(bytecode.NewPushImmediate64(15)) // offset 24 (n)
	/* [ 1] */ pkg.Emit(bytecode.NewPushImmediate64(0)) // offset 16 (a)
	/* [ 2] */ pkg.Emit(bytecode.NewPushImmediate64(1)) // offset 8 (b)
	/* [ 3] */ pkg.Emit(bytecode.NewPushImmediate64(1)) // offset 0 (i)

	// while (i <= n) {
	/* [ 4] */ pkg.Emit(bytecode.NewLoadFromStack(bytecode.GPR0, 24)) // load n
	/* [ 5] */ pkg.Emit(bytecode.NewLoadFromStack(bytecode.GPR1, 0)) // load i
	/* [ 6] */ pkg.Emit(bytecode.NewCompareGreater(bytecode.GPR0, bytecode.GPR1, bytecode.GPR0))
	/* [ 7] */ pkg.Emit(bytecode.NewJumpIf(bytecode.GPR0, bytecode.NewJumpAddress(20)))

	// u64 temp = a;
	// The push shifts every older local one slot deeper:
	// temp = offset 0, i = 8, b = 16, a = 24, n = 32.
	/* [ 8] */ pkg.Emit(bytecode.NewLoadFromStack(bytecode.GPR0, 16)) // load a
	/* [ 9] */ pkg.Emit(bytecode.NewPushRegister(bytecode.GPR0)) // offset 0 (temp)

	// a = b;
	/* [10] */ pkg.Emit(bytecode.NewLoadFromStack(bytecode.GPR0, 16)) // load b
	/* [11] */ pkg.Emit(bytecode.NewStoreToStack(24, bytecode.GPR0)) // store in a

	// b = temp + b;
	/* [12] */ pkg.Emit(bytecode.NewLoadFromStack(bytecode.GPR1, 0)) // load temp
	/* [13] */ pkg.Emit(bytecode.NewAdd(bytecode.GPR0, bytecode.GPR1, bytecode.GPR0))
	/* [14] */ pkg.Emit(bytecode.NewStoreToStack(16, bytecode.GPR0)) // store in b

	// ++i; }
	/* [15] */ pkg.Emit(bytecode.NewPopRegister()) // pop temp
	/* [16] */ pkg.Emit(bytecode.NewLoadFromStack(bytecode.GPR0, 0)) // load i
	/* [17] */ pkg.Emit(bytecode.NewIncrement(bytecode.GPR0))
	/* [18] */ pkg.Emit(bytecode.NewStoreToStack(0, bytecode.GPR0)) // store in i
	/* [19] */ pkg.Emit(bytecode.NewJump(bytecode.NewJumpAddress(4)))

	// Load b into GPR0 as the program result, then unwind the locals.
	/* [20] */ pkg.Emit(bytecode.NewLoadFromStack(bytecode.GPR0, 8)) // load b
	/* [21] */ pkg.Emit(bytecode.NewPopRegister())
	/* [22] */ pkg.Emit(bytecode.NewPopRegister())
	/* [23] */ pkg.Emit(bytecode.NewPopRegister())
	/* [24] */ pkg.Emit(bytecode.NewPopRegister())

	return pkg
}

// buildFibonacciRecursive assembles a recursive Fibonacci. The callable at
// ip 0 reads its argument k at stack offset 0 and writes its result into the
// caller-reserved slot at offset 8. The entry point at ip 30 reserves the
// result slot, pushes k=11 and calls in.
func buildFibonacciRecursive() *bytecode.Package {
	pkg := bytecode.NewPackage()

	// u64 fib(u64 k) {
	/* [ 0] */ pkg.Emit(bytecode.NewLoadFromStack(bytecode.GPR0, 0)) // load k

	// if (k > 1) goto recurse;
	/* [ 1] */ pkg.Emit(bytecode.NewLoadImmediate8(bytecode.GPR1, 1))
	/* [ 2] */ pkg.Emit(bytecode.NewCompareGreater(bytecode.GPR1, bytecode.GPR0, bytecode.GPR1))
	/* [ 3] */ pkg.Emit(bytecode.NewJumpIf(bytecode.GPR1, bytecode.NewJumpAddress(6)))

	// return k;
	/* [ 4] */ pkg.Emit(bytecode.NewStoreToStack(8, bytecode.GPR0)) // store into result
	/* [ 5] */ pkg.Emit(bytecode.NewReturn())

	// u64 t1 = fib(k - 1);
	/* [ 6] */ pkg.Emit(bytecode.NewDecrement(bytecode.GPR0))
	// Save GPR0 across the recursive call.
	/* [ 7] */ pkg.Emit(bytecode.NewPushRegister(bytecode.GPR0))
	/* [ 8] */ pkg.Emit(bytecode.NewPush(8)) // result slot
	/* [ 9] */ pkg.Emit(bytecode.NewPushRegister(bytecode.GPR0)) // argument
	/* [10] */ pkg.Emit(bytecode.NewCall(bytecode.NewJumpAddress(0), 8))
	/* [11] */ pkg.Emit(bytecode.NewLoadFromStack(bytecode.GPR2, 0)) // t1
	/* [12] */ pkg.Emit(bytecode.NewPop(8)) // drop result slot
	// Restore GPR0.
	/* [13] */ pkg.Emit(bytecode.NewLoadFromStack(bytecode.GPR0, 0))
	/* [14] */ pkg.Emit(bytecode.NewPopRegister())

	// u64 t2 = fib(k - 2);
	/* [15] */ pkg.Emit(bytecode.NewDecrement(bytecode.GPR0))
	// Save GPR0 and GPR2 across the recursive call.
	/* [16] */ pkg.Emit(bytecode.NewPushRegister(bytecode.GPR0))
	/* [17] */ pkg.Emit(bytecode.NewPushRegister(bytecode.GPR2))
	/* [18] */ pkg.Emit(bytecode.NewPush(8)) // result slot
	/* [19] */ pkg.Emit(bytecode.NewPushRegister(bytecode.GPR0)) // argument
	/* [20] */ pkg.Emit(bytecode.NewCall(bytecode.NewJumpAddress(0), 8))
	/* [21] */ pkg.Emit(bytecode.NewLoadFromStack(bytecode.GPR3, 0)) // t2
	/* [22] */ pkg.Emit(bytecode.NewPop(8)) // drop result slot
	// Restore GPR2 and GPR0.
	/* [23] */ pkg.Emit(bytecode.NewLoadFromStack(bytecode.GPR2, 0))
	/* [24] */ pkg.Emit(bytecode.NewLoadFromStack(bytecode.GPR0, 8))
	/* [25] */ pkg.Emit(bytecode.NewPopRegister())
	/* [26] */ pkg.Emit(bytecode.NewPopRegister())

	// return t1 + t2; }
	/* [27] */ pkg.Emit(bytecode.NewAdd(bytecode.GPR0, bytecode.GPR2, bytecode.GPR3))
	/* [28] */ pkg.Emit(bytecode.NewStoreToStack(8, bytecode.GPR0)) // store into result
	/* [29] */ pkg.Emit(bytecode.NewReturn())

	// u64 result = fib(11);
	/* [30] */ pkg.Emit(bytecode.NewPush(8)) // result slot
	/* [31] */ pkg.Emit(bytecode.NewPushImmediate64(11)) // argument
	/* [32] */ pkg.Emit(bytecode.NewCall(bytecode.NewJumpAddress(0), 8))
	/* [33] */ pkg.Emit(bytecode.NewLoadFromStack(bytecode.GPR0, 0)) // load result
	/* [34] */ pkg.Emit(bytecode.NewPop(8)) // drop result slot

	return pkg
}
