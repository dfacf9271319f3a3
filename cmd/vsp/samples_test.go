package main

import (
	"testing"

	"github.com/tomaz-v/vesper/bytecode"
	"github.com/tomaz-v/vesper/vm"
)

func runSample(t *testing.T, name string) uint64 {
	t.Helper()
	sample, err := lookupSample(name)
	if err != nil {
		t.Fatal(err)
	}
	pkg := sample.Build()

	machine := vm.NewVM()
	interp := vm.NewInterpreter(machine, pkg)
	interp.SetEntryPoint(sample.Entry)
	if err := interp.Execute(); err != nil {
		t.Fatalf("Execute(%s): %v", name, err)
	}

	value, err := machine.Register(sample.Result)
	if err != nil {
		t.Fatal(err)
	}
	return value
}

func TestSampleResults(t *testing.T) {
	tests := []struct {
		name string
		want uint64
	}{
		{"gauss", 55},
		{"fib-linear", 987},
		{"fib-recursive", 89},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := runSample(t, test.name); got != test.want {
				t.Errorf("%s = %d, want %d", test.name, got, test.want)
			}
		})
	}
}

func TestLookupSampleUnknown(t *testing.T) {
	if _, err := lookupSample("quine"); err == nil {
		t.Error("unknown sample name resolved")
	}
}

func TestSampleNamesStable(t *testing.T) {
	names := sampleNames()
	if len(names) != len(samples) {
		t.Fatalf("len(names) = %d, want %d", len(names), len(samples))
	}
	for index := 1; index < len(names); index++ {
		if names[index-1] >= names[index] {
			t.Errorf("names not sorted: %v", names)
		}
	}
}

func TestGaussListing(t *testing.T) {
	sample, err := lookupSample("gauss")
	if err != nil {
		t.Fatal(err)
	}
	want := "[0] LoadImmediate8 dst:$GPR0, value:0\n" +
		"[1] LoadImmediate8 dst:$GPR1, value:1\n" +
		"[2] LoadImmediate8 dst:$GPR2, value:10\n" +
		"[3] CompareGreater dst:$GPR3, lhs:$GPR1, rhs:$GPR2\n" +
		"[4] JumpIf condition:$GPR3, address:@8\n" +
		"[5] Add dst:$GPR0, lhs:$GPR0, rhs:$GPR1\n" +
		"[6] Increment dst:$GPR1\n" +
		"[7] Jump address:@3\n"
	got := bytecode.NewDisassembler(sample.Build()).InstructionsAsString()
	if got != want {
		t.Errorf("listing mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}
