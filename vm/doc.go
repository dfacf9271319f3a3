// Package vm implements the Vesper virtual machine.
//
// This package contains:
//   - The fixed register file and its owning VM
//   - The byte-addressable operand stack with typed access
//   - The call stack of return-address frames
//   - The interpreter: fetch/dispatch loop with deferred jumps
//   - Trap, the structured fatal-error value execution surfaces
package vm
