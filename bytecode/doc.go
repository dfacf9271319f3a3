// Package bytecode defines the Vesper instruction set and its in-memory
// package representation.
//
// This package contains:
//   - Register and jump-address value types
//   - The opcode enumeration and its metadata table
//   - Instruction, a tagged variant with one constructor per operation
//   - Package, the append-only instruction sequence the interpreter runs
//   - A disassembler producing the stable textual listing
package bytecode
