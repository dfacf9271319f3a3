package bytecode

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Disassembler: textual listing of a package
// ---------------------------------------------------------------------------

// Disassembler renders the instructions of a package as numbered text lines.
type Disassembler struct {
	pkg *Package
}

// NewDisassembler creates a disassembler over pkg.
func NewDisassembler(pkg *Package) *Disassembler {
	return &Disassembler{pkg: pkg}
}

// InstructionsAsString returns one "[<index>] <text>" line per instruction,
// each terminated by a newline.
func (d *Disassembler) InstructionsAsString() string {
	var b strings.Builder
	for ip := uint64(0); d.pkg.IsValid(ip); ip++ {
		fmt.Fprintf(&b, "[%d] %s\n", ip, d.pkg.Fetch(ip))
	}
	return b.String()
}
