// Package image serializes bytecode packages to a stable on-disk form.
//
// The format is canonical CBOR wrapping a magic/version envelope. Decoding
// validates every instruction, so a damaged or hostile file can never produce
// an out-of-enum opcode or register inside the VM.
package image

import (
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/tomaz-v/vesper/bytecode"
)

// Magic identifies a Vesper package image.
var Magic = [4]byte{'V', 'S', 'P', 'I'}

// Version of the image format.
// v1: initial format, decoded-instruction records keyed by opcode name
const Version uint32 = 1

var (
	// ErrBadMagic indicates the data is not a Vesper package image.
	ErrBadMagic = errors.New("image: bad magic")
	// ErrUnsupportedVersion indicates an image from an unknown format version.
	ErrUnsupportedVersion = errors.New("image: unsupported version")
)

// cborEncMode is the canonical encoding mode, so equal packages always
// produce byte-identical images.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// fileImage is the serialized envelope.
type fileImage struct {
	Magic        [4]byte
	Version      uint32
	Instructions []fileInstruction
}

// fileInstruction is one serialized instruction. Opcodes travel by name so an
// image survives renumbering of the opcode enumeration.
type fileInstruction struct {
	Op     string
	Dst    uint8  `cbor:",omitempty"`
	Src    uint8  `cbor:",omitempty"`
	Src2   uint8  `cbor:",omitempty"`
	Offset uint64 `cbor:",omitempty"`
	Value  uint64 `cbor:",omitempty"`
	Target uint64 `cbor:",omitempty"`
}

// Encode serializes pkg into image bytes.
func Encode(pkg *bytecode.Package) ([]byte, error) {
	img := fileImage{
		Magic:        Magic,
		Version:      Version,
		Instructions: make([]fileInstruction, 0, pkg.Count()),
	}
	for ip := uint64(0); pkg.IsValid(ip); ip++ {
		inst := pkg.Fetch(ip)
		img.Instructions = append(img.Instructions, fileInstruction{
			Op:     inst.Op.Name(),
			Dst:    uint8(inst.Dst),
			Src:    uint8(inst.Src),
			Src2:   uint8(inst.Src2),
			Offset: inst.Offset,
			Value:  inst.Value,
			Target: inst.Target.Value,
		})
	}
	data, err := cborEncMode.Marshal(&img)
	if err != nil {
		return nil, fmt.Errorf("image: marshal package: %w", err)
	}
	return data, nil
}

// Decode deserializes image bytes into a package, validating every
// instruction record.
func Decode(data []byte) (*bytecode.Package, error) {
	var img fileImage
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("image: unmarshal package: %w", err)
	}
	if img.Magic != Magic {
		return nil, ErrBadMagic
	}
	if img.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, img.Version)
	}

	pkg := bytecode.NewPackage()
	for index, record := range img.Instructions {
		inst, err := decodeInstruction(record)
		if err != nil {
			return nil, fmt.Errorf("image: instruction %d: %w", index, err)
		}
		pkg.Emit(inst)
	}
	return pkg, nil
}

// decodeInstruction rebuilds one instruction, rejecting records whose
// operands are illegal for their opcode.
func decodeInstruction(record fileInstruction) (bytecode.Instruction, error) {
	op := bytecode.OpcodeFromName(record.Op)
	if !op.IsValid() {
		return bytecode.Instruction{}, fmt.Errorf("unknown opcode %q", record.Op)
	}

	dst := bytecode.Register(record.Dst)
	src := bytecode.Register(record.Src)
	src2 := bytecode.Register(record.Src2)
	target := bytecode.NewJumpAddress(record.Target)

	if width := op.Info().ImmediateBytes; width > 0 && width < 8 {
		if record.Value >= 1<<(8*width) {
			return bytecode.Instruction{}, fmt.Errorf(
				"immediate %d does not fit in %d bytes", record.Value, width)
		}
	}

	switch op {
	case bytecode.OpLoadImmediate8:
		return requireRegisters(bytecode.NewLoadImmediate8(dst, uint8(record.Value)), dst)
	case bytecode.OpPushImmediate8:
		return bytecode.NewPushImmediate8(uint8(record.Value)), nil
	case bytecode.OpPushImmediate16:
		return bytecode.NewPushImmediate16(uint16(record.Value)), nil
	case bytecode.OpPushImmediate32:
		return bytecode.NewPushImmediate32(uint32(record.Value)), nil
	case bytecode.OpPushImmediate64:
		return bytecode.NewPushImmediate64(record.Value), nil

	case bytecode.OpPushRegister:
		return requireRegisters(bytecode.NewPushRegister(src), src)
	case bytecode.OpPopRegister:
		return bytecode.NewPopRegister(), nil
	case bytecode.OpPush:
		return bytecode.NewPush(record.Value), nil
	case bytecode.OpPop:
		return bytecode.NewPop(record.Value), nil

	case bytecode.OpLoadFromStack:
		return requireRegisters(bytecode.NewLoadFromStack(dst, record.Offset), dst)
	case bytecode.OpLoad8FromStack:
		return requireRegisters(bytecode.NewLoad8FromStack(dst, record.Offset), dst)
	case bytecode.OpLoad16FromStack:
		return requireRegisters(bytecode.NewLoad16FromStack(dst, record.Offset), dst)
	case bytecode.OpLoad32FromStack:
		return requireRegisters(bytecode.NewLoad32FromStack(dst, record.Offset), dst)
	case bytecode.OpStoreToStack:
		return requireRegisters(bytecode.NewStoreToStack(record.Offset, src), src)
	case bytecode.OpStore8ToStack:
		return requireRegisters(bytecode.NewStore8ToStack(record.Offset, src), src)
	case bytecode.OpStore16ToStack:
		return requireRegisters(bytecode.NewStore16ToStack(record.Offset, src), src)
	case bytecode.OpStore32ToStack:
		return requireRegisters(bytecode.NewStore32ToStack(record.Offset, src), src)

	case bytecode.OpAdd:
		return requireRegisters(bytecode.NewAdd(dst, src, src2), dst, src, src2)
	case bytecode.OpSub:
		return requireRegisters(bytecode.NewSub(dst, src, src2), dst, src, src2)
	case bytecode.OpIncrement:
		return requireRegisters(bytecode.NewIncrement(dst), dst)
	case bytecode.OpDecrement:
		return requireRegisters(bytecode.NewDecrement(dst), dst)
	case bytecode.OpCompareGreater:
		return requireRegisters(bytecode.NewCompareGreater(dst, src, src2), dst, src, src2)

	case bytecode.OpJump:
		return requireTarget(bytecode.NewJump(target), target)
	case bytecode.OpJumpIf:
		inst, err := requireTarget(bytecode.NewJumpIf(src, target), target)
		if err != nil {
			return inst, err
		}
		return requireRegisters(inst, src)
	case bytecode.OpCall:
		return requireTarget(bytecode.NewCall(target, record.Value), target)
	case bytecode.OpReturn:
		return bytecode.NewReturn(), nil
	}
	return bytecode.Instruction{}, fmt.Errorf("unhandled opcode %q", record.Op)
}

func requireRegisters(inst bytecode.Instruction, registers ...bytecode.Register) (bytecode.Instruction, error) {
	for _, r := range registers {
		if !r.IsValid() {
			return bytecode.Instruction{}, fmt.Errorf("register index %d outside the register file", uint8(r))
		}
	}
	return inst, nil
}

func requireTarget(inst bytecode.Instruction, target bytecode.JumpAddress) (bytecode.Instruction, error) {
	if !target.IsValid() {
		return bytecode.Instruction{}, errors.New("control-flow instruction with unassigned target")
	}
	return inst, nil
}

// WriteFile encodes pkg and writes it to path.
func WriteFile(path string, pkg *bytecode.Package) error {
	data, err := Encode(pkg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("image: write %s: %w", path, err)
	}
	return nil
}

// ReadFile reads and decodes the package image at path.
func ReadFile(path string) (*bytecode.Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("image: read %s: %w", path, err)
	}
	return Decode(data)
}
