// Package source translates byte offsets in UTF-8 source text into
// line/column locations and regions for diagnostics.
package source

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrOffsetOutOfRange indicates a byte offset beyond the source buffer.
	ErrOffsetOutOfRange = errors.New("source: byte offset out of range")
	// ErrInvalidEncoding indicates the source is not valid UTF-8.
	ErrInvalidEncoding = errors.New("source: invalid UTF-8 encoding")
	// ErrOffsetInsideRune indicates an offset pointing into the middle of a
	// multi-byte rune.
	ErrOffsetInsideRune = errors.New("source: byte offset inside a multi-byte sequence")
)

// Location identifies a position in a source file. Line and Column are
// zero-based and count runes, not bytes; Offset is the byte offset the
// location was derived from.
type Location struct {
	Line   uint32
	Column uint32
	Offset uint64
}

// FromByteOffset computes the location of the given byte offset in src by
// walking the preceding runes. An offset equal to len(src) addresses the
// end of the buffer.
func FromByteOffset(src string, offset uint64) (Location, error) {
	if offset > uint64(len(src)) {
		return Location{}, fmt.Errorf("%w: offset %d, source is %d bytes",
			ErrOffsetOutOfRange, offset, len(src))
	}

	location := Location{Offset: offset}
	for position := uint64(0); position < offset; {
		r, size := utf8.DecodeRuneInString(src[position:])
		if r == utf8.RuneError && size <= 1 {
			return Location{}, fmt.Errorf("%w: at byte %d", ErrInvalidEncoding, position)
		}
		if position+uint64(size) > offset {
			return Location{}, fmt.Errorf("%w: offset %d", ErrOffsetInsideRune, offset)
		}
		position += uint64(size)
		if r == '\n' {
			location.Line++
			location.Column = 0
		} else {
			location.Column++
		}
	}
	return location, nil
}

// UserString renders the location for diagnostics as "file:line:column",
// one-based for display.
func (l Location) UserString(filepath string) string {
	return fmt.Sprintf("%s:%d:%d", filepath, l.Line+1, l.Column+1)
}

// DebugString renders the location with its byte offset attached.
func (l Location) DebugString(filepath string) string {
	return fmt.Sprintf("%s:%d:%d(%d)", filepath, l.Line+1, l.Column+1, l.Offset)
}

// Region is a span of source text between two locations in one file.
type Region struct {
	Filepath string
	Start    Location
	End      Location
	Text     string
}

// RegionFromByteOffsets resolves both offsets and captures the text between
// them.
func RegionFromByteOffsets(filepath, src string, startOffset, endOffset uint64) (Region, error) {
	if endOffset < startOffset {
		return Region{}, fmt.Errorf("source: region end %d before start %d", endOffset, startOffset)
	}
	start, err := FromByteOffset(src, startOffset)
	if err != nil {
		return Region{}, err
	}
	end, err := FromByteOffset(src, endOffset)
	if err != nil {
		return Region{}, err
	}
	return Region{
		Filepath: filepath,
		Start:    start,
		End:      end,
		Text:     src[startOffset:endOffset],
	}, nil
}

// String renders the region's start for diagnostics.
func (r Region) String() string {
	return r.Start.UserString(r.Filepath)
}
