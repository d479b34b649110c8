package archive

import (
	"errors"
	"fmt"
)

// FormatErrorKind classifies a FormatError.
type FormatErrorKind int

const (
	BadMagic FormatErrorKind = iota + 1
	SizeUnderflow
	SizeOverflow
	OutOfRange
	Truncated
	Duplicate
)

func (k FormatErrorKind) String() string {
	switch k {
	case BadMagic:
		return "bad magic"
	case SizeUnderflow:
		return "size underflow"
	case SizeOverflow:
		return "size overflow"
	case OutOfRange:
		return "out of range"
	case Truncated:
		return "truncated"
	case Duplicate:
		return "duplicate"
	}
	return fmt.Sprintf("FormatErrorKind(%d)", int(k))
}

// FormatError reports a malformed archive. It is always fatal: it means
// either a corrupted file or a game version whose layout drifted.
type FormatError struct {
	Kind   FormatErrorKind
	Offset int64
	Msg    string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s at offset 0x%08x: %s", e.Kind, e.Offset, e.Msg)
}

func formatErrorf(kind FormatErrorKind, offset int64, format string, args ...interface{}) *FormatError {
	return &FormatError{Kind: kind, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

// IsFormatError reports whether err wraps a *FormatError, optionally of the
// given kinds.
func IsFormatError(err error, kinds ...FormatErrorKind) bool {
	var fe *FormatError
	if !errors.As(err, &fe) {
		return false
	}
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if fe.Kind == k {
			return true
		}
	}
	return false
}

// NewDuplicateError is used by consumers that detect the same entity placed
// twice, which can only come from a broken index.
func NewDuplicateError(offset int64, format string, args ...interface{}) error {
	return formatErrorf(Duplicate, offset, format, args...)
}
