package command

import (
	"errors"
	"fmt"
)

// Decode errors, matched with errors.Is against a *DecodeError.
var (
	ErrShortRecord   = errors.New("command: short record")
	ErrUnknownTag    = errors.New("command: unsupported command tag")
	ErrOutOfBounds   = errors.New("command: coordinate out of bounds")
	ErrTrailingBytes = errors.New("command: trailing bytes after record")
	ErrMalformed     = errors.New("command: malformed payload")
)

// DecodeError rejects a single draw event.
type DecodeError struct {
	// Offset of the offending record in the payload.
	Offset int

	// Tag of the offending record.
	Tag byte

	// Err is one of the Err* sentinels, possibly wrapped with detail.
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s record at offset %d: %v", Op(e.Tag), e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
