package format

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated indicates the input ended before a complete structure.
	ErrTruncated = errors.New("truncated input")
	// ErrInvalidLayout indicates a record size too small for its fields.
	ErrInvalidLayout = errors.New("record size too small for layout")
)

// Stage names the structure being decoded when a FormatError occurred.
type Stage string

const (
	StageHeader Stage = "header"
	StageLayout Stage = "layout"
	StageRecord Stage = "record"
)

// FormatError reports an STE input that cannot be decoded.
type FormatError struct {
	Stage Stage
	// Index is the record index for StageRecord, -1 otherwise.
	Index int
	Err   error
}

func (e *FormatError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("ste %s %d: %v", e.Stage, e.Index, e.Err)
	}
	return fmt.Sprintf("ste %s: %v", e.Stage, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
