package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	// KindCredential means no API key was supplied. Run-level.
	KindCredential ErrorKind = "credential"
	// KindInput means the input file is missing, unreadable or empty. Run-level.
	KindInput ErrorKind = "input"
	// KindSchema means a data row is too short for the query slice. Row-level.
	KindSchema ErrorKind = "schema"
	// KindLookup means the match service call failed. Row-level.
	KindLookup ErrorKind = "lookup"
	// KindOutput means the results file could not be written. Run-level.
	KindOutput ErrorKind = "output"
)

// ErrDriverUsed is returned when Run is called on a driver that already ran.
var ErrDriverUsed = errors.New("pipeline: driver already used, create a new one")

// Error is a classified pipeline failure.
type Error struct {
	Kind ErrorKind
	// Path is the input file the run was started with, when known.
	Path string
	// Row is the 1-based data row index for row-level errors, 0 otherwise.
	Row int
	Err error
}

func (e *Error) Error() string {
	var msg string
	switch {
	case e.Row > 0:
		msg = fmt.Sprintf("%s error at row %d", e.Kind, e.Row)
	case e.Path != "":
		msg = fmt.Sprintf("%s error for %s", e.Kind, e.Path)
	default:
		msg = fmt.Sprintf("%s error", e.Kind)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err (or any error in its chain) is a pipeline
// Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
