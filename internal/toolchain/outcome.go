package toolchain

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
)

// Outcome classifies the result of invoking an external tool
// solely by whether it could be started and its exit status.
type Outcome int

const (
	OK Outcome = iota
	ToolReportedError
	ToolNotFound
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case ToolReportedError:
		return "tool-reported-error"
	case ToolNotFound:
		return "tool-not-found"
	}

	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Error is returned from every Adapter invocation that did not succeed.
type Error struct {
	Tool    string
	Outcome Outcome
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Tool + ": " + e.Outcome.String()
	}

	return e.Tool + ": " + e.Outcome.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap classifies err and attributes it to tool.
// It returns nil if err is nil.
func Wrap(tool string, err error) error {
	if err == nil {
		return nil
	}

	return &Error{
		Tool:    tool,
		Outcome: Classify(err),
		Err:     err,
	}
}

// NotFound returns an error classified as ToolNotFound.
func NotFound(tool string, err error) error {
	return &Error{Tool: tool, Outcome: ToolNotFound, Err: err}
}

// Reported returns an error classified as ToolReportedError.
func Reported(tool string, err error) error {
	return &Error{Tool: tool, Outcome: ToolReportedError, Err: err}
}

// Classify maps err to exactly one Outcome. An *Error keeps the Outcome it
// was created with. A process that ran and exited non-zero is a
// ToolReportedError; a process that could not be started is ToolNotFound.
func Classify(err error) Outcome {
	if err == nil {
		return OK
	}

	terr := &Error{}
	if errors.As(err, &terr) {
		return terr.Outcome
	}

	exitErr := &exec.ExitError{}
	if errors.As(err, &exitErr) {
		return ToolReportedError
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return ToolNotFound
	}

	return ToolReportedError
}
