package vm

import "fmt"

// EnvironmentError is returned when the storage root cannot be determined.
type EnvironmentError struct {
	Err error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("cannot determine qvm storage root: %v", e.Err)
}

func (e *EnvironmentError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when a named VM (or its descriptor) does not exist.
type NotFoundError struct {
	Name        string
	StorageRoot string
	// Path is set when the VM directory exists but its descriptor does not.
	Path string
}

func (e *NotFoundError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("VM descriptor %s not found", e.Path)
	}
	return fmt.Sprintf("VM '%s' not found in %s", e.Name, e.StorageRoot)
}

// VMRunningError blocks destructive operations against a live VM.
type VMRunningError struct {
	Name string
	PID  int
}

func (e *VMRunningError) Error() string {
	state := "running"
	if e.PID > 0 {
		state = fmt.Sprintf("running (pid %d)", e.PID)
	}
	return fmt.Sprintf("Cannot delete VM '%s': VM is currently %s. Stop it first with 'qvm stop %s'", e.Name, state, e.Name)
}

// ParseError is returned for a structurally invalid descriptor.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid VM descriptor %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IOError wraps a filesystem failure with the operation and path involved.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
