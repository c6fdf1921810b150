package task

import "errors"

var (
	ErrNilTask       = errors.New("nil task")
	ErrClaimConflict = errors.New("conflicting operation claims")
	ErrEmptyGroup    = errors.New("empty any group")
	ErrMissingBranch = errors.New("missing branch")
	ErrMissingInput  = errors.New("missing input")
	ErrSharedNode    = errors.New("task appears more than once in tree")
)

// BuildError reports a tree-shape problem found by Validate.
type BuildError struct {
	Path string
	Err  error
}

func (e *BuildError) Error() string { return e.Path + ": " + e.Err.Error() }
func (e *BuildError) Unwrap() error { return e.Err }
