package export

import (
	"errors"
	"fmt"
)

// ErrMalformedArchive is matched by every MalformedArchiveError.
var ErrMalformedArchive = errors.New("malformed archive")

// MalformedArchiveError reports a manifest that is missing, unparsable or
// contains an object that violates its declared shape.
type MalformedArchiveError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MalformedArchiveError) Error() string {
	msg := fmt.Sprintf("malformed archive %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedArchiveError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrMalformedArchive) hold for every
// MalformedArchiveError.
func (e *MalformedArchiveError) Is(target error) bool {
	return target == ErrMalformedArchive
}

// ShapeError describes an object that does not match the shape declared for
// its class.
type ShapeError struct {
	Class  string
	ID     string
	Reason string
}

func (e *ShapeError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s object: %s", e.Class, e.Reason)
	}
	return fmt.Sprintf("%s object %s: %s", e.Class, e.ID, e.Reason)
}
