package docid

import (
	"github.com/google/uuid"
)

// UUID is a globally unique page identifier.
//
// A UUID is assigned to every page when the hierarchy is built and is the
// only identifier used to reference the page after that point; archive-local
// identifiers never leak past the hierarchy builder.
type UUID struct {
	value uuid.UUID
}

// NewUUID generates a new random UUID (v4).
func NewUUID() UUID {
	return UUID{value: uuid.New()}
}

// String returns the canonical lowercase, hyphenated form.
func (u UUID) String() string {
	return u.value.String()
}
