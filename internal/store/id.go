package store

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID returns a random catalog id for sources, flows and delete requests.
func NewID() string {
	return uuid.NewString()
}

// ValidateID checks that id is a canonical UUID.
func ValidateID(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", id, err)
	}
	if parsed.String() != id {
		return fmt.Errorf("invalid id %q: must be lowercase hyphenated uuid", id)
	}
	return nil
}
