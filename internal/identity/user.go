package identity

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidUserID is returned for ids that were not produced by UserID.
var ErrInvalidUserID = errors.New("invalid user id")

// ValidateUserID enforces the derived id format before it is used as a storage key.
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id required", ErrInvalidUserID)
	}
	parsed, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUserID, err)
	}
	if parsed.Version() != 5 {
		return fmt.Errorf("%w: unexpected version %d", ErrInvalidUserID, parsed.Version())
	}
	return nil
}
