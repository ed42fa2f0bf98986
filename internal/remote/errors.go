package remote

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every backend and by the store slices.
var (
	ErrAuth             = errors.New("auth error")
	ErrNotAuthenticated = errors.New("user not authenticated")
	ErrNotFound         = errors.New("not found")
	ErrDuplicate        = errors.New("already exists")
	ErrValidation       = errors.New("validation failed")
	ErrRemote           = errors.New("remote error")
)

// known reports whether err already belongs to the taxonomy.
func known(err error) bool {
	for _, target := range []error{ErrAuth, ErrNotAuthenticated, ErrNotFound, ErrDuplicate, ErrValidation, ErrRemote} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// classify wraps driver failures that are not part of the taxonomy as ErrRemote.
func classify(err error) error {
	if err == nil || known(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRemote, err)
}
