package service

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrUnauthorized indicates the caller is unauthenticated or lacks the required membership or role.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates a business rule forbids the requested change.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidInput indicates a request that is malformed beyond struct validation.
	ErrInvalidInput = errors.New("invalid input")
)

// normalizeRepoError maps storage-level misses onto ErrNotFound.
func normalizeRepoError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
