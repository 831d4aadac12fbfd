package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound      = errors.New("campaign not found")
	ErrAlreadyExists = errors.New("campaign already exists")
	ErrInvalid       = errors.New("invalid campaign")
	ErrInvalidStatus = errors.New("unknown status")
)
