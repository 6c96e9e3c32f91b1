package file

import "errors"

var (
	// ErrNotFound covers missing, foreign-tenant and expired files alike.
	ErrNotFound = errors.New("file not found")
	// ErrStorageUnavailable signals that the metadata index or payload storage failed.
	// The operation left no partial state and may be retried.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrInvalidInput signals a precondition the caller should have enforced.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLinksUnsupported is returned when the payload backend cannot sign download links.
	ErrLinksUnsupported = errors.New("download links not supported")

	errBlobNotFound = errors.New("blob not found")
)
