package pinboard

import (
	"errors"
	"fmt"
	"strings"
)

// Error types
var (
	// ErrNotFound indicates the store has no document with the requested id
	ErrNotFound = errors.New("document not found")

	// ErrValidationFailed indicates required pin fields are missing
	ErrValidationFailed = errors.New("required fields missing")

	// ErrInvalidAssetType indicates a content type outside the upload allow-list
	ErrInvalidAssetType = errors.New("invalid asset type")

	// ErrAssetTooLarge indicates an upload exceeded the gateway size limit
	ErrAssetTooLarge = errors.New("asset exceeds size limit")

	// ErrUploadFailed indicates the asset gateway rejected or failed an upload
	ErrUploadFailed = errors.New("upload failed")

	// ErrCreateFailed indicates the store failed to persist a new pin
	ErrCreateFailed = errors.New("create failed")

	// ErrCreateInFlight indicates a create is already pending on the creator
	ErrCreateInFlight = errors.New("create already in flight")

	// ErrAppendFailed indicates a comment could not be appended
	ErrAppendFailed = errors.New("append failed")

	// ErrSaveFailed indicates a pin could not be saved to a user's collection
	ErrSaveFailed = errors.New("save failed")

	// ErrUnauthenticated indicates there is no current session user
	ErrUnauthenticated = errors.New("no authenticated session")

	// ErrInvalidMode indicates an unknown collection mode
	ErrInvalidMode = errors.New("invalid collection mode")

	// ErrInvalidQuery indicates a query or mutation the stores cannot express
	ErrInvalidQuery = errors.New("invalid query")
)

// ValidationError lists the fields that were missing from a submission.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(e.Missing, ", "))
}

// Is reports ErrValidationFailed as the error kind.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// WriteError represents a failed store write
type WriteError struct {
	Op  string
	ID  string
	Err error
}

func (e *WriteError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s failed for document %s: %v", e.Op, e.ID, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// UploadError represents a failed asset upload
type UploadError struct {
	FileName    string
	ContentType string
	Err         error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %s (%s) failed: %v", e.FileName, e.ContentType, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
