package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound signals a message, attachment, or account that is absent
	// or not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized signals an ownership mismatch on an existing record.
	ErrUnauthorized = errors.New("not authorized")

	// ErrBadRequest signals invalid caller input (missing file, empty
	// recipients, malformed id).
	ErrBadRequest = errors.New("bad request")

	// ErrUnavailable signals an operation the selected provider cannot
	// perform.
	ErrUnavailable = errors.New("operation unavailable")

	ErrNoValidRecipients = errors.Wrap(ErrBadRequest, "no valid recipients")
	ErrEmptyAttachment   = errors.Wrap(ErrBadRequest, "attachment content is empty")
	ErrInvalidEmailID    = errors.Wrap(ErrBadRequest, "invalid email id")
)

// UpstreamError wraps a remote mailbox API failure, carrying the upstream
// HTTP status when it could be determined (0 otherwise).
type UpstreamError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream error in %s (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream error in %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func NewUpstreamError(op string, statusCode int, err error) *UpstreamError {
	return &UpstreamError{Op: op, StatusCode: statusCode, Err: err}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

func IsBadRequest(err error) bool {
	return errors.Is(err, ErrBadRequest)
}

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

func AsUpstream(err error) (*UpstreamError, bool) {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream, true
	}
	return nil, false
}
