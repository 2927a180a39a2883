package eyesont

import (
	"errors"
	"fmt"

	"github.com/alexgavs/eyeson-go/internal/models"
)

// Sentinels matched by ResultError.Is.
var (
	ErrAuthFailure    = errors.New("eyesont: authentication failed")
	ErrRejected       = errors.New("eyesont: request rejected")
	ErrInvalidRequest = errors.New("eyesont: invalid request")
	ErrMissingEntity  = errors.New("eyesont: missing entity")
	ErrFailed         = errors.New("eyesont: backend failure")
)

// TransportError means the envelope itself may be absent: the request could
// not be sent, timed out, got a non-2xx status or an undecodable body.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	// Envelope is set when a non-2xx body still decoded as {result, message}.
	Envelope *models.ResponseBase
	Err      error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode == 0:
		return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// ResultError carries a non-SUCCESS result discriminant.
type ResultError struct {
	Op      string
	Result  models.Result
	Message string
}

func (e *ResultError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Result)
	}
	return fmt.Sprintf("%s: %s - %s", e.Op, e.Result, e.Message)
}

func (e *ResultError) Is(target error) bool {
	switch target {
	case ErrAuthFailure:
		return e.Op == models.OpLogin && e.Result != models.ResultSuccess
	case ErrRejected:
		return e.Result == models.ResultRejected
	case ErrInvalidRequest:
		return e.Result == models.ResultInvalidReq
	case ErrMissingEntity:
		return e.Result == models.ResultMissingEntity
	case ErrFailed:
		return e.Result == models.ResultFailed
	}
	return false
}

func resultError(op string, base models.ResponseBase) error {
	if base.Result == models.ResultSuccess {
		return nil
	}
	return &ResultError{Op: op, Result: base.Result, Message: base.Message}
}
