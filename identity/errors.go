package identity

import "fmt"

// ErrorCode classifies decode failures.
type ErrorCode string

const (
	ErrCodeMalformed    ErrorCode = "malformed_token"
	ErrCodeMissingClaim ErrorCode = "missing_claim"
)

// Error is returned by Decode.
type Error struct {
	Code  ErrorCode
	Claim string // set for ErrCodeMissingClaim
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Code == ErrCodeMissingClaim:
		return fmt.Sprintf("access token is missing claim %q", e.Claim)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}
