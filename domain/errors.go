package domain

import (
	"errors"
	"fmt"
)

// Validation errors
var (
	ErrMissingField = errors.New("required field missing")
	ErrOTPTooShort  = errors.New("otp code must be 6 digits")
)

// Upstream errors
var (
	ErrUpstreamUnavailable = errors.New("failed to connect to authentication service")
	ErrUpstreamRejected    = errors.New("upstream rejected request")
)

// OTP errors
var (
	ErrChallengeNotFound = errors.New("otp challenge not found")
	ErrResendThrottled   = errors.New("otp resend throttled")
	ErrVerifyInFlight    = errors.New("verification already in progress, please wait")
)

// Token errors
var (
	ErrTokenInvalid   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenMalformed = errors.New("malformed token")
)

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session has expired")
	ErrNotHydrated     = errors.New("session store not hydrated")
)

// Authorization errors
var (
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrInsufficientRole = errors.New("insufficient role permissions")
)

// MissingFieldError names the mandatory request field that was absent.
// Unwraps to ErrMissingField.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// ThrottledError reports how long the caller must wait before the next
// resend. Unwraps to ErrResendThrottled.
type ThrottledError struct {
	Wait int64 // seconds
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("please wait %d seconds before requesting a new OTP", e.Wait)
}

func (e *ThrottledError) Unwrap() error { return ErrResendThrottled }

// OTPLengthError rejects a code of the wrong length before any upstream
// call. Unwraps to ErrOTPTooShort.
type OTPLengthError struct {
	Length int
}

func (e *OTPLengthError) Error() string {
	return fmt.Sprintf("otp code must be %d digits", e.Length)
}

func (e *OTPLengthError) Unwrap() error { return ErrOTPTooShort }
