package domain

import (
	"context"
	"encoding/json"
	"time"
)

// UpstreamForwarder is the single request-forwarding helper every proxy route
// goes through. Non-2xx upstream answers are not errors; they come back as a
// ForwardResult for verbatim relay. A nil result with an error means the
// upstream was unreachable or the request could not be built.
type UpstreamForwarder interface {
	Post(ctx context.Context, path string, body map[string]any) (*ForwardResult, error)
	Get(ctx context.Context, path, bearer string) (*ForwardResult, error)
}

// SessionRepository persists sessions as four co-owned keys (access token,
// refresh token, user payload, metadata) that are always written and deleted
// together.
type SessionRepository interface {
	Save(ctx context.Context, session *Session) error
	Find(ctx context.Context, sessionID string) (*Session, error)
	Destroy(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
}

// SessionService is the single façade handlers use for authentication
// actions. Expected failures are values; VerifyOTP and Logout never
// propagate errors.
type SessionService interface {
	// SendOTP runs the existence check first when IsLogin is set and
	// short-circuits with Exists=false without touching the send-otp
	// endpoint. A nil result means the relay (or a 503 when relay is nil)
	// should be returned as-is.
	SendOTP(ctx context.Context, in OTPSendInput) (*SendOTPResult, *ForwardResult)
	// VerifyOTP establishes a gateway session on success. Any upstream or
	// storage error is logged and downgraded to ok=false.
	VerifyOTP(ctx context.Context, in OTPVerifyInput) (*Session, *ForwardResult, bool)
	// ResendOTP forwards a resend request unless the cooldown is active, in
	// which case it returns a ThrottledError and performs no upstream call.
	ResendOTP(ctx context.Context, phone string) (*ForwardResult, error)
	// CheckUserExists asks the upstream whether the phone is registered.
	CheckUserExists(ctx context.Context, phone string) (bool, *ForwardResult, error)
	// Refresh exchanges the refresh token for a new access token. It no-ops
	// (false) when neither the caller nor the stored session holds one.
	Refresh(ctx context.Context, sessionID, refreshToken string) (*ForwardResult, bool)
	// Logout destroys the stored session before attempting the upstream
	// call; it always succeeds from the caller's perspective.
	Logout(ctx context.Context, sessionID string)
	// IsAuthenticated is true iff a non-empty, unexpired access token exists
	// in the store.
	IsAuthenticated(ctx context.Context, sessionID string) bool
}

// OTPThrottle enforces the server-side resend cooldown per phone.
type OTPThrottle interface {
	// Arm starts (or restarts) the full cooldown window.
	Arm(ctx context.Context, phone string) error
	// Remaining returns the seconds left in the window, 0 when resend is
	// allowed.
	Remaining(ctx context.Context, phone string) (int64, error)
}

// TokenService inspects upstream-issued JWTs.
type TokenService interface {
	Validate(token string) (*TokenClaims, error)
	// PeekExpiry reads the exp claim without verifying the signature; used
	// to decide proactive refresh.
	PeekExpiry(token string) (time.Time, error)
	ExpiresWithin(token string, window time.Duration) bool
}

// ProfileCache holds upstream profile payloads for a short TTL so repeated
// /users/me reads don't round-trip on every render.
type ProfileCache interface {
	Get(ctx context.Context, bearer string) (json.RawMessage, bool)
	Set(ctx context.Context, bearer string, payload json.RawMessage) error
	Invalidate(ctx context.Context, bearer string) error
}

// PolicyService defines authorization policy operations for the admin
// back-office.
type PolicyService interface {
	AddPolicy(role, resource, action string) error
	RemovePolicy(role, resource, action string) error
	CheckPermission(role, resource, action string) (bool, error)
	GetPolicies() [][]string
}

// CasbinEnforcer is the slice of the casbin enforcer the gateway needs.
type CasbinEnforcer interface {
	AddPolicy(params ...interface{}) (bool, error)
	RemovePolicy(params ...interface{}) (bool, error)
	Enforce(rvals ...interface{}) (bool, error)
	GetPolicy() ([][]string, error)
	SavePolicy() error
}
