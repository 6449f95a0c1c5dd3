package domain

import (
	"encoding/json"
	"time"
)

// User mirrors the profile payload the upstream backend returns. The gateway
// treats it as read-only and caches it alongside the session.
type User struct {
	ID           string  `json:"id"`
	Phone        string  `json:"phone"`
	Name         string  `json:"name,omitempty"`
	Role         string  `json:"role"`
	Balance      float64 `json:"balance"`
	ReferralCode string  `json:"referralCode,omitempty"`
}

// Session is the access/refresh token pair plus user identity held for a
// browser client. Created on successful OTP verification, mutated on refresh,
// destroyed on logout.
type Session struct {
	ID           string    `json:"id"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	User         *User     `json:"user,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Authenticated reports whether the session carries a usable access token.
func (s *Session) Authenticated() bool {
	return s != nil && s.AccessToken != "" && time.Now().Before(s.ExpiresAt)
}

// OTPChallengeState tracks where a challenge is in its lifecycle.
type OTPChallengeState string

const (
	ChallengeEntering  OTPChallengeState = "entering"
	ChallengeVerifying OTPChallengeState = "verifying"
	ChallengeSucceeded OTPChallengeState = "succeeded"
	ChallengeFailed    OTPChallengeState = "failed"
)

// OTPChallenge is the ephemeral per-phone verification state. At most one
// challenge is active per phone.
type OTPChallenge struct {
	Phone          string
	State          OTPChallengeState
	Attempts       int
	ResendDeadline time.Time
	LastError      string
	CreatedAt      time.Time
}

// OTPSendInput carries the fields of a send-OTP request. IsLogin switches on
// the existence check that guards the login path.
type OTPSendInput struct {
	Phone        string
	Name         string
	ReferralCode string
	IsLogin      bool
}

// OTPVerifyInput carries the fields of a verify-OTP request.
type OTPVerifyInput struct {
	Phone        string
	OTP          string
	Name         string
	ReferralCode string
}

// SendOTPResult is the structured outcome of a send-OTP request. Expected
// failures ("not registered") are values, not errors, so callers can branch
// on Exists.
type SendOTPResult struct {
	Success bool   `json:"success"`
	Exists  bool   `json:"exists"`
	Message string `json:"message"`
}

// ForwardResult is what the upstream forwarder hands back: the upstream's
// status code plus its decoded envelope. Body retains the raw payload so
// handlers can relay it verbatim.
type ForwardResult struct {
	StatusCode int
	Success    bool
	Message    string
	Data       json.RawMessage
	Body       json.RawMessage
}

// Rejected reports whether the upstream answered with a non-success status.
func (r *ForwardResult) Rejected() bool {
	return r != nil && (r.StatusCode >= 400 || !r.Success)
}

// TokenClaims are the claims the gateway reads from upstream-issued JWTs.
type TokenClaims struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	SessionID string `json:"session_id,omitempty"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// GateDecision is the protected-route gate's verdict for a request.
type GateDecision string

const (
	GateAllow    GateDecision = "allow"
	GatePending  GateDecision = "pending"
	GateRedirect GateDecision = "redirect"
)
