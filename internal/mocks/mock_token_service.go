package mocks

import (
	"time"

	"github.com/you/tradegate/domain"
)

// MockTokenService implements domain.TokenService for testing.
type MockTokenService struct {
	ValidateFunc      func(token string) (*domain.TokenClaims, error)
	PeekExpiryFunc    func(token string) (time.Time, error)
	ExpiresWithinFunc func(token string, window time.Duration) bool
}

// NewMockTokenService creates a new MockTokenService with default behaviors.
func NewMockTokenService() *MockTokenService {
	return &MockTokenService{}
}

// Validate delegates to ValidateFunc. Default: every non-empty token is a
// valid user token.
func (m *MockTokenService) Validate(token string) (*domain.TokenClaims, error) {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(token)
	}
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}
	return &domain.TokenClaims{
		UserID:    "u-1",
		Role:      "user",
		ExpiresAt: time.Now().Add(15 * time.Minute).Unix(),
	}, nil
}

// PeekExpiry delegates to PeekExpiryFunc. Default: expiry far in the future.
func (m *MockTokenService) PeekExpiry(token string) (time.Time, error) {
	if m.PeekExpiryFunc != nil {
		return m.PeekExpiryFunc(token)
	}
	return time.Now().Add(time.Hour), nil
}

// ExpiresWithin delegates to ExpiresWithinFunc. Default: not expiring.
func (m *MockTokenService) ExpiresWithin(token string, window time.Duration) bool {
	if m.ExpiresWithinFunc != nil {
		return m.ExpiresWithinFunc(token, window)
	}
	return false
}

// Compile-time interface compliance verification
var _ domain.TokenService = (*MockTokenService)(nil)
