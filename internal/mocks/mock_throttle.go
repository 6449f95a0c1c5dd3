package mocks

import (
	"context"
	"sync"

	"github.com/you/tradegate/domain"
)

// MockThrottle implements domain.OTPThrottle for testing.
type MockThrottle struct {
	mu       sync.Mutex
	ArmCalls []string

	ArmFunc       func(ctx context.Context, phone string) error
	RemainingFunc func(ctx context.Context, phone string) (int64, error)
}

// NewMockThrottle creates a new MockThrottle with default behaviors.
func NewMockThrottle() *MockThrottle {
	return &MockThrottle{}
}

// Arm records the call and delegates to ArmFunc.
func (m *MockThrottle) Arm(ctx context.Context, phone string) error {
	m.mu.Lock()
	m.ArmCalls = append(m.ArmCalls, phone)
	m.mu.Unlock()

	if m.ArmFunc != nil {
		return m.ArmFunc(ctx, phone)
	}
	return nil
}

// Remaining delegates to RemainingFunc. Default: resend allowed.
func (m *MockThrottle) Remaining(ctx context.Context, phone string) (int64, error) {
	if m.RemainingFunc != nil {
		return m.RemainingFunc(ctx, phone)
	}
	return 0, nil
}

// Armed returns how many times Arm was called.
func (m *MockThrottle) Armed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ArmCalls)
}

// Compile-time interface compliance verification
var _ domain.OTPThrottle = (*MockThrottle)(nil)
