package domain

import (
	"testing"
	"time"
)

func TestSession_Authenticated(t *testing.T) {
	tests := []struct {
		name     string
		session  *Session
		expected bool
	}{
		{
			name: "valid session with token",
			session: &Session{
				ID:          "sess-1",
				AccessToken: "token-abc",
				ExpiresAt:   time.Now().Add(time.Hour),
			},
			expected: true,
		},
		{
			name: "empty access token",
			session: &Session{
				ID:        "sess-2",
				ExpiresAt: time.Now().Add(time.Hour),
			},
			expected: false,
		},
		{
			name: "expired session",
			session: &Session{
				ID:          "sess-3",
				AccessToken: "token-abc",
				ExpiresAt:   time.Now().Add(-time.Minute),
			},
			expected: false,
		},
		{
			name:     "nil session",
			session:  nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.Authenticated(); got != tt.expected {
				t.Errorf("Authenticated() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestForwardResult_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		result   *ForwardResult
		expected bool
	}{
		{
			name:     "success relay",
			result:   &ForwardResult{StatusCode: 200, Success: true},
			expected: false,
		},
		{
			name:     "upstream 4xx",
			result:   &ForwardResult{StatusCode: 401, Success: false},
			expected: true,
		},
		{
			name:     "2xx with success=false envelope",
			result:   &ForwardResult{StatusCode: 200, Success: false},
			expected: true,
		},
		{
			name:     "nil result",
			result:   nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Rejected(); got != tt.expected {
				t.Errorf("Rejected() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAuditEvent_Builders(t *testing.T) {
	ev := NewAuditEvent(OTPVerifyFailedEvent).
		WithPhone("9876543210").
		WithSession("sess-1").
		WithError(ErrOTPTooShort)

	if ev.Success {
		t.Error("event with error should not be marked successful")
	}
	if ev.Phone != "9876543210" {
		t.Errorf("expected phone to be set, got %q", ev.Phone)
	}

	fields := ev.Fields()
	if fields["event"] != string(OTPVerifyFailedEvent) {
		t.Errorf("unexpected event field: %v", fields["event"])
	}
	if fields["session_id"] != "sess-1" {
		t.Errorf("unexpected session field: %v", fields["session_id"])
	}
	if _, ok := fields["error"]; !ok {
		t.Error("expected error field to be present")
	}
}
