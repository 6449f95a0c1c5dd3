package services

import (
	"errors"
	"testing"
	"time"

	"github.com/you/tradegate/domain"
)

func TestFlow_ResendCooldown(t *testing.T) {
	f := newFlow("9876543210", 50*time.Millisecond)

	if f.CanResend() {
		t.Error("fresh challenge must start with the cooldown armed")
	}
	if left := f.RemainingCooldown(); left < 1 {
		t.Errorf("expected at least one second reported, got %d", left)
	}

	time.Sleep(60 * time.Millisecond)
	if !f.CanResend() {
		t.Error("cooldown should have elapsed")
	}

	// Re-arming restarts the full window, not the remainder.
	f.Rearm()
	if f.CanResend() {
		t.Error("re-armed cooldown must block resends again")
	}
}

func TestFlow_RemainingCooldownRoundsUp(t *testing.T) {
	f := newFlow("9876543210", 30*time.Second)
	left := f.RemainingCooldown()
	if left != 30 {
		t.Errorf("expected 30 seconds remaining, got %d", left)
	}
}

func TestFlow_BeginVerify(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr error
	}{
		{"six digits accepted", "123456", nil},
		{"short code rejected", "1234", domain.ErrOTPTooShort},
		{"long code rejected", "1234567", domain.ErrOTPTooShort},
		{"empty code rejected", "", domain.ErrOTPTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFlow("9876543210", 30*time.Second)
			err := f.BeginVerify(tt.code, 6)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				if f.Snapshot().State != domain.ChallengeEntering {
					t.Error("rejected code must not change state")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			snap := f.Snapshot()
			if snap.State != domain.ChallengeVerifying {
				t.Errorf("expected verifying state, got %s", snap.State)
			}
			if snap.Attempts != 1 {
				t.Errorf("expected one attempt recorded, got %d", snap.Attempts)
			}
		})
	}
}

func TestFlow_ConcurrentVerifyBlocked(t *testing.T) {
	f := newFlow("9876543210", 30*time.Second)

	if err := f.BeginVerify("123456", 6); err != nil {
		t.Fatalf("first verify must start: %v", err)
	}
	if err := f.BeginVerify("123456", 6); !errors.Is(err, domain.ErrVerifyInFlight) {
		t.Errorf("second verify while one is in flight must be rejected, got %v", err)
	}
}

func TestFlow_BeginVerifyConfigurableLength(t *testing.T) {
	f := newFlow("9876543210", 30*time.Second)

	err := f.BeginVerify("123456", 4)
	var lenErr *domain.OTPLengthError
	if !errors.As(err, &lenErr) {
		t.Fatalf("expected OTPLengthError, got %v", err)
	}
	if lenErr.Error() != "otp code must be 4 digits" {
		t.Errorf("message must carry the configured length, got %q", lenErr.Error())
	}

	if err := f.BeginVerify("1234", 4); err != nil {
		t.Errorf("four digits must pass a four-digit guard: %v", err)
	}
}

func TestFlow_FailThenRetry(t *testing.T) {
	f := newFlow("9876543210", 30*time.Second)

	if err := f.BeginVerify("111111", 6); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.Fail("Invalid OTP")

	snap := f.Snapshot()
	if snap.State != domain.ChallengeFailed || snap.LastError != "Invalid OTP" {
		t.Errorf("failure not recorded: %+v", snap)
	}

	// A failed challenge accepts another attempt.
	if err := f.BeginVerify("222222", 6); err != nil {
		t.Errorf("retry after failure must be allowed: %v", err)
	}
	f.Succeed()

	snap = f.Snapshot()
	if snap.State != domain.ChallengeSucceeded {
		t.Errorf("expected succeeded state, got %s", snap.State)
	}
	if snap.LastError != "" {
		t.Errorf("success must clear the last error, got %q", snap.LastError)
	}
	if snap.Attempts != 2 {
		t.Errorf("expected two attempts, got %d", snap.Attempts)
	}
}

func TestFlowRegistry_BeginReusesActiveChallenge(t *testing.T) {
	r := NewFlowRegistry(30*time.Second, 10*time.Minute)

	first := r.Begin("9876543210")
	second := r.Begin("9876543210")
	if first != second {
		t.Error("a phone has at most one active challenge")
	}

	other := r.Begin("9123456780")
	if other == first {
		t.Error("distinct phones must get distinct flows")
	}
}

func TestFlowRegistry_Remove(t *testing.T) {
	r := NewFlowRegistry(30*time.Second, 10*time.Minute)

	r.Begin("9876543210")
	r.Remove("9876543210")

	if _, ok := r.Get("9876543210"); ok {
		t.Error("removed challenge must not be retrievable")
	}
}

func TestFlowRegistry_SweepDropsStaleChallenges(t *testing.T) {
	r := NewFlowRegistry(30*time.Second, 20*time.Millisecond)

	r.Begin("9876543210")
	time.Sleep(30 * time.Millisecond)
	r.Begin("9123456780") // fresh, must survive

	r.Sweep()

	if _, ok := r.Get("9876543210"); ok {
		t.Error("stale challenge should have been swept")
	}
	if _, ok := r.Get("9123456780"); !ok {
		t.Error("fresh challenge must survive the sweep")
	}
}
