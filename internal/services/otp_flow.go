package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/you/tradegate/domain"
	"github.com/you/tradegate/internal/metrics"
)

// Flow tracks a single OTP challenge through its lifecycle:
// entering → verifying → succeeded/failed, with an independent resend
// cooldown that re-arms in full on every accepted resend.
type Flow struct {
	mu        sync.Mutex
	challenge domain.OTPChallenge
	window    time.Duration
}

func newFlow(phone string, window time.Duration) *Flow {
	now := time.Now()
	return &Flow{
		window: window,
		challenge: domain.OTPChallenge{
			Phone:          phone,
			State:          domain.ChallengeEntering,
			ResendDeadline: now.Add(window),
			CreatedAt:      now,
		},
	}
}

// Snapshot returns a copy of the challenge state.
func (f *Flow) Snapshot() domain.OTPChallenge {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.challenge
}

// CanResend reports whether the cooldown has elapsed.
func (f *Flow) CanResend() bool {
	return f.RemainingCooldown() == 0
}

// RemainingCooldown returns whole seconds left before resend is allowed.
func (f *Flow) RemainingCooldown() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	left := time.Until(f.challenge.ResendDeadline)
	if left <= 0 {
		return 0
	}
	return int64((left + time.Second - 1) / time.Second)
}

// Rearm restarts the full cooldown window regardless of time already
// elapsed.
func (f *Flow) Rearm() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.challenge.ResendDeadline = time.Now().Add(f.window)
}

// BeginVerify moves the challenge into verifying. Codes of the wrong length
// are rejected here, before any network call.
func (f *Flow) BeginVerify(code string, length int) error {
	if len(code) != length {
		return &domain.OTPLengthError{Length: length}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.challenge.State == domain.ChallengeVerifying {
		return domain.ErrVerifyInFlight
	}
	f.challenge.State = domain.ChallengeVerifying
	f.challenge.Attempts++
	return nil
}

// Succeed marks the challenge complete.
func (f *Flow) Succeed() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.challenge.State = domain.ChallengeSucceeded
	f.challenge.LastError = ""
}

// Fail records the failure message; the next BeginVerify re-enters from
// here.
func (f *Flow) Fail(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.challenge.State = domain.ChallengeFailed
	f.challenge.LastError = msg
}

// FlowRegistry holds the active challenge per phone. At most one challenge
// exists per phone; beginning again reuses the existing flow and re-arms its
// cooldown.
type FlowRegistry struct {
	mu     sync.RWMutex
	flows  map[string]*Flow
	window time.Duration
	maxAge time.Duration
}

// NewFlowRegistry creates a registry. window is the resend cooldown; maxAge
// is how long an abandoned challenge survives before the sweeper drops it.
func NewFlowRegistry(window, maxAge time.Duration) *FlowRegistry {
	return &FlowRegistry{
		flows:  make(map[string]*Flow),
		window: window,
		maxAge: maxAge,
	}
}

// Begin returns the flow for the phone, creating it when absent.
func (r *FlowRegistry) Begin(phone string) *Flow {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.flows[phone]; ok {
		return f
	}
	f := newFlow(phone, r.window)
	r.flows[phone] = f
	metrics.ActiveChallenges.Set(float64(len(r.flows)))
	return f
}

// Get returns the flow for the phone if one is active.
func (r *FlowRegistry) Get(phone string) (*Flow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flows[phone]
	return f, ok
}

// Remove drops the flow once the challenge is settled.
func (r *FlowRegistry) Remove(phone string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.flows, phone)
	metrics.ActiveChallenges.Set(float64(len(r.flows)))
}

// Sweep drops challenges older than maxAge.
func (r *FlowRegistry) Sweep() {
	cutoff := time.Now().Add(-r.maxAge)
	r.mu.Lock()
	defer r.mu.Unlock()
	for phone, f := range r.flows {
		if f.Snapshot().CreatedAt.Before(cutoff) {
			delete(r.flows, phone)
		}
	}
	metrics.ActiveChallenges.Set(float64(len(r.flows)))
}

// Run sweeps periodically until the context is cancelled.
func (r *FlowRegistry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.maxAge / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// RedisThrottle implements domain.OTPThrottle with a TTL key per phone, so
// the cooldown holds across gateway instances.
type RedisThrottle struct {
	client *redis.Client
	window time.Duration
}

// NewRedisThrottle creates the resend throttle.
func NewRedisThrottle(client *redis.Client, window time.Duration) domain.OTPThrottle {
	return &RedisThrottle{client: client, window: window}
}

// Arm implements domain.OTPThrottle.
func (t *RedisThrottle) Arm(ctx context.Context, phone string) error {
	return t.client.Set(ctx, "otp:res:"+phone, 1, t.window).Err()
}

// Remaining implements domain.OTPThrottle.
func (t *RedisThrottle) Remaining(ctx context.Context, phone string) (int64, error) {
	ttl, err := t.client.TTL(ctx, "otp:res:"+phone).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to check resend TTL: %w", err)
	}
	if ttl <= 0 {
		return 0, nil
	}
	return int64((ttl + time.Second - 1) / time.Second), nil
}
