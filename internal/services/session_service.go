package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/you/tradegate/domain"
	"github.com/you/tradegate/internal/infrastructure/upstream"
	"github.com/you/tradegate/internal/metrics"
)

// SessionServiceImpl implements domain.SessionService. It is the single
// façade the handlers use for authentication actions; everything it does
// runs through the upstream forwarder and the session repository.
type SessionServiceImpl struct {
	fw         domain.UpstreamForwarder
	sessions   domain.SessionRepository
	tokens     domain.TokenService
	flows      *FlowRegistry
	throttle   domain.OTPThrottle
	cache      domain.ProfileCache
	sessionTTL time.Duration
	codeLength int
	log        zerolog.Logger
}

// NewSessionService creates a new session service. cache may be nil when
// profile caching is disabled.
func NewSessionService(
	fw domain.UpstreamForwarder,
	sessions domain.SessionRepository,
	tokens domain.TokenService,
	flows *FlowRegistry,
	throttle domain.OTPThrottle,
	cache domain.ProfileCache,
	sessionTTL time.Duration,
	codeLength int,
	log zerolog.Logger,
) domain.SessionService {
	return &SessionServiceImpl{
		fw:         fw,
		sessions:   sessions,
		tokens:     tokens,
		flows:      flows,
		throttle:   throttle,
		cache:      cache,
		sessionTTL: sessionTTL,
		codeLength: codeLength,
		log:        log,
	}
}

func (s *SessionServiceImpl) audit(ev *domain.AuditEvent) {
	s.log.Info().Fields(ev.Fields()).Msg("audit")
}

// SendOTP implements domain.SessionService.
func (s *SessionServiceImpl) SendOTP(ctx context.Context, in domain.OTPSendInput) (*domain.SendOTPResult, *domain.ForwardResult) {
	phone := upstream.NormalizePhone(in.Phone)

	if in.IsLogin {
		exists, relay, err := s.CheckUserExists(ctx, phone)
		if err != nil || relay.Rejected() {
			metrics.AuthOperationsTotal.WithLabelValues("send_otp", "failure").Inc()
			return nil, relay
		}
		if !exists {
			metrics.AuthOperationsTotal.WithLabelValues("send_otp", "failure").Inc()
			return &domain.SendOTPResult{
				Success: false,
				Exists:  false,
				Message: "User not registered. Please sign up first.",
			}, nil
		}
	}

	body := map[string]any{"phone": phone}
	if in.Name != "" {
		body["name"] = in.Name
	}
	if in.ReferralCode != "" {
		body["referralCode"] = in.ReferralCode
	}

	relay, err := s.fw.Post(ctx, "/auth/send-otp", body)
	if err != nil {
		s.log.Error().Err(err).Str("phone", phone).Msg("send-otp forward failed")
		metrics.AuthOperationsTotal.WithLabelValues("send_otp", "failure").Inc()
		return nil, nil
	}

	if !relay.Rejected() {
		s.flows.Begin(phone).Rearm()
		if err := s.throttle.Arm(ctx, phone); err != nil {
			s.log.Warn().Err(err).Str("phone", phone).Msg("failed to arm resend throttle")
		}
		s.audit(domain.NewAuditEvent(domain.OTPRequestedEvent).WithPhone(phone))
		metrics.AuthOperationsTotal.WithLabelValues("send_otp", "success").Inc()
	} else {
		metrics.AuthOperationsTotal.WithLabelValues("send_otp", "failure").Inc()
	}

	return &domain.SendOTPResult{
		Success: relay.Success,
		Exists:  true,
		Message: relay.Message,
	}, relay
}

// CheckUserExists implements domain.SessionService.
func (s *SessionServiceImpl) CheckUserExists(ctx context.Context, phone string) (bool, *domain.ForwardResult, error) {
	phone = upstream.NormalizePhone(phone)
	relay, err := s.fw.Post(ctx, "/auth/check-user-exists", map[string]any{"phone": phone})
	if err != nil {
		return false, nil, err
	}
	if relay.Rejected() {
		return false, relay, nil
	}

	var data struct {
		Exists bool `json:"exists"`
	}
	if len(relay.Data) > 0 {
		if err := json.Unmarshal(relay.Data, &data); err != nil {
			s.log.Warn().Err(err).Msg("check-user-exists payload not understood")
		}
	}
	return data.Exists, relay, nil
}

// sessionPayload is the token shape the upstream verify/refresh envelopes
// carry in their data field.
type sessionPayload struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         *domain.User `json:"user"`
}

// rejectedLocally shapes a pre-flight rejection like an upstream refusal so
// the handler can relay it instead of blaming the connection.
func rejectedLocally(err error) *domain.ForwardResult {
	status := http.StatusBadRequest
	if errors.Is(err, domain.ErrVerifyInFlight) {
		status = http.StatusConflict
	}
	return &domain.ForwardResult{StatusCode: status, Message: err.Error()}
}

// VerifyOTP implements domain.SessionService. Errors never escape: any
// upstream or storage failure is logged and downgraded to ok=false.
// Rejections that never reach the upstream still carry an envelope.
func (s *SessionServiceImpl) VerifyOTP(ctx context.Context, in domain.OTPVerifyInput) (*domain.Session, *domain.ForwardResult, bool) {
	phone := upstream.NormalizePhone(in.Phone)

	flow := s.flows.Begin(phone)
	if err := flow.BeginVerify(in.OTP, s.codeLength); err != nil {
		s.log.Debug().Err(err).Str("phone", phone).Msg("otp verify rejected locally")
		metrics.AuthOperationsTotal.WithLabelValues("verify_otp", "failure").Inc()
		return nil, rejectedLocally(err), false
	}

	body := map[string]any{"phone": phone, "otp": in.OTP}
	if in.Name != "" {
		body["name"] = in.Name
	}
	if in.ReferralCode != "" {
		body["referralCode"] = in.ReferralCode
	}

	relay, err := s.fw.Post(ctx, "/auth/verify-otp", body)
	if err != nil {
		s.log.Error().Err(err).Str("phone", phone).Msg("verify-otp forward failed")
		flow.Fail(domain.ErrUpstreamUnavailable.Error())
		metrics.AuthOperationsTotal.WithLabelValues("verify_otp", "failure").Inc()
		return nil, nil, false
	}
	if relay.Rejected() {
		flow.Fail(relay.Message)
		s.audit(domain.NewAuditEvent(domain.OTPVerifyFailedEvent).WithPhone(phone).WithError(domain.ErrUpstreamRejected))
		metrics.AuthOperationsTotal.WithLabelValues("verify_otp", "failure").Inc()
		return nil, relay, false
	}

	var payload sessionPayload
	if len(relay.Data) > 0 {
		if err := json.Unmarshal(relay.Data, &payload); err != nil {
			s.log.Error().Err(err).Msg("verify-otp payload not understood")
			flow.Fail("malformed upstream payload")
			metrics.AuthOperationsTotal.WithLabelValues("verify_otp", "failure").Inc()
			return nil, relay, false
		}
	}
	if payload.AccessToken == "" {
		s.log.Error().Str("phone", phone).Msg("verify-otp succeeded without tokens")
		flow.Fail("upstream returned no tokens")
		metrics.AuthOperationsTotal.WithLabelValues("verify_otp", "failure").Inc()
		return nil, relay, false
	}

	now := time.Now()
	session := &domain.Session{
		ID:           uuid.NewString(),
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		User:         payload.User,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.sessionTTL),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		s.log.Error().Err(err).Str("phone", phone).Msg("failed to store session")
		// The flow must leave verifying here too, or every retry for this
		// phone is rejected until the sweeper drops the challenge.
		flow.Fail("failed to store session")
		metrics.AuthOperationsTotal.WithLabelValues("verify_otp", "failure").Inc()
		return nil, relay, false
	}

	flow.Succeed()
	s.flows.Remove(phone)

	s.audit(domain.NewAuditEvent(domain.OTPVerifiedEvent).WithPhone(phone))
	ev := domain.NewAuditEvent(domain.SessionEstablishedEvent).WithPhone(phone).WithSession(session.ID)
	if payload.User != nil {
		ev = ev.WithUser(payload.User.ID)
	}
	s.audit(ev)
	metrics.AuthOperationsTotal.WithLabelValues("verify_otp", "success").Inc()

	return session, relay, true
}

// ResendOTP implements domain.SessionService. While the cooldown is active
// the call is a no-op: no upstream request is made.
func (s *SessionServiceImpl) ResendOTP(ctx context.Context, phone string) (*domain.ForwardResult, error) {
	phone = upstream.NormalizePhone(phone)

	remaining, err := s.throttle.Remaining(ctx, phone)
	if err != nil {
		// Throttle state unavailable; fall back to the in-process flow.
		s.log.Warn().Err(err).Str("phone", phone).Msg("resend throttle check failed")
		if f, ok := s.flows.Get(phone); ok {
			remaining = f.RemainingCooldown()
		}
	}
	if remaining > 0 {
		metrics.AuthOperationsTotal.WithLabelValues("resend_otp", "failure").Inc()
		return nil, &domain.ThrottledError{Wait: remaining}
	}

	relay, err := s.fw.Post(ctx, "/auth/resend-otp", map[string]any{"phone": phone})
	if err != nil {
		s.log.Error().Err(err).Str("phone", phone).Msg("resend-otp forward failed")
		metrics.AuthOperationsTotal.WithLabelValues("resend_otp", "failure").Inc()
		return nil, domain.ErrUpstreamUnavailable
	}

	if !relay.Rejected() {
		// Full window re-arms regardless of time already elapsed.
		s.flows.Begin(phone).Rearm()
		if err := s.throttle.Arm(ctx, phone); err != nil {
			s.log.Warn().Err(err).Str("phone", phone).Msg("failed to arm resend throttle")
		}
		s.audit(domain.NewAuditEvent(domain.OTPResentEvent).WithPhone(phone))
		metrics.AuthOperationsTotal.WithLabelValues("resend_otp", "success").Inc()
	} else {
		metrics.AuthOperationsTotal.WithLabelValues("resend_otp", "failure").Inc()
	}

	return relay, nil
}

// Refresh implements domain.SessionService.
func (s *SessionServiceImpl) Refresh(ctx context.Context, sessionID, refreshToken string) (*domain.ForwardResult, bool) {
	var stored *domain.Session
	if sessionID != "" {
		if sess, err := s.sessions.Find(ctx, sessionID); err == nil {
			stored = sess
		}
	}
	if refreshToken == "" {
		if stored == nil || stored.RefreshToken == "" {
			// Nothing to exchange; treated as a silent no-op.
			return nil, false
		}
		refreshToken = stored.RefreshToken
	}

	relay, err := s.fw.Post(ctx, "/auth/refresh-token", map[string]any{"refreshToken": refreshToken})
	if err != nil {
		s.log.Error().Err(err).Msg("refresh-token forward failed")
		metrics.AuthOperationsTotal.WithLabelValues("refresh", "failure").Inc()
		return nil, false
	}
	if relay.Rejected() {
		metrics.AuthOperationsTotal.WithLabelValues("refresh", "failure").Inc()
		return relay, false
	}

	var payload sessionPayload
	if len(relay.Data) > 0 {
		if err := json.Unmarshal(relay.Data, &payload); err != nil {
			s.log.Warn().Err(err).Msg("refresh payload not understood")
		}
	}

	if stored != nil && payload.AccessToken != "" {
		stored.AccessToken = payload.AccessToken
		if payload.RefreshToken != "" {
			stored.RefreshToken = payload.RefreshToken
		}
		stored.ExpiresAt = time.Now().Add(s.sessionTTL)
		if err := s.sessions.Save(ctx, stored); err != nil {
			s.log.Error().Err(err).Str("session_id", sessionID).Msg("failed to persist refreshed session")
			metrics.AuthOperationsTotal.WithLabelValues("refresh", "failure").Inc()
			return relay, false
		}
		s.audit(domain.NewAuditEvent(domain.SessionRefreshedEvent).WithSession(sessionID))
	}

	metrics.AuthOperationsTotal.WithLabelValues("refresh", "success").Inc()
	return relay, true
}

// Logout implements domain.SessionService. The stored session is destroyed
// before the upstream call, so the client is logged out even when the
// network fails. Never returns an error.
func (s *SessionServiceImpl) Logout(ctx context.Context, sessionID string) {
	if sessionID != "" {
		if s.cache != nil {
			if sess, err := s.sessions.Find(ctx, sessionID); err == nil {
				if err := s.cache.Invalidate(ctx, sess.AccessToken); err != nil {
					s.log.Warn().Err(err).Msg("failed to drop cached profile")
				}
			}
		}
		if err := s.sessions.Destroy(ctx, sessionID); err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to destroy session keys")
		}
	}

	if _, err := s.fw.Post(ctx, "/auth/logout", nil); err != nil {
		s.log.Warn().Err(err).Msg("upstream logout failed; client already logged out")
	}

	s.audit(domain.NewAuditEvent(domain.SessionDestroyedEvent).WithSession(sessionID))
	metrics.AuthOperationsTotal.WithLabelValues("logout", "success").Inc()
}

// IsAuthenticated implements domain.SessionService.
func (s *SessionServiceImpl) IsAuthenticated(ctx context.Context, sessionID string) bool {
	if sessionID == "" {
		return false
	}
	sess, err := s.sessions.Find(ctx, sessionID)
	if err != nil {
		return false
	}
	return sess.Authenticated()
}
