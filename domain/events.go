package domain

import "time"

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// OTP lifecycle events
	OTPRequestedEvent    AuditEventType = "OTP_REQUESTED"
	OTPResentEvent       AuditEventType = "OTP_RESENT"
	OTPVerifiedEvent     AuditEventType = "OTP_VERIFIED"
	OTPVerifyFailedEvent AuditEventType = "OTP_VERIFY_FAILED"

	// Session lifecycle events
	SessionEstablishedEvent AuditEventType = "SESSION_ESTABLISHED"
	SessionRefreshedEvent   AuditEventType = "SESSION_REFRESHED"
	SessionDestroyedEvent   AuditEventType = "SESSION_DESTROYED"

	// Gate and authorization events
	GateRedirectEvent AuditEventType = "GATE_REDIRECT"
	AccessDeniedEvent AuditEventType = "ACCESS_DENIED"
)

// AuditEvent represents a business event that occurred in the gateway.
type AuditEvent struct {
	EventType AuditEventType `json:"event_type"`
	Phone     string         `json:"phone,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	ErrorMsg  string         `json:"error_msg,omitempty"`
	Success   bool           `json:"success"`
}

// NewAuditEvent creates an audit event with common fields populated.
func NewAuditEvent(eventType AuditEventType) *AuditEvent {
	return &AuditEvent{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Success:   true,
	}
}

// WithError marks the event failed and records the cause.
func (e *AuditEvent) WithError(err error) *AuditEvent {
	e.Success = false
	if err != nil {
		e.ErrorMsg = err.Error()
	}
	return e
}

// WithPhone sets the phone field.
func (e *AuditEvent) WithPhone(phone string) *AuditEvent {
	e.Phone = phone
	return e
}

// WithSession sets the session field.
func (e *AuditEvent) WithSession(sessionID string) *AuditEvent {
	e.SessionID = sessionID
	return e
}

// WithUser sets the user field.
func (e *AuditEvent) WithUser(userID string) *AuditEvent {
	e.UserID = userID
	return e
}

// Fields renders the event as structured log fields.
func (e *AuditEvent) Fields() map[string]interface{} {
	f := map[string]interface{}{
		"event":   string(e.EventType),
		"success": e.Success,
		"ts":      e.Timestamp,
	}
	if e.Phone != "" {
		f["phone"] = e.Phone
	}
	if e.UserID != "" {
		f["user_id"] = e.UserID
	}
	if e.SessionID != "" {
		f["session_id"] = e.SessionID
	}
	if e.ErrorMsg != "" {
		f["error"] = e.ErrorMsg
	}
	return f
}
