package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/you/tradegate/domain"
)

// AuthHandlers handles the authentication proxy routes. Every route
// normalizes its input, forwards to the upstream auth API, and relays the
// upstream envelope. Cookies are owned here; the session service never
// touches HTTP.
type AuthHandlers struct {
	sessions      domain.SessionService
	sessionCookie string
	tokenTTL      time.Duration
	cookieSecure  bool
	log           zerolog.Logger
}

// NewAuthHandlers creates new auth handlers.
func NewAuthHandlers(sessions domain.SessionService, sessionCookie string, tokenTTL time.Duration, cookieSecure bool, log zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{
		sessions:      sessions,
		sessionCookie: sessionCookie,
		tokenTTL:      tokenTTL,
		cookieSecure:  cookieSecure,
		log:           log,
	}
}

// SendOTPRequest represents an OTP send request.
type SendOTPRequest struct {
	Phone        string `json:"phone" binding:"required"`
	Name         string `json:"name,omitempty"`
	ReferralCode string `json:"referralCode,omitempty"`
	IsLogin      bool   `json:"isLogin,omitempty"`
}

// VerifyOTPRequest represents an OTP verification request.
type VerifyOTPRequest struct {
	Phone        string `json:"phone" binding:"required"`
	OTP          string `json:"otp" binding:"required"`
	Name         string `json:"name,omitempty"`
	ReferralCode string `json:"referralCode,omitempty"`
}

// PhoneRequest represents a request carrying only a phone number.
type PhoneRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// RefreshRequest represents a token refresh request. The token is optional
// because it can also come from the refresh cookie or the stored session.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

// relay writes the upstream envelope through unchanged. A nil result means
// the upstream never answered.
func (h *AuthHandlers) relay(c *gin.Context, res *domain.ForwardResult) {
	if res == nil {
		h.log.Warn().Str("path", c.Request.URL.Path).Msg("no upstream answer to relay")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "Failed to connect to authentication service",
		})
		return
	}
	if len(res.Body) > 0 {
		c.Data(res.StatusCode, "application/json; charset=utf-8", res.Body)
		return
	}
	c.JSON(res.StatusCode, gin.H{"success": res.Success, "message": res.Message})
}

// setSessionCookies installs the token cookies after a successful
// verification. All of them are HTTP-only and live as long as the session.
func (h *AuthHandlers) setSessionCookies(c *gin.Context, sess *domain.Session) {
	maxAge := int(h.tokenTTL / time.Second)
	c.SetCookie("token", sess.AccessToken, maxAge, "/", "", h.cookieSecure, true)
	c.SetCookie("accessToken", sess.AccessToken, maxAge, "/", "", h.cookieSecure, true)
	c.SetCookie("refreshToken", sess.RefreshToken, maxAge, "/", "", h.cookieSecure, true)
	c.SetCookie(h.sessionCookie, sess.ID, maxAge, "/", "", h.cookieSecure, true)
}

// clearSessionCookies removes every cookie the gateway owns. Logout must
// clear all of them together.
func (h *AuthHandlers) clearSessionCookies(c *gin.Context) {
	for _, name := range []string{"token", "accessToken", "refreshToken", h.sessionCookie} {
		c.SetCookie(name, "", -1, "/", "", h.cookieSecure, true)
	}
}

// SendOTP handles POST /api/auth/send-otp.
func (h *AuthHandlers) SendOTP(c *gin.Context) {
	var req SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Phone number is required"})
		return
	}

	result, relay := h.sessions.SendOTP(c.Request.Context(), domain.OTPSendInput{
		Phone:        req.Phone,
		Name:         req.Name,
		ReferralCode: req.ReferralCode,
		IsLogin:      req.IsLogin,
	})

	// Login attempt for an unregistered phone: structured refusal, no
	// upstream envelope to relay.
	if result != nil && relay == nil {
		c.JSON(http.StatusOK, gin.H{
			"success": result.Success,
			"exists":  result.Exists,
			"message": result.Message,
		})
		return
	}

	h.relay(c, relay)
}

// ResendOTP handles POST /api/auth/resend-otp. While the cooldown is active
// the upstream is never contacted.
func (h *AuthHandlers) ResendOTP(c *gin.Context) {
	var req PhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Phone number is required"})
		return
	}

	relay, err := h.sessions.ResendOTP(c.Request.Context(), req.Phone)
	if err != nil {
		var throttled *domain.ThrottledError
		if errors.As(err, &throttled) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": fmt.Sprintf("Please wait %d seconds before requesting a new code", throttled.Wait),
				"wait":    throttled.Wait,
			})
			return
		}
		h.relay(c, nil)
		return
	}

	h.relay(c, relay)
}

// VerifyOTP handles POST /api/auth/verify-otp. On success the session
// cookies are installed before the upstream envelope is relayed.
func (h *AuthHandlers) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Phone number and OTP are required"})
		return
	}

	sess, relay, ok := h.sessions.VerifyOTP(c.Request.Context(), domain.OTPVerifyInput{
		Phone:        req.Phone,
		OTP:          req.OTP,
		Name:         req.Name,
		ReferralCode: req.ReferralCode,
	})

	if !ok {
		// Local rejections arrive as envelopes too; a nil relay means the
		// upstream never answered.
		h.relay(c, relay)
		return
	}

	h.setSessionCookies(c, sess)
	h.relay(c, relay)
}

// CheckUserExists handles POST /api/auth/check-user-exists.
func (h *AuthHandlers) CheckUserExists(c *gin.Context) {
	var req PhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Phone number is required"})
		return
	}

	exists, relay, err := h.sessions.CheckUserExists(c.Request.Context(), req.Phone)
	if err != nil {
		h.relay(c, nil)
		return
	}
	if relay != nil && len(relay.Body) > 0 {
		h.relay(c, relay)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"exists": exists}})
}

// RefreshToken handles POST /api/auth/refresh-token. Without a refresh token
// anywhere the call is a silent no-op, matching client behavior that retries
// later rather than erroring.
func (h *AuthHandlers) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	_ = c.ShouldBindJSON(&req)

	refreshToken := req.RefreshToken
	if refreshToken == "" {
		if tok, err := c.Cookie("refreshToken"); err == nil {
			refreshToken = tok
		}
	}
	sessionID, _ := c.Cookie(h.sessionCookie)

	relay, ok := h.sessions.Refresh(c.Request.Context(), sessionID, refreshToken)
	if !ok && relay == nil {
		c.Status(http.StatusNoContent)
		return
	}

	h.relay(c, relay)
}

// Logout handles POST /api/auth/logout. It always succeeds from the
// client's point of view: the cookies and the stored session are gone even
// when the upstream is down.
func (h *AuthHandlers) Logout(c *gin.Context) {
	sessionID, _ := c.Cookie(h.sessionCookie)
	h.sessions.Logout(c.Request.Context(), sessionID)
	h.clearSessionCookies(c)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
}
