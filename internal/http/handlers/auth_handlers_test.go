package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/you/tradegate/domain"
	"github.com/you/tradegate/internal/mocks"
	"github.com/you/tradegate/internal/services"
)

type handlerFixture struct {
	router   *gin.Engine
	fw       *mocks.MockForwarder
	sessions *mocks.MockSessionRepository
	throttle *mocks.MockThrottle
	flows    *services.FlowRegistry
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fw := mocks.NewMockForwarder()
	sessions := mocks.NewMockSessionRepository()
	throttle := mocks.NewMockThrottle()
	flows := services.NewFlowRegistry(30*time.Second, 10*time.Minute)
	svc := services.NewSessionService(fw, sessions, mocks.NewMockTokenService(), flows, throttle, nil, 7*24*time.Hour, 6, zerolog.Nop())

	h := NewAuthHandlers(svc, "pm_session", 7*24*time.Hour, false, zerolog.Nop())

	r := gin.New()
	auth := r.Group("/api/auth")
	{
		auth.POST("/send-otp", h.SendOTP)
		auth.POST("/resend-otp", h.ResendOTP)
		auth.POST("/verify-otp", h.VerifyOTP)
		auth.POST("/check-user-exists", h.CheckUserExists)
		auth.POST("/refresh-token", h.RefreshToken)
		auth.POST("/logout", h.Logout)
	}

	return &handlerFixture{router: r, fw: fw, sessions: sessions, throttle: throttle, flows: flows}
}

func (f *handlerFixture) post(path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func cookieByName(w *httptest.ResponseRecorder, name string) *http.Cookie {
	res := http.Response{Header: w.Header()}
	for _, ck := range res.Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func TestSendOTP_MissingPhone(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.post("/api/auth/send-otp", `{"isLogin":true}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if len(f.fw.Calls()) != 0 {
		t.Error("invalid request must not reach the upstream")
	}
}

func TestSendOTP_LoginUnknownPhone(t *testing.T) {
	f := newHandlerFixture(t)
	f.fw.PostFunc = func(ctx context.Context, path string, body map[string]any) (*domain.ForwardResult, error) {
		return &domain.ForwardResult{
			StatusCode: 200,
			Success:    true,
			Data:       json.RawMessage(`{"exists":false}`),
		}, nil
	}

	w := f.post("/api/auth/send-otp", `{"phone":"98765 43210","isLogin":true}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Success bool   `json:"success"`
		Exists  bool   `json:"exists"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	if body.Success || body.Exists {
		t.Errorf("expected success=false exists=false, got %+v", body)
	}
	if body.Message != "User not registered. Please sign up first." {
		t.Errorf("unexpected message: %q", body.Message)
	}
	if len(f.fw.CallsTo("/auth/send-otp")) != 0 {
		t.Error("unknown phone must not trigger a send")
	}
}

func TestVerifyOTP_Success(t *testing.T) {
	f := newHandlerFixture(t)

	upstreamBody := `{"success":true,"data":{"accessToken":"acc-1","refreshToken":"ref-1","user":{"id":"u-9","phone":"9876543210","role":"user"}}}`
	f.fw.PostFunc = func(ctx context.Context, path string, body map[string]any) (*domain.ForwardResult, error) {
		return &domain.ForwardResult{
			StatusCode: 200,
			Success:    true,
			Data:       json.RawMessage(`{"accessToken":"acc-1","refreshToken":"ref-1","user":{"id":"u-9","phone":"9876543210","role":"user"}}`),
			Body:       json.RawMessage(upstreamBody),
		}, nil
	}

	w := f.post("/api/auth/verify-otp", `{"phone":"+91 98765-43210","otp":"123456"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != upstreamBody {
		t.Errorf("upstream envelope must be relayed verbatim, got %s", w.Body.String())
	}

	// Upstream sees the digit-stripped phone exactly once.
	calls := f.fw.CallsTo("/auth/verify-otp")
	if len(calls) != 1 {
		t.Fatalf("expected one verify call, got %d", len(calls))
	}
	if calls[0].Body["phone"] != "919876543210" || calls[0].Body["otp"] != "123456" {
		t.Errorf("unexpected verify body: %v", calls[0].Body)
	}

	for _, name := range []string{"token", "accessToken", "refreshToken", "pm_session"} {
		ck := cookieByName(w, name)
		if ck == nil {
			t.Errorf("cookie %s not set", name)
			continue
		}
		if !ck.HttpOnly {
			t.Errorf("cookie %s must be HTTP-only", name)
		}
		if name == "token" && ck.Value != "acc-1" {
			t.Errorf("token cookie must carry the access token, got %q", ck.Value)
		}
	}

	if f.sessions.StoredCount() != 1 {
		t.Errorf("expected one stored session, got %d", f.sessions.StoredCount())
	}
}

func TestVerifyOTP_ShortCode(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.post("/api/auth/verify-otp", `{"phone":"9876543210","otp":"1234"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "6 digits") {
		t.Errorf("expected length message, got %s", w.Body.String())
	}
	if len(f.fw.Calls()) != 0 {
		t.Error("short code must never reach the upstream")
	}
}

func TestVerifyOTP_AlreadyInFlight(t *testing.T) {
	f := newHandlerFixture(t)

	if err := f.flows.Begin("9876543210").BeginVerify("123456", 6); err != nil {
		t.Fatalf("first verify must start: %v", err)
	}

	w := f.post("/api/auth/verify-otp", `{"phone":"9876543210","otp":"123456"}`)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "already in progress") {
		t.Errorf("expected an honest rejection message, got %s", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "Failed to connect") {
		t.Error("a local rejection must not blame the upstream connection")
	}
	if len(f.fw.Calls()) != 0 {
		t.Error("in-flight rejection must never reach the upstream")
	}
}

func TestVerifyOTP_UpstreamDown(t *testing.T) {
	f := newHandlerFixture(t)
	f.fw.PostFunc = func(ctx context.Context, path string, body map[string]any) (*domain.ForwardResult, error) {
		return nil, domain.ErrUpstreamUnavailable
	}

	w := f.post("/api/auth/verify-otp", `{"phone":"9876543210","otp":"123456"}`)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Failed to connect to authentication service") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestVerifyOTP_UpstreamRejectionRelayed(t *testing.T) {
	f := newHandlerFixture(t)

	rejection := `{"success":false,"message":"Invalid OTP"}`
	f.fw.PostFunc = func(ctx context.Context, path string, body map[string]any) (*domain.ForwardResult, error) {
		return &domain.ForwardResult{
			StatusCode: 400,
			Success:    false,
			Message:    "Invalid OTP",
			Body:       json.RawMessage(rejection),
		}, nil
	}

	w := f.post("/api/auth/verify-otp", `{"phone":"9876543210","otp":"999999"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected relayed 400, got %d", w.Code)
	}
	if w.Body.String() != rejection {
		t.Errorf("rejection must be relayed verbatim, got %s", w.Body.String())
	}
	if cookieByName(w, "token") != nil {
		t.Error("no cookies on failed verification")
	}
}

func TestResendOTP_Throttled(t *testing.T) {
	f := newHandlerFixture(t)
	f.throttle.RemainingFunc = func(ctx context.Context, phone string) (int64, error) {
		return 17, nil
	}

	w := f.post("/api/auth/resend-otp", `{"phone":"9876543210"}`)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}

	var body struct {
		Wait int64 `json:"wait"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	if body.Wait != 17 {
		t.Errorf("expected wait 17, got %d", body.Wait)
	}
	if len(f.fw.Calls()) != 0 {
		t.Error("throttled resend must be a no-op upstream")
	}
}

func TestRefreshToken_NoTokenIsSilent(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.post("/api/auth/refresh-token", `{}`)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if len(f.fw.Calls()) != 0 {
		t.Error("no refresh token means no upstream call")
	}
}

func TestLogout_AlwaysSucceedsAndClearsCookies(t *testing.T) {
	f := newHandlerFixture(t)

	f.sessions.Save(context.Background(), &domain.Session{
		ID:          "sess-1",
		AccessToken: "acc-1",
		ExpiresAt:   time.Now().Add(time.Hour),
	})
	f.fw.PostFunc = func(ctx context.Context, path string, body map[string]any) (*domain.ForwardResult, error) {
		return nil, domain.ErrUpstreamUnavailable
	}

	w := f.post("/api/auth/logout", `{}`, &http.Cookie{Name: "pm_session", Value: "sess-1"})

	if w.Code != http.StatusOK {
		t.Fatalf("logout must always return 200, got %d", w.Code)
	}
	if f.sessions.StoredCount() != 0 {
		t.Error("stored session must be destroyed despite the upstream failure")
	}
	for _, name := range []string{"token", "accessToken", "refreshToken", "pm_session"} {
		ck := cookieByName(w, name)
		if ck == nil {
			t.Errorf("cookie %s not cleared", name)
			continue
		}
		if ck.MaxAge >= 0 && ck.Value != "" {
			t.Errorf("cookie %s should be expired, got MaxAge=%d value=%q", name, ck.MaxAge, ck.Value)
		}
	}
}
