package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/you/tradegate/domain"
)

func TestClient_Post_RelaysStatusAndEnvelope(t *testing.T) {
	tests := []struct {
		name            string
		upstreamStatus  int
		upstreamBody    string
		expectedSuccess bool
		expectedMessage string
	}{
		{
			name:            "success envelope",
			upstreamStatus:  http.StatusOK,
			upstreamBody:    `{"success":true,"message":"OTP sent successfully","data":{"expiresIn":300}}`,
			expectedSuccess: true,
			expectedMessage: "OTP sent successfully",
		},
		{
			name:            "upstream rejection relayed as-is",
			upstreamStatus:  http.StatusUnauthorized,
			upstreamBody:    `{"success":false,"message":"Invalid OTP"}`,
			expectedSuccess: false,
			expectedMessage: "Invalid OTP",
		},
		{
			name:            "non-envelope payload falls back to status",
			upstreamStatus:  http.StatusOK,
			upstreamBody:    `{"exists":true}`,
			expectedSuccess: true,
			expectedMessage: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.upstreamStatus)
				w.Write([]byte(tt.upstreamBody))
			}))
			defer srv.Close()

			client := NewClient(srv.URL, 5*time.Second, zerolog.Nop())
			result, err := client.Post(context.Background(), "/auth/send-otp", map[string]any{"phone": "9876543210"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.StatusCode != tt.upstreamStatus {
				t.Errorf("expected status %d, got %d", tt.upstreamStatus, result.StatusCode)
			}
			if result.Success != tt.expectedSuccess {
				t.Errorf("expected success %v, got %v", tt.expectedSuccess, result.Success)
			}
			if result.Message != tt.expectedMessage {
				t.Errorf("expected message %q, got %q", tt.expectedMessage, result.Message)
			}
			if string(result.Body) != tt.upstreamBody {
				t.Errorf("body not relayed verbatim: %s", result.Body)
			}
		})
	}
}

func TestClient_Post_ForwardsBodyVerbatim(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("failed to decode forwarded body: %v", err)
		}
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zerolog.Nop())
	_, err := client.Post(context.Background(), "/auth/verify-otp", map[string]any{
		"phone": "9876543210",
		"otp":   "123456",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if received["phone"] != "9876543210" || received["otp"] != "123456" {
		t.Errorf("unexpected forwarded body: %v", received)
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewClient(srv.URL, time.Second, zerolog.Nop())
	_, err := client.Post(context.Background(), "/auth/send-otp", map[string]any{"phone": "9876543210"})
	if err == nil {
		t.Fatal("expected error for unreachable upstream")
	}
	if !Unavailable(err) {
		t.Errorf("expected unreachable class, got %v", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 20*time.Millisecond, zerolog.Nop())
	_, err := client.Get(context.Background(), "/users/me", "token")
	if !Unavailable(err) {
		t.Errorf("expected deadline to map to unreachable class, got %v", err)
	}
}

func TestClient_Get_RelaysBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer access-123" {
			t.Errorf("expected bearer header, got %q", got)
		}
		w.Write([]byte(`{"success":true,"data":{"balance":100}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zerolog.Nop())
	result, err := client.Get(context.Background(), "/wallet/balance", "access-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Rejected() {
		t.Errorf("expected success relay, got %+v", result)
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain digits", "9876543210", "9876543210"},
		{"spaces stripped", "98765 43210", "9876543210"},
		{"formatting stripped", "+91 (98765) 432-10", "919876543210"},
		{"letters stripped", "98abc765", "98765"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePhone(tt.input); got != tt.expected {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

var _ domain.UpstreamForwarder = (*Client)(nil)
