package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/you/tradegate/internal/http/middleware"
)

// GateHandlers exposes the gate's verdict as an endpoint, so clients can ask
// "may I?" before navigating instead of discovering a redirect mid-request.
type GateHandlers struct {
	gate      *middleware.SessionGate
	loginPath string
}

// NewGateHandlers creates new gate handlers.
func NewGateHandlers(gate *middleware.SessionGate, loginPath string) *GateHandlers {
	return &GateHandlers{gate: gate, loginPath: loginPath}
}

// Check handles POST /api/gate/check. The response always carries the login
// path so a redirected client knows where to go.
func (h *GateHandlers) Check(c *gin.Context) {
	decision := h.gate.Decide(c)

	body := gin.H{"decision": decision, "loginPath": h.loginPath}
	if userID, ok := c.Get("user_id"); ok {
		body["userId"] = userID
	}
	c.JSON(http.StatusOK, body)
}
