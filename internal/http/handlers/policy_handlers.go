package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/you/tradegate/domain"
)

// PolicyHandlers manages the authorization policies at runtime. Roles use
// the role_ prefix convention, e.g. role_admin.
type PolicyHandlers struct {
	policies domain.PolicyService
}

// NewPolicyHandlers creates new policy handlers.
func NewPolicyHandlers(policies domain.PolicyService) *PolicyHandlers {
	return &PolicyHandlers{policies: policies}
}

type policyReq struct {
	Sub string `json:"sub" binding:"required"`
	Obj string `json:"obj" binding:"required"`
	Act string `json:"act" binding:"required"`
}

// List handles GET /api/admin/policies.
func (h *PolicyHandlers) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": h.policies.GetPolicies()})
}

// Add handles POST /api/admin/policies.
func (h *PolicyHandlers) Add(c *gin.Context) {
	var r policyReq
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if err := h.policies.AddPolicy(r.Sub, r.Obj, r.Act); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "not added"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Remove handles DELETE /api/admin/policies.
func (h *PolicyHandlers) Remove(c *gin.Context) {
	var r policyReq
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if err := h.policies.RemovePolicy(r.Sub, r.Obj, r.Act); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "not removed"})
		return
	}
	c.Status(http.StatusNoContent)
}
