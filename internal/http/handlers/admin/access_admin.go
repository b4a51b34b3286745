package admin

import (
	handlershared "github.com/eksporyuk-migrate/internal/http/handlers/shared"
	"github.com/eksporyuk-migrate/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetAccess 当前管理员的角色与权限
func (h *Handler) GetAccess(c *gin.Context) {
	if h.Authz == nil {
		response.Error(c, response.CodeUnavailable, "authorization disabled")
		return
	}
	access, err := h.Authz.GetAdminAccess(handlershared.AdminSubject(c))
	if err != nil {
		respondError(c, response.CodeInternal, "load admin access failed", err)
		return
	}
	response.Success(c, access)
}
