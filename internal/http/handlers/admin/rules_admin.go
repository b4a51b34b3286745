package admin

import (
	"github.com/eksporyuk-migrate/internal/http/response"
	"github.com/eksporyuk-migrate/internal/service"

	"github.com/gin-gonic/gin"
)

// GetRules 当前规则集概要
func (h *Handler) GetRules(c *gin.Context) {
	response.Success(c, gin.H{
		"version":          h.Rules.Version(),
		"default_percent":  h.Rules.DefaultPercent().String(),
		"price_collisions": h.Rules.PriceCollisions(),
	})
}

// PreviewRules 对单个订单试算分类与佣金，不写库
func (h *Handler) PreviewRules(c *gin.Context) {
	var req service.PreviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	if req.ProductName == "" && req.ProductID == 0 {
		respondServiceError(c, response.WrapError(response.CodeBadRequest, "product_name or product_id is required", service.ErrInvalidInput))
		return
	}
	result, err := service.PreviewOrder(h.Rules, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, result)
}
