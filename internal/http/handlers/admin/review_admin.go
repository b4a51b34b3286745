package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/eksporyuk-migrate/internal/http/handlers/shared"
	"github.com/eksporyuk-migrate/internal/http/response"
	"github.com/eksporyuk-migrate/internal/repository"

	"github.com/gin-gonic/gin"
)

// ResolveReviewRequest 处理复核项请求
type ResolveReviewRequest struct {
	Note string `json:"note" binding:"required,max=500"`
}

// ListReviews 复核队列
func (h *Handler) ListReviews(c *gin.Context) {
	page, pageSize := pageParams(c)
	items, total, err := h.ReviewService.List(repository.ReviewListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		Kind:     strings.TrimSpace(c.Query("kind")),
		Keyword:  strings.TrimSpace(c.Query("keyword")),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, items, response.NewPagination(page, pageSize, total))
}

// ResolveReview 标记复核项已处理
func (h *Handler) ResolveReview(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid review id", err)
		return
	}
	var req ResolveReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "note is required", err)
		return
	}
	item, err := h.ReviewService.Resolve(uint(id), handlershared.AdminSubject(c), req.Note)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("admin_review_resolved", "review_id", item.ID, "kind", item.Kind, "legacy_order_id", item.LegacyOrderID)
	response.Success(c, item)
}
