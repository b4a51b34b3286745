package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eksporyuk-migrate/internal/http/response"
	"github.com/eksporyuk-migrate/internal/service"

	"github.com/gin-gonic/gin"
)

const reconcileTimeout = 5 * time.Minute

// RunReconcileRequest 同步对账请求
type RunReconcileRequest struct {
	ExpectedFile string `json:"expected_file"`
	Source       string `json:"source"` // 提供时附带推广人差异
	Format       string `json:"format" binding:"omitempty,oneof=json tsv xlsx"`
	WriteReport  bool   `json:"write_report"`
}

// RunReconcile 同步执行对账并返回报告
func (h *Handler) RunReconcile(c *gin.Context) {
	var req RunReconcileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "invalid request body", err)
			return
		}
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), reconcileTimeout)
	defer cancel()

	report, path, err := h.Pipeline.Reconcile(ctx, service.ReconcileRequest{
		ExpectedFile: req.ExpectedFile,
		Source:       service.SourceRequest{Source: req.Source, Format: req.Format},
		SkipReport:   !req.WriteReport,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"report": report, "report_path": path})
}

// GetLastReport 最近一次对账报告
func (h *Handler) GetLastReport(c *gin.Context) {
	report, ok := h.lastReport(c)
	if !ok {
		return
	}
	response.Success(c, report)
}

// ExportLastReport 下载最近一次对账报告
func (h *Handler) ExportLastReport(c *gin.Context) {
	report, ok := h.lastReport(c)
	if !ok {
		return
	}
	filename := fmt.Sprintf("reconcile-%s.xlsx", report.GeneratedAt.Format("20060102-150405"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := h.ReportExporter.Write(c.Writer, report); err != nil {
		requestLog(c).Errorw("admin_report_export_failed", "error", err)
	}
}

func (h *Handler) lastReport(c *gin.Context) (*service.Report, bool) {
	report, err := h.ReconcileService.LastReport(c.Request.Context())
	if errors.Is(err, service.ErrNotFound) {
		response.NotFound(c, "no reconciliation report yet")
		return nil, false
	}
	if err != nil {
		respondServiceError(c, err)
		return nil, false
	}
	return report, true
}
