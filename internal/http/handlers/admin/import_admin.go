package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/eksporyuk-migrate/internal/http/handlers/shared"
	"github.com/eksporyuk-migrate/internal/http/response"
	"github.com/eksporyuk-migrate/internal/queue"
	"github.com/eksporyuk-migrate/internal/repository"
	"github.com/eksporyuk-migrate/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreateImportRequest 投递导入请求，文件为空时使用服务端配置
type CreateImportRequest struct {
	Source         string `json:"source"`
	Format         string `json:"format" binding:"omitempty,oneof=json tsv xlsx"`
	UsersFile      string `json:"users_file"`
	AffiliatesFile string `json:"affiliates_file"`
	Execute        bool   `json:"execute"`
}

// CreateImport 投递导入任务
func (h *Handler) CreateImport(c *gin.Context) {
	var req CreateImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	if h.Enqueuer == nil || !h.Enqueuer.Enabled() {
		respondServiceError(c, queue.ErrQueueDisabled)
		return
	}
	runID := uuid.NewString()
	taskID, err := h.Enqueuer.EnqueueImport(queue.ImportPayload{
		RunID:          runID,
		Source:         strings.TrimSpace(req.Source),
		Format:         strings.TrimSpace(req.Format),
		UsersFile:      strings.TrimSpace(req.UsersFile),
		AffiliatesFile: strings.TrimSpace(req.AffiliatesFile),
		Execute:        req.Execute,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("admin_import_enqueued",
		"run_id", runID,
		"task_id", taskID,
		"execute", req.Execute,
		"admin", handlershared.AdminSubject(c),
	)
	response.Accepted(c, gin.H{"run_id": runID, "task_id": taskID, "dry_run": !req.Execute})
}

// ListImports 导入批次列表
func (h *Handler) ListImports(c *gin.Context) {
	page, pageSize := pageParams(c)
	filter := repository.ImportRunListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
	}
	if raw := strings.TrimSpace(c.Query("dry_run")); raw != "" {
		dryRun, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "dry_run must be a boolean", err)
			return
		}
		filter.DryRun = &dryRun
	}
	runs, total, err := h.ImportRunRepo.List(filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, runs, response.NewPagination(page, pageSize, total))
}

// GetImport 导入批次详情
func (h *Handler) GetImport(c *gin.Context) {
	runID := strings.TrimSpace(c.Param("run_id"))
	run, err := h.ImportRunRepo.GetByRunID(runID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if run == nil {
		respondServiceError(c, service.ErrNotFound)
		return
	}
	response.Success(c, run)
}

// SyncConversionsRequest 推广转化补齐请求
type SyncConversionsRequest struct {
	Execute bool `json:"execute"`
}

// SyncConversions 投递推广转化补齐任务
func (h *Handler) SyncConversions(c *gin.Context) {
	var req SyncConversionsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "invalid request body", err)
			return
		}
	}
	if h.Enqueuer == nil || !h.Enqueuer.Enabled() {
		respondServiceError(c, queue.ErrQueueDisabled)
		return
	}
	taskID, err := h.Enqueuer.EnqueueSyncConversions(queue.SyncConversionsPayload{Execute: req.Execute})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("admin_sync_conversions_enqueued", "task_id", taskID, "execute", req.Execute)
	response.Accepted(c, gin.H{"task_id": taskID, "dry_run": !req.Execute})
}
