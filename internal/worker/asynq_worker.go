package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/eksporyuk-migrate/internal/logger"
	"github.com/eksporyuk-migrate/internal/provider"
	"github.com/eksporyuk-migrate/internal/queue"
	"github.com/eksporyuk-migrate/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskImportRun, c.handleImport)
	mux.HandleFunc(queue.TaskSyncConversions, c.handleSyncConversions)
	mux.HandleFunc(queue.TaskReconcile, c.handleReconcile)
}

func (c *Consumer) handleImport(ctx context.Context, task *asynq.Task) error {
	var payload queue.ImportPayload
	if err := queue.DecodePayload(task, &payload); err != nil {
		logger.Warnw("worker_import_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	result, err := c.Pipeline.RunImport(ctx, service.SourceRequest{
		Source:         payload.Source,
		Format:         payload.Format,
		UsersFile:      payload.UsersFile,
		AffiliatesFile: payload.AffiliatesFile,
	}, payload.Execute, payload.RunID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrImportLocked):
			// 锁被占用时交给 asynq 重试
			logger.Warnw("worker_import_locked", "run_id", payload.RunID)
			return err
		case errors.Is(err, service.ErrImportSourceEmpty), errors.Is(err, service.ErrInvalidInput):
			logger.Warnw("worker_import_skip_invalid_source", "run_id", payload.RunID, "error", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		default:
			logger.Errorw("worker_import_failed", "run_id", payload.RunID, "error", err)
			return err
		}
	}
	if result.Orders != nil {
		logger.Infow("worker_import_done",
			"run_id", result.Orders.RunID,
			"dry_run", result.Orders.DryRun,
			"created", result.Orders.Created,
			"updated", result.Orders.Updated,
			"failed", result.Orders.Failed,
		)
	}
	return nil
}

func (c *Consumer) handleSyncConversions(ctx context.Context, task *asynq.Task) error {
	var payload queue.SyncConversionsPayload
	if err := queue.DecodePayload(task, &payload); err != nil {
		logger.Warnw("worker_sync_conversions_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	stats, err := c.Pipeline.SyncConversions(ctx, payload.Execute)
	if err != nil {
		logger.Errorw("worker_sync_conversions_failed", "error", err)
		return err
	}
	logger.Infow("worker_sync_conversions_done", "run_id", stats.RunID, "created", stats.Created, "failed", stats.Failed)
	return nil
}

func (c *Consumer) handleReconcile(ctx context.Context, task *asynq.Task) error {
	var payload queue.ReconcilePayload
	if err := queue.DecodePayload(task, &payload); err != nil {
		logger.Warnw("worker_reconcile_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return c.reconcile(ctx, payload)
}

func (c *Consumer) reconcile(ctx context.Context, payload queue.ReconcilePayload) error {
	report, path, err := c.Pipeline.Reconcile(ctx, service.ReconcileRequest{
		ExpectedFile: payload.ExpectedFile,
		ReportPath:   payload.ReportPath,
	})
	if err != nil {
		if errors.Is(err, service.ErrExpectedTotalsInvalid) {
			logger.Warnw("worker_reconcile_skip_invalid_expected", "error", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		logger.Errorw("worker_reconcile_failed", "error", err)
		return err
	}
	if !report.Passed {
		logger.Warnw("worker_reconcile_not_passed",
			"discrepancies", len(report.Discrepancies),
			"affiliate_gaps", len(report.AffiliateGaps),
			"report_path", path,
		)
	}
	return nil
}
