package service

import (
	"context"
	"errors"

	"github.com/eksporyuk-migrate/internal/logger"
	"github.com/eksporyuk-migrate/internal/metrics"
	"github.com/eksporyuk-migrate/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversionSyncStats 推广转化补齐统计
type ConversionSyncStats struct {
	RunID   string `json:"run_id"`
	DryRun  bool   `json:"dry_run"`
	Missing int    `json:"missing"`
	Created int    `json:"created"`
	Failed  int    `json:"failed"`
}

// ConversionSyncService 为缺失推广转化的成功交易补写转化与钱包入账
type ConversionSyncService struct {
	db           *gorm.DB
	txnRepo      *repository.GormTransactionRepository
	affiliateSvc *AffiliateService
	metrics      *metrics.Metrics
	limit        int
}

// NewConversionSyncService 创建补齐服务，limit<=0 表示不限
func NewConversionSyncService(db *gorm.DB, txnRepo *repository.GormTransactionRepository, affiliateSvc *AffiliateService, m *metrics.Metrics, limit int) *ConversionSyncService {
	return &ConversionSyncService{db: db, txnRepo: txnRepo, affiliateSvc: affiliateSvc, metrics: m, limit: limit}
}

// Run 每笔交易一个事务；没有缺失时不做任何写入
func (s *ConversionSyncService) Run(ctx context.Context, execute bool) (*ConversionSyncStats, error) {
	stats := &ConversionSyncStats{RunID: uuid.NewString(), DryRun: !execute}
	missing, err := s.txnRepo.ListMissingConversions(s.limit)
	if err != nil {
		return nil, err
	}
	stats.Missing = len(missing)
	if len(missing) == 0 {
		logger.Infow("conversion_sync_nothing_missing", "run_id", stats.RunID)
		return stats, nil
	}

	for i := range missing {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		txn := missing[i]
		var action ConversionAction
		err := s.db.Transaction(func(tx *gorm.DB) error {
			profile, err := s.affiliateSvc.EnsureProfileTx(tx, *txn.AffiliateUserID, txn.LegacyAffiliateID)
			if err != nil {
				return err
			}
			action, err = s.affiliateSvc.ApplyConversionTx(tx, ConversionInput{
				Transaction: &txn,
				Profile:     profile,
				Desired:     txn.CommissionAmount.Rupiah(),
				RunID:       stats.RunID,
			})
			if err != nil {
				return err
			}
			if !execute {
				return errDryRunRollback
			}
			return nil
		})
		if err != nil && !errors.Is(err, errDryRunRollback) {
			stats.Failed++
			logger.Errorw("conversion_sync_failed",
				"run_id", stats.RunID,
				"legacy_order_id", txn.LegacyOrderID,
				"error", err,
			)
			continue
		}
		if action.Changed() {
			stats.Created++
			s.metrics.RecordConversion(string(action))
		}
	}
	logger.Infow("conversion_sync_finished",
		"run_id", stats.RunID,
		"dry_run", stats.DryRun,
		"missing", stats.Missing,
		"created", stats.Created,
		"failed", stats.Failed,
	)
	return stats, nil
}
