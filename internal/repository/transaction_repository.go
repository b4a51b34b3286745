package repository

import (
	"errors"

	"github.com/eksporyuk-migrate/internal/constants"
	"github.com/eksporyuk-migrate/internal/models"

	"gorm.io/gorm"
)

// TransactionRepository 迁移交易数据访问接口
type TransactionRepository interface {
	GetByLegacyOrderID(legacyOrderID int64) (*models.Transaction, error)
	GetByLegacyOrderIDs(legacyOrderIDs []int64) (map[int64]*models.Transaction, error)
	Create(txn *models.Transaction) error
	Update(txn *models.Transaction) error
	ListMissingConversions(limit int) ([]models.Transaction, error)
	MaxLegacyOrderID() (int64, error)
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) *GormTransactionRepository
}

// GormTransactionRepository GORM 交易仓储
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository 创建交易仓储
func NewTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormTransactionRepository) WithTx(tx *gorm.DB) *GormTransactionRepository {
	if tx == nil {
		return r
	}
	return &GormTransactionRepository{db: tx}
}

// Transaction 执行事务
func (r *GormTransactionRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByLegacyOrderID 按旧系统订单ID获取交易
func (r *GormTransactionRepository) GetByLegacyOrderID(legacyOrderID int64) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.Where("legacy_order_id = ?", legacyOrderID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// GetByLegacyOrderIDs 批量获取交易，按旧系统订单ID索引
func (r *GormTransactionRepository) GetByLegacyOrderIDs(legacyOrderIDs []int64) (map[int64]*models.Transaction, error) {
	result := make(map[int64]*models.Transaction, len(legacyOrderIDs))
	for _, chunk := range chunkInt64(legacyOrderIDs, sqliteMaxInParams) {
		var rows []models.Transaction
		if err := r.db.Where("legacy_order_id IN ?", chunk).Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			row := rows[i]
			result[row.LegacyOrderID] = &row
		}
	}
	return result, nil
}

// Create 创建交易
func (r *GormTransactionRepository) Create(txn *models.Transaction) error {
	return r.db.Create(txn).Error
}

// Update 更新交易
func (r *GormTransactionRepository) Update(txn *models.Transaction) error {
	return r.db.Save(txn).Error
}

// ListMissingConversions 查询应有推广转化却缺失的成功交易
func (r *GormTransactionRepository) ListMissingConversions(limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	query := r.db.Model(&models.Transaction{}).
		Select("transactions.*").
		Joins("LEFT JOIN affiliate_conversions ON affiliate_conversions.transaction_id = transactions.id").
		Where("transactions.status = ?", constants.TransactionStatusSuccess).
		Where("transactions.affiliate_user_id IS NOT NULL").
		Where("transactions.commission_amount > 0").
		Where("affiliate_conversions.id IS NULL").
		Order("transactions.legacy_order_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MaxLegacyOrderID 已导入的最大旧系统订单ID
func (r *GormTransactionRepository) MaxLegacyOrderID() (int64, error) {
	var maxID int64
	if err := r.db.Model(&models.Transaction{}).
		Select("COALESCE(MAX(legacy_order_id), 0)").
		Scan(&maxID).Error; err != nil {
		return 0, err
	}
	return maxID, nil
}
