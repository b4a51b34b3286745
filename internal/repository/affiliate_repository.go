package repository

import (
	"errors"

	"github.com/eksporyuk-migrate/internal/constants"
	"github.com/eksporyuk-migrate/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AffiliateRepository 推广人与推广转化数据访问接口
type AffiliateRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) AffiliateRepository

	GetProfileByID(id uint) (*models.AffiliateProfile, error)
	GetProfileByUserID(userID uint) (*models.AffiliateProfile, error)
	GetProfileByLegacyID(legacyAffiliateID int64) (*models.AffiliateProfile, error)
	GetProfileByCode(code string) (*models.AffiliateProfile, error)
	CreateProfile(profile *models.AffiliateProfile) error
	UpdateProfile(profile *models.AffiliateProfile) error
	AddProfileEarnings(profileID uint, delta decimal.Decimal, conversionsDelta int) error

	GetConversionByTransactionID(transactionID uint) (*models.AffiliateConversion, error)
	GetConversionsByTransactionIDs(transactionIDs []uint) (map[uint]*models.AffiliateConversion, error)
	CreateConversion(conversion *models.AffiliateConversion) error
	UpdateConversion(conversion *models.AffiliateConversion) error
	CountConversions() (int64, error)
}

// GormAffiliateRepository GORM 推广仓储
type GormAffiliateRepository struct {
	db *gorm.DB
}

// NewAffiliateRepository 创建推广仓储
func NewAffiliateRepository(db *gorm.DB) *GormAffiliateRepository {
	return &GormAffiliateRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAffiliateRepository) WithTx(tx *gorm.DB) AffiliateRepository {
	if tx == nil {
		return r
	}
	return &GormAffiliateRepository{db: tx}
}

// Transaction 执行事务
func (r *GormAffiliateRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetProfileByID 按ID获取推广档案
func (r *GormAffiliateRepository) GetProfileByID(id uint) (*models.AffiliateProfile, error) {
	if id == 0 {
		return nil, nil
	}
	return r.firstProfile(r.db.Where("id = ?", id))
}

// GetProfileByUserID 按用户ID获取推广档案
func (r *GormAffiliateRepository) GetProfileByUserID(userID uint) (*models.AffiliateProfile, error) {
	if userID == 0 {
		return nil, nil
	}
	return r.firstProfile(r.db.Where("user_id = ?", userID))
}

// GetProfileByLegacyID 按旧系统推广人ID获取推广档案
func (r *GormAffiliateRepository) GetProfileByLegacyID(legacyAffiliateID int64) (*models.AffiliateProfile, error) {
	if legacyAffiliateID <= 0 {
		return nil, nil
	}
	return r.firstProfile(r.db.Where("legacy_affiliate_id = ?", legacyAffiliateID))
}

// GetProfileByCode 按推广码获取推广档案
func (r *GormAffiliateRepository) GetProfileByCode(code string) (*models.AffiliateProfile, error) {
	if code == "" {
		return nil, nil
	}
	return r.firstProfile(r.db.Where("affiliate_code = ?", code))
}

func (r *GormAffiliateRepository) firstProfile(query *gorm.DB) (*models.AffiliateProfile, error) {
	var profile models.AffiliateProfile
	if err := query.First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// CreateProfile 创建推广档案
func (r *GormAffiliateRepository) CreateProfile(profile *models.AffiliateProfile) error {
	return r.db.Omit(clause.Associations).Create(profile).Error
}

// UpdateProfile 更新推广档案
func (r *GormAffiliateRepository) UpdateProfile(profile *models.AffiliateProfile) error {
	return r.db.Omit(clause.Associations).Save(profile).Error
}

// AddProfileEarnings 累加推广档案的佣金与转化数
func (r *GormAffiliateRepository) AddProfileEarnings(profileID uint, delta decimal.Decimal, conversionsDelta int) error {
	if profileID == 0 {
		return nil
	}
	return r.db.Model(&models.AffiliateProfile{}).
		Where("id = ?", profileID).
		Updates(map[string]interface{}{
			"total_earnings":    gorm.Expr("total_earnings + ?", delta.Round(2).String()),
			"total_conversions": gorm.Expr("total_conversions + ?", conversionsDelta),
		}).Error
}

// GetConversionByTransactionID 按交易获取推广转化
func (r *GormAffiliateRepository) GetConversionByTransactionID(transactionID uint) (*models.AffiliateConversion, error) {
	if transactionID == 0 {
		return nil, nil
	}
	var conversion models.AffiliateConversion
	if err := r.db.Where("transaction_id = ?", transactionID).First(&conversion).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conversion, nil
}

// GetConversionsByTransactionIDs 批量获取推广转化，按交易ID索引
func (r *GormAffiliateRepository) GetConversionsByTransactionIDs(transactionIDs []uint) (map[uint]*models.AffiliateConversion, error) {
	result := make(map[uint]*models.AffiliateConversion, len(transactionIDs))
	for start := 0; start < len(transactionIDs); start += sqliteMaxInParams {
		end := start + sqliteMaxInParams
		if end > len(transactionIDs) {
			end = len(transactionIDs)
		}
		var rows []models.AffiliateConversion
		if err := r.db.Where("transaction_id IN ?", transactionIDs[start:end]).Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			row := rows[i]
			result[row.TransactionID] = &row
		}
	}
	return result, nil
}

// CreateConversion 创建推广转化（transaction_id 唯一）
func (r *GormAffiliateRepository) CreateConversion(conversion *models.AffiliateConversion) error {
	return r.db.Omit(clause.Associations).Create(conversion).Error
}

// UpdateConversion 更新推广转化
func (r *GormAffiliateRepository) UpdateConversion(conversion *models.AffiliateConversion) error {
	return r.db.Omit(clause.Associations).Save(conversion).Error
}

// CountConversions 有效推广转化数
func (r *GormAffiliateRepository) CountConversions() (int64, error) {
	var total int64
	if err := r.db.Model(&models.AffiliateConversion{}).
		Where("status = ?", constants.ConversionStatusCompleted).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
