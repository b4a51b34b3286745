package repository

import (
	"github.com/eksporyuk-migrate/internal/constants"
	"github.com/eksporyuk-migrate/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReportRepository 对账聚合数据访问接口
type ReportRepository interface {
	Totals() (ReportTotals, error)
	MembershipCounts() (map[string]int64, error)
	AffiliateTotals() ([]AffiliateTotal, error)
	InvariantCounts() (InvariantCounts, error)
}

// GormReportRepository GORM 对账聚合仓储
type GormReportRepository struct {
	db *gorm.DB
}

// NewReportRepository 创建对账聚合仓储
func NewReportRepository(db *gorm.DB) *GormReportRepository {
	return &GormReportRepository{db: db}
}

type transactionTotalsRow struct {
	TransactionCount int64
	SuccessCount     int64
	Revenue          decimal.Decimal
	CommissionTotal  decimal.Decimal
}

type conversionTotalsRow struct {
	ConversionCount int64
	ConversionTotal decimal.Decimal
}

// Totals 交易、成功交易、营收、佣金与转化聚合
func (r *GormReportRepository) Totals() (ReportTotals, error) {
	var txnRow transactionTotalsRow
	if err := r.db.Model(&models.Transaction{}).
		Select(`COUNT(*) AS transaction_count,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS success_count,
			COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS revenue,
			COALESCE(SUM(CASE WHEN status = ? THEN commission_amount ELSE 0 END), 0) AS commission_total`,
			constants.TransactionStatusSuccess,
			constants.TransactionStatusSuccess,
			constants.TransactionStatusSuccess,
		).
		Scan(&txnRow).Error; err != nil {
		return ReportTotals{}, err
	}

	var convRow conversionTotalsRow
	if err := r.db.Model(&models.AffiliateConversion{}).
		Select("COUNT(*) AS conversion_count, COALESCE(SUM(commission_amount), 0) AS conversion_total").
		Where("status = ?", constants.ConversionStatusCompleted).
		Scan(&convRow).Error; err != nil {
		return ReportTotals{}, err
	}

	var userCount int64
	if err := r.db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		return ReportTotals{}, err
	}

	return ReportTotals{
		TransactionCount: txnRow.TransactionCount,
		SuccessCount:     txnRow.SuccessCount,
		Revenue:          txnRow.Revenue,
		CommissionTotal:  txnRow.CommissionTotal,
		ConversionCount:  convRow.ConversionCount,
		ConversionTotal:  convRow.ConversionTotal,
		UserCount:        userCount,
	}, nil
}

// MembershipCounts 按等级统计有效会员
func (r *GormReportRepository) MembershipCounts() (map[string]int64, error) {
	return NewMembershipRepository(r.db).CountActiveByTier()
}

// AffiliateTotals 按推广人聚合有效转化
func (r *GormReportRepository) AffiliateTotals() ([]AffiliateTotal, error) {
	var rows []AffiliateTotal
	if err := r.db.Table("affiliate_conversions").
		Select(`affiliate_profiles.user_id AS user_id,
			COALESCE(affiliate_profiles.legacy_affiliate_id, 0) AS legacy_affiliate_id,
			users.email AS email,
			COUNT(affiliate_conversions.id) AS conversion_count,
			COALESCE(SUM(affiliate_conversions.commission_amount), 0) AS commission`).
		Joins("JOIN affiliate_profiles ON affiliate_profiles.id = affiliate_conversions.affiliate_profile_id").
		Joins("JOIN users ON users.id = affiliate_profiles.user_id").
		Where("affiliate_conversions.status = ?", constants.ConversionStatusCompleted).
		Group("affiliate_profiles.user_id, affiliate_profiles.legacy_affiliate_id, users.email").
		Order("affiliate_profiles.user_id ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// InvariantCounts 统计交易与推广转化之间的不变量违反
func (r *GormReportRepository) InvariantCounts() (InvariantCounts, error) {
	var counts InvariantCounts

	if err := r.db.Model(&models.Transaction{}).
		Joins("LEFT JOIN affiliate_conversions ON affiliate_conversions.transaction_id = transactions.id").
		Where("transactions.status = ?", constants.TransactionStatusSuccess).
		Where("transactions.affiliate_user_id IS NOT NULL").
		Where("transactions.commission_amount > 0").
		Where("affiliate_conversions.id IS NULL").
		Count(&counts.MissingConversions).Error; err != nil {
		return counts, err
	}

	if err := r.db.Model(&models.AffiliateConversion{}).
		Joins("JOIN transactions ON transactions.id = affiliate_conversions.transaction_id").
		Where("affiliate_conversions.status = ?", constants.ConversionStatusCompleted).
		Where("affiliate_conversions.commission_amount <> transactions.commission_amount").
		Count(&counts.CommissionMismatch).Error; err != nil {
		return counts, err
	}

	if err := r.db.Model(&models.AffiliateConversion{}).
		Joins("LEFT JOIN transactions ON transactions.id = affiliate_conversions.transaction_id").
		Where("transactions.id IS NULL").
		Count(&counts.OrphanConversions).Error; err != nil {
		return counts, err
	}

	if err := r.db.Model(&models.AffiliateConversion{}).
		Joins("JOIN transactions ON transactions.id = affiliate_conversions.transaction_id").
		Where("affiliate_conversions.status = ?", constants.ConversionStatusCompleted).
		Where("transactions.status <> ?", constants.TransactionStatusSuccess).
		Count(&counts.NonSuccessConverted).Error; err != nil {
		return counts, err
	}
	return counts, nil
}
