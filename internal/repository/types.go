package repository

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const maxPageSize = 200

// applyPagination 分页，pageSize<=0 时不分页
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if query == nil || pageSize <= 0 {
		return query
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	return query.Limit(pageSize).Offset((page - 1) * pageSize)
}

// ReviewListFilter 人工复核列表筛选
type ReviewListFilter struct {
	Page     int
	PageSize int
	Status   string
	Kind     string
	Keyword  string
}

// ImportRunListFilter 导入批次列表筛选
type ImportRunListFilter struct {
	Page     int
	PageSize int
	Status   string
	DryRun   *bool
}

// ReportTotals 迁移结果聚合
type ReportTotals struct {
	TransactionCount int64           `json:"transaction_count"`
	SuccessCount     int64           `json:"success_count"`
	Revenue          decimal.Decimal `json:"revenue"`
	CommissionTotal  decimal.Decimal `json:"commission_total"`
	ConversionCount  int64           `json:"conversion_count"`
	ConversionTotal  decimal.Decimal `json:"conversion_total"`
	UserCount        int64           `json:"user_count"`
}

// AffiliateTotal 单个推广人的佣金聚合
type AffiliateTotal struct {
	UserID            uint            `json:"user_id"`
	LegacyAffiliateID int64           `json:"legacy_affiliate_id"`
	Email             string          `json:"email"`
	ConversionCount   int64           `json:"conversion_count"`
	Commission        decimal.Decimal `json:"commission"`
}

// InvariantCounts 不变量违反计数
type InvariantCounts struct {
	MissingConversions  int64 `json:"missing_conversions"`
	CommissionMismatch  int64 `json:"commission_mismatch"`
	OrphanConversions   int64 `json:"orphan_conversions"`
	NonSuccessConverted int64 `json:"non_success_converted"`
}
