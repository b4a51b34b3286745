package models

import "time"

// AffiliateConversion 推广转化记录（每笔交易最多一条）
type AffiliateConversion struct {
	ID                 uint      `gorm:"primarykey" json:"id"`                                                  // 主键
	AffiliateProfileID uint      `gorm:"not null;index" json:"affiliate_profile_id"`                            // 推广人档案
	TransactionID      uint      `gorm:"not null;uniqueIndex" json:"transaction_id"`                            // 交易ID
	LegacyOrderID      int64     `gorm:"not null;index" json:"legacy_order_id"`                                 // 旧系统订单ID
	BaseAmount         Money     `gorm:"type:decimal(20,2);not null;default:0" json:"base_amount"`              // 订单金额
	CommissionAmount   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"commission_amount"`        // 佣金金额
	Status             string    `gorm:"type:varchar(32);not null;index" json:"status"`                         // 状态
	CreatedAt          time.Time `gorm:"index" json:"created_at"`                                               // 创建时间
	UpdatedAt          time.Time `gorm:"index" json:"updated_at"`                                               // 更新时间

	AffiliateProfile AffiliateProfile `gorm:"foreignKey:AffiliateProfileID" json:"affiliate_profile,omitempty"`
	Transaction      Transaction      `gorm:"foreignKey:TransactionID" json:"transaction,omitempty"`
}

// TableName 指定表名
func (AffiliateConversion) TableName() string {
	return "affiliate_conversions"
}
