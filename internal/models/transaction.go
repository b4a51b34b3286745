package models

import "time"

// Transaction 由旧系统订单迁移得到的交易（legacy_order_id 为自然键）
type Transaction struct {
	ID                  uint      `gorm:"primarykey" json:"id"`                                       // 主键
	LegacyOrderID       int64     `gorm:"not null;uniqueIndex" json:"legacy_order_id"`                // 旧系统订单ID
	UserID              uint      `gorm:"not null;index" json:"user_id"`                              // 买家
	Type                string    `gorm:"type:varchar(20);not null" json:"type"`                      // MEMBERSHIP / PRODUCT
	Status              string    `gorm:"type:varchar(20);not null;index" json:"status"`              // SUCCESS / FAILED / PENDING / REFUNDED
	LegacyStatus        string    `gorm:"type:varchar(32)" json:"legacy_status"`                      // 旧系统状态
	Amount              Money     `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`        // 订单金额
	Currency            string    `gorm:"type:varchar(8);not null;default:'IDR'" json:"currency"`     // 币种
	LegacyProductID     int64     `gorm:"index" json:"legacy_product_id"`                             // 旧系统商品ID
	ProductName         string    `gorm:"type:varchar(255)" json:"product_name"`                      // 商品名称
	MembershipTier      string    `gorm:"type:varchar(32);index" json:"membership_tier"`              // 推断的会员等级
	ClassificationVia   string    `gorm:"type:varchar(32)" json:"classification_via"`                 // 分类命中规则
	AffiliateUserID     *uint     `gorm:"index" json:"affiliate_user_id,omitempty"`                   // 推广人
	LegacyAffiliateID   int64     `gorm:"index" json:"legacy_affiliate_id"`                           // 旧系统推广人ID
	CommissionAmount    Money     `gorm:"type:decimal(20,2);not null;default:0" json:"commission_amount"` // 计算佣金
	CommissionVia       string    `gorm:"type:varchar(32)" json:"commission_via"`                     // 佣金命中规则
	CommissionEstimated bool      `gorm:"not null;default:false" json:"commission_estimated"`         // 是否为估算
	RulesVersion        string    `gorm:"type:varchar(64);index" json:"rules_version"`                // 规则版本
	ImportRunID         string    `gorm:"type:varchar(64);index" json:"import_run_id"`                // 最后写入批次
	OccurredAt          time.Time `gorm:"index" json:"occurred_at"`                                   // 旧系统下单时间
	CreatedAt           time.Time `gorm:"index" json:"created_at"`                                    // 创建时间
	UpdatedAt           time.Time `gorm:"index" json:"updated_at"`                                    // 更新时间
}

// TableName 指定表名
func (Transaction) TableName() string {
	return "transactions"
}
