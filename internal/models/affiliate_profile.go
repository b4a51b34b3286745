package models

import "time"

// AffiliateProfile 推广人档案
type AffiliateProfile struct {
	ID                uint      `gorm:"primarykey" json:"id"`                              // 主键
	UserID            uint      `gorm:"not null;uniqueIndex" json:"user_id"`               // 用户ID
	AffiliateCode     string    `gorm:"type:varchar(32);not null;uniqueIndex" json:"code"` // 推广码
	LegacyAffiliateID *int64    `gorm:"uniqueIndex" json:"legacy_affiliate_id,omitempty"`  // 旧系统推广人ID
	Status            string    `gorm:"type:varchar(20);not null;index" json:"status"`     // 状态
	TotalEarnings     Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_earnings"`
	TotalConversions  int       `gorm:"not null;default:0" json:"total_conversions"`
	CreatedAt         time.Time `gorm:"index" json:"created_at"` // 创建时间
	UpdatedAt         time.Time `gorm:"index" json:"updated_at"` // 更新时间

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"` // 用户信息
}

// TableName 指定表名
func (AffiliateProfile) TableName() string {
	return "affiliate_profiles"
}
