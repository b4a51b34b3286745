package models

import "time"

// Membership 会员等级目录（每个等级一行）
type Membership struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	Tier         string    `gorm:"type:varchar(32);not null;uniqueIndex" json:"tier"`
	Name         string    `gorm:"type:varchar(120);not null" json:"name"`
	DurationDays int       `gorm:"not null;default:0" json:"duration_days"` // 0 表示终身
	Priority     int       `gorm:"not null;default:0" json:"priority"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Membership) TableName() string {
	return "memberships"
}

// UserMembership 用户当前会员（每个用户最多一行，升级时原地更新）
type UserMembership struct {
	ID            uint       `gorm:"primarykey" json:"id"`
	UserID        uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	MembershipID  uint       `gorm:"not null;index" json:"membership_id"`
	Tier          string     `gorm:"type:varchar(32);not null;index" json:"tier"`
	Status        string     `gorm:"type:varchar(20);not null;index" json:"status"`
	StartDate     time.Time  `gorm:"not null" json:"start_date"`
	EndDate       *time.Time `json:"end_date"` // 终身会员为空
	TransactionID *uint      `gorm:"index" json:"transaction_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Membership Membership `gorm:"foreignKey:MembershipID" json:"membership,omitempty"`
}

// TableName 指定表名
func (UserMembership) TableName() string {
	return "user_memberships"
}
