package models

import (
	"time"

	"gorm.io/gorm"
)

// User 新平台用户
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`                            // 主键
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`               // 邮箱（小写）
	PasswordHash string         `gorm:"not null" json:"-"`                               // 占位密码哈希
	DisplayName  string         `gorm:"default:''" json:"display_name"`                  // 昵称
	Username     string         `gorm:"type:varchar(100);default:''" json:"username"`    // 旧系统登录名
	Phone        string         `gorm:"type:varchar(32);default:''" json:"phone"`        // 电话
	Role         string         `gorm:"type:varchar(32);default:'MEMBER_FREE'" json:"role"` // 会员角色
	Status       string         `gorm:"default:'active'" json:"status"`                  // 账号状态
	LegacyUserID *int64         `gorm:"uniqueIndex" json:"legacy_user_id,omitempty"`     // 旧系统用户ID
	RegisteredAt *time.Time     `json:"registered_at,omitempty"`                         // 旧系统注册时间
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`                         // 创建时间
	UpdatedAt    time.Time      `gorm:"index" json:"updated_at"`                         // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                                  // 软删除时间
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
