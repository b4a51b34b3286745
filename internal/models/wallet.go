package models

import "time"

// WalletAccount 用户钱包账户
type WalletAccount struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	UserID        uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Balance       Money     `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	TotalEarnings Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_earnings"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName 指定表名
func (WalletAccount) TableName() string {
	return "wallet_accounts"
}

// WalletTransaction 钱包流水（reference 唯一，重复入账会触发唯一约束）
type WalletTransaction struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	AccountID     uint      `gorm:"not null;index" json:"account_id"`
	Type          string    `gorm:"type:varchar(32);not null;index" json:"type"`
	Direction     string    `gorm:"type:varchar(8);not null" json:"direction"`
	Amount        Money     `gorm:"type:decimal(20,2);not null" json:"amount"`
	BalanceBefore Money     `gorm:"type:decimal(20,2);not null" json:"balance_before"`
	BalanceAfter  Money     `gorm:"type:decimal(20,2);not null" json:"balance_after"`
	Currency      string    `gorm:"type:varchar(8);not null;default:'IDR'" json:"currency"`
	Reference     string    `gorm:"type:varchar(128);not null;uniqueIndex" json:"reference"`
	TransactionID *uint     `gorm:"index" json:"transaction_id,omitempty"`
	Remark        string    `gorm:"type:varchar(255)" json:"remark"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
