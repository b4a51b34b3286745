package models

import "time"

// ImportRun 导入批次记录
type ImportRun struct {
	ID                     uint       `gorm:"primarykey" json:"id"`
	RunID                  string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"run_id"`
	Source                 string     `gorm:"type:varchar(500)" json:"source"`
	Format                 string     `gorm:"type:varchar(16)" json:"format"`
	DryRun                 bool       `gorm:"not null" json:"dry_run"`
	Status                 string     `gorm:"type:varchar(20);not null;index" json:"status"`
	RulesVersion           string     `gorm:"type:varchar(64)" json:"rules_version"`
	TotalOrders            int        `gorm:"not null;default:0" json:"total_orders"`
	Created                int        `gorm:"not null;default:0" json:"created"`
	Updated                int        `gorm:"not null;default:0" json:"updated"`
	Unchanged              int        `gorm:"not null;default:0" json:"unchanged"`
	Skipped                int        `gorm:"not null;default:0" json:"skipped"`
	Failed                 int        `gorm:"not null;default:0" json:"failed"`
	Reviewed               int        `gorm:"not null;default:0" json:"reviewed"`
	Conversions            int        `gorm:"not null;default:0" json:"conversions"`
	MembershipsGranted     int        `gorm:"not null;default:0" json:"memberships_granted"`
	WatermarkLegacyOrderID int64      `gorm:"not null;default:0" json:"watermark_legacy_order_id"`
	Error                  string     `gorm:"type:text" json:"error"`
	StartedAt              time.Time  `gorm:"index" json:"started_at"`
	FinishedAt             *time.Time `json:"finished_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (ImportRun) TableName() string {
	return "import_runs"
}
