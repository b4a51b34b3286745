package models

import "time"

// ReviewItem 人工复核队列
type ReviewItem struct {
	ID              uint       `gorm:"primarykey" json:"id"`
	LegacyOrderID   int64      `gorm:"not null;index:idx_review_item_unique,unique" json:"legacy_order_id"`
	Kind            string     `gorm:"type:varchar(32);not null;index:idx_review_item_unique,unique" json:"kind"`
	Reason          string     `gorm:"type:varchar(64);not null" json:"reason"`
	LegacyProductID int64      `json:"legacy_product_id"`
	ProductName     string     `gorm:"type:varchar(255)" json:"product_name"`
	GrandTotal      Money      `gorm:"type:decimal(20,2);not null;default:0" json:"grand_total"`
	Details         JSON       `gorm:"type:json" json:"details"`
	Status          string     `gorm:"type:varchar(20);not null;index" json:"status"`
	ImportRunID     string     `gorm:"type:varchar(64);index" json:"import_run_id"`
	ResolvedBy      string     `gorm:"type:varchar(100)" json:"resolved_by"`
	ResolutionNote  string     `gorm:"type:varchar(500)" json:"resolution_note"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (ReviewItem) TableName() string {
	return "review_items"
}
