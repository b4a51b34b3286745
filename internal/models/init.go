package models

import (
	"github.com/eksporyuk-migrate/internal/constants"
	"github.com/eksporyuk-migrate/internal/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultMemberships 会员等级目录
func DefaultMemberships() []Membership {
	return []Membership{
		{Tier: constants.MembershipTierLifetime, Name: "Membership Lifetime", DurationDays: 0, Priority: 3},
		{Tier: constants.MembershipTierTwelveMonths, Name: "Membership 12 Bulan", DurationDays: 365, Priority: 2},
		{Tier: constants.MembershipTierSixMonths, Name: "Membership 6 Bulan", DurationDays: 180, Priority: 1},
	}
}

// SeedMemberships 初始化会员等级目录，已存在的等级保持不变
func SeedMemberships(db *gorm.DB) error {
	items := DefaultMemberships()
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tier"}},
		DoNothing: true,
	}).Create(&items)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		logger.Infow("membership_catalogue_seeded", "created", result.RowsAffected)
	}
	return nil
}
