package repository

import (
	"errors"

	"github.com/eksporyuk-migrate/internal/constants"
	"github.com/eksporyuk-migrate/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MembershipRepository 会员数据访问接口
type MembershipRepository interface {
	GetByTier(tier string) (*models.Membership, error)
	ListCatalogue() ([]models.Membership, error)
	CreateMembership(membership *models.Membership) error
	GetUserMembership(userID uint) (*models.UserMembership, error)
	GetUserMembershipForUpdate(userID uint) (*models.UserMembership, error)
	CreateUserMembership(membership *models.UserMembership) error
	UpdateUserMembership(membership *models.UserMembership) error
	CountActiveByTier() (map[string]int64, error)
	WithTx(tx *gorm.DB) *GormMembershipRepository
}

// GormMembershipRepository GORM 会员仓储
type GormMembershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository 创建会员仓储
func NewMembershipRepository(db *gorm.DB) *GormMembershipRepository {
	return &GormMembershipRepository{db: db}
}

// WithTx 绑定事务
func (r *GormMembershipRepository) WithTx(tx *gorm.DB) *GormMembershipRepository {
	if tx == nil {
		return r
	}
	return &GormMembershipRepository{db: tx}
}

// GetByTier 按等级获取会员目录
func (r *GormMembershipRepository) GetByTier(tier string) (*models.Membership, error) {
	if tier == "" {
		return nil, nil
	}
	var membership models.Membership
	if err := r.db.Where("tier = ?", tier).First(&membership).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}

// ListCatalogue 按优先级列出会员目录
func (r *GormMembershipRepository) ListCatalogue() ([]models.Membership, error) {
	var items []models.Membership
	if err := r.db.Order("priority DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// CreateMembership 创建会员目录项，等级冲突时忽略
func (r *GormMembershipRepository) CreateMembership(membership *models.Membership) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tier"}},
		DoNothing: true,
	}).Create(membership).Error
}

// GetUserMembership 获取用户当前会员
func (r *GormMembershipRepository) GetUserMembership(userID uint) (*models.UserMembership, error) {
	if userID == 0 {
		return nil, nil
	}
	var membership models.UserMembership
	if err := r.db.Where("user_id = ?", userID).First(&membership).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}

// GetUserMembershipForUpdate 加锁获取用户当前会员
func (r *GormMembershipRepository) GetUserMembershipForUpdate(userID uint) (*models.UserMembership, error) {
	if userID == 0 {
		return nil, nil
	}
	var membership models.UserMembership
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&membership).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}

// CreateUserMembership 创建用户会员
func (r *GormMembershipRepository) CreateUserMembership(membership *models.UserMembership) error {
	return r.db.Omit("Membership").Create(membership).Error
}

// UpdateUserMembership 更新用户会员
func (r *GormMembershipRepository) UpdateUserMembership(membership *models.UserMembership) error {
	return r.db.Omit("Membership").Save(membership).Error
}

type tierCountRow struct {
	Tier  string
	Total int64
}

// CountActiveByTier 按等级统计有效会员数
func (r *GormMembershipRepository) CountActiveByTier() (map[string]int64, error) {
	var rows []tierCountRow
	if err := r.db.Model(&models.UserMembership{}).
		Select("tier, COUNT(*) AS total").
		Where("status = ?", constants.MembershipStatusActive).
		Group("tier").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.Tier] = row.Total
	}
	return result, nil
}
