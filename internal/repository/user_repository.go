package repository

import (
	"errors"
	"strings"

	"github.com/eksporyuk-migrate/internal/models"

	"gorm.io/gorm"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByLegacyID(legacyID int64) (*models.User, error)
	EmailIndex() (map[string]uint, error)
	Create(user *models.User) error
	Update(user *models.User) error
	UpdateRole(userID uint, role string) error
	Count() (int64, error)
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) *GormUserRepository
}

// GormUserRepository GORM 用户仓储
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// WithTx 绑定事务
func (r *GormUserRepository) WithTx(tx *gorm.DB) *GormUserRepository {
	if tx == nil {
		return r
	}
	return &GormUserRepository{db: tx}
}

// Transaction 执行事务
func (r *GormUserRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID获取用户
func (r *GormUserRepository) GetByID(id uint) (*models.User, error) {
	if id == 0 {
		return nil, nil
	}
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByEmail 按邮箱获取用户（忽略大小写）
func (r *GormUserRepository) GetByEmail(email string) (*models.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return nil, nil
	}
	var user models.User
	if err := r.db.Where("LOWER(email) = ?", normalized).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByLegacyID 按旧系统用户ID获取用户
func (r *GormUserRepository) GetByLegacyID(legacyID int64) (*models.User, error) {
	if legacyID <= 0 {
		return nil, nil
	}
	var user models.User
	if err := r.db.Where("legacy_user_id = ?", legacyID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

type userEmailRow struct {
	ID    uint
	Email string
}

// EmailIndex 一次性加载 邮箱 -> 用户ID 索引，邮箱统一小写去空格
func (r *GormUserRepository) EmailIndex() (map[string]uint, error) {
	index := make(map[string]uint)
	var rows []userEmailRow
	err := r.db.Model(&models.User{}).
		Select("id, email").
		FindInBatches(&rows, 1000, func(tx *gorm.DB, batch int) error {
			for _, row := range rows {
				key := strings.ToLower(strings.TrimSpace(row.Email))
				if key == "" {
					continue
				}
				if _, exists := index[key]; !exists {
					index[key] = row.ID
				}
			}
			return nil
		}).Error
	if err != nil {
		return nil, err
	}
	return index, nil
}

// Create 创建用户
func (r *GormUserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// Update 更新用户
func (r *GormUserRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// UpdateRole 更新会员角色
func (r *GormUserRepository) UpdateRole(userID uint, role string) error {
	if userID == 0 {
		return nil
	}
	return r.db.Model(&models.User{}).Where("id = ?", userID).Update("role", role).Error
}

// Count 用户总数
func (r *GormUserRepository) Count() (int64, error) {
	var total int64
	if err := r.db.Model(&models.User{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
