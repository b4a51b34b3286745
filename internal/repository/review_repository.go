package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/eksporyuk-migrate/internal/constants"
	"github.com/eksporyuk-migrate/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReviewRepository 人工复核数据访问接口
type ReviewRepository interface {
	CreateIfAbsent(item *models.ReviewItem) (bool, error)
	GetByID(id uint) (*models.ReviewItem, error)
	List(filter ReviewListFilter) ([]models.ReviewItem, int64, error)
	Resolve(id uint, resolvedBy, note string, resolvedAt time.Time) (bool, error)
	CountOpen() (int64, error)
	WithTx(tx *gorm.DB) *GormReviewRepository
}

// GormReviewRepository GORM 人工复核仓储
type GormReviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository 创建人工复核仓储
func NewReviewRepository(db *gorm.DB) *GormReviewRepository {
	return &GormReviewRepository{db: db}
}

// WithTx 绑定事务
func (r *GormReviewRepository) WithTx(tx *gorm.DB) *GormReviewRepository {
	if tx == nil {
		return r
	}
	return &GormReviewRepository{db: tx}
}

// CreateIfAbsent 按 (legacy_order_id, kind) 创建复核项，已存在时不覆盖人工处理结果
func (r *GormReviewRepository) CreateIfAbsent(item *models.ReviewItem) (bool, error) {
	if item == nil {
		return false, nil
	}
	if item.Status == "" {
		item.Status = constants.ReviewStatusOpen
	}
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "legacy_order_id"}, {Name: "kind"}},
		DoNothing: true,
	}).Create(item)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetByID 按ID获取复核项
func (r *GormReviewRepository) GetByID(id uint) (*models.ReviewItem, error) {
	if id == 0 {
		return nil, nil
	}
	var item models.ReviewItem
	if err := r.db.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// List 复核项列表
func (r *GormReviewRepository) List(filter ReviewListFilter) ([]models.ReviewItem, int64, error) {
	query := r.db.Model(&models.ReviewItem{})
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if kind := strings.TrimSpace(filter.Kind); kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		condition, argCount := buildLikeCondition(r.db, []string{"product_name", "reason"})
		query = query.Where(condition, repeatLikeArgs("%"+keyword+"%", argCount)...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var items []models.ReviewItem
	if err := query.Order("id DESC").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Resolve 标记复核项已处理，仅处理 open 状态
func (r *GormReviewRepository) Resolve(id uint, resolvedBy, note string, resolvedAt time.Time) (bool, error) {
	result := r.db.Model(&models.ReviewItem{}).
		Where("id = ? AND status = ?", id, constants.ReviewStatusOpen).
		Updates(map[string]interface{}{
			"status":          constants.ReviewStatusResolved,
			"resolved_by":     strings.TrimSpace(resolvedBy),
			"resolution_note": strings.TrimSpace(note),
			"resolved_at":     resolvedAt,
			"updated_at":      resolvedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CountOpen 待处理复核项数量
func (r *GormReviewRepository) CountOpen() (int64, error) {
	var total int64
	if err := r.db.Model(&models.ReviewItem{}).
		Where("status = ?", constants.ReviewStatusOpen).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
