package repository

import (
	"errors"
	"strings"

	"github.com/eksporyuk-migrate/internal/constants"
	"github.com/eksporyuk-migrate/internal/models"

	"gorm.io/gorm"
)

// ImportRunRepository 导入批次数据访问接口
type ImportRunRepository interface {
	Create(run *models.ImportRun) error
	Update(run *models.ImportRun) error
	GetByRunID(runID string) (*models.ImportRun, error)
	List(filter ImportRunListFilter) ([]models.ImportRun, int64, error)
	LatestWatermark() (int64, error)
}

// GormImportRunRepository GORM 导入批次仓储
type GormImportRunRepository struct {
	db *gorm.DB
}

// NewImportRunRepository 创建导入批次仓储
func NewImportRunRepository(db *gorm.DB) *GormImportRunRepository {
	return &GormImportRunRepository{db: db}
}

// Create 创建导入批次
func (r *GormImportRunRepository) Create(run *models.ImportRun) error {
	return r.db.Create(run).Error
}

// Update 更新导入批次
func (r *GormImportRunRepository) Update(run *models.ImportRun) error {
	return r.db.Save(run).Error
}

// GetByRunID 按批次号获取
func (r *GormImportRunRepository) GetByRunID(runID string) (*models.ImportRun, error) {
	id := strings.TrimSpace(runID)
	if id == "" {
		return nil, nil
	}
	var run models.ImportRun
	if err := r.db.Where("run_id = ?", id).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// List 导入批次列表，最新的在前
func (r *GormImportRunRepository) List(filter ImportRunListFilter) ([]models.ImportRun, int64, error) {
	query := r.db.Model(&models.ImportRun{})
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if filter.DryRun != nil {
		query = query.Where("dry_run = ?", *filter.DryRun)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var runs []models.ImportRun
	if err := query.Order("id DESC").Find(&runs).Error; err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// LatestWatermark 最近一次成功执行（非演练）导入的水位
func (r *GormImportRunRepository) LatestWatermark() (int64, error) {
	var run models.ImportRun
	err := r.db.Where("dry_run = ? AND status = ?", false, constants.ImportRunStatusFinished).
		Order("finished_at DESC, id DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return run.WatermarkLegacyOrderID, nil
}
