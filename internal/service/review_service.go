package service

import (
	"strings"
	"time"

	"github.com/eksporyuk-migrate/internal/constants"
	"github.com/eksporyuk-migrate/internal/logger"
	"github.com/eksporyuk-migrate/internal/models"
	"github.com/eksporyuk-migrate/internal/repository"
)

// ReviewService 人工复核队列
type ReviewService struct {
	repo *repository.GormReviewRepository
}

// NewReviewService 创建复核服务
func NewReviewService(repo *repository.GormReviewRepository) *ReviewService {
	return &ReviewService{repo: repo}
}

// List 复核项列表
func (s *ReviewService) List(filter repository.ReviewListFilter) ([]models.ReviewItem, int64, error) {
	return s.repo.List(filter)
}

// Resolve 标记复核项已处理
func (s *ReviewService) Resolve(id uint, resolvedBy, note string) (*models.ReviewItem, error) {
	if id == 0 || strings.TrimSpace(resolvedBy) == "" {
		return nil, ErrInvalidInput
	}
	item, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrReviewNotFound
	}
	if item.Status != constants.ReviewStatusOpen {
		return nil, ErrReviewAlreadyResolved
	}
	ok, err := s.repo.Resolve(id, resolvedBy, note, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrReviewAlreadyResolved
	}
	logger.Infow("review_item_resolved",
		"review_id", id,
		"legacy_order_id", item.LegacyOrderID,
		"kind", item.Kind,
		"resolved_by", resolvedBy,
	)
	return s.repo.GetByID(id)
}
