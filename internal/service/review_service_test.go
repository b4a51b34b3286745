package service

import (
	"errors"
	"testing"

	"github.com/eksporyuk-migrate/internal/constants"
	"github.com/eksporyuk-migrate/internal/models"
	"github.com/eksporyuk-migrate/internal/repository"
)

func TestReviewServiceResolve(t *testing.T) {
	db := setupServiceTestDB(t)
	svcs := newTestServices(t, db)
	svc := NewReviewService(svcs.reviews)

	item := &models.ReviewItem{
		LegacyOrderID: 9001,
		Kind:          constants.ReviewKindCommission,
		Reason:        reviewReasonPriceCollision,
		ProductName:   "Promo Merdeka 80",
	}
	if _, err := svcs.reviews.CreateIfAbsent(item); err != nil {
		t.Fatalf("create review failed: %v", err)
	}

	items, total, err := svc.List(repository.ReviewListFilter{Status: constants.ReviewStatusOpen, Keyword: "merdeka"})
	if err != nil || total != 1 || len(items) != 1 {
		t.Fatalf("expected one open review, got %d %v", total, err)
	}

	if _, err := svc.Resolve(item.ID, "", "note"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without resolver, got %v", err)
	}
	resolved, err := svc.Resolve(item.ID, "finance", "confirmed 325000 manually")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.Status != constants.ReviewStatusResolved || resolved.ResolvedBy != "finance" || resolved.ResolvedAt == nil {
		t.Fatalf("unexpected resolved item: %+v", resolved)
	}
	if _, err := svc.Resolve(item.ID, "finance", ""); !errors.Is(err, ErrReviewAlreadyResolved) {
		t.Fatalf("expected ErrReviewAlreadyResolved, got %v", err)
	}
	if _, err := svc.Resolve(999, "finance", ""); !errors.Is(err, ErrReviewNotFound) {
		t.Fatalf("expected ErrReviewNotFound, got %v", err)
	}
}
