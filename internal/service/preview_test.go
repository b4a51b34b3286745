package service

import (
	"errors"
	"testing"

	"github.com/eksporyuk-migrate/internal/constants"
	"github.com/eksporyuk-migrate/internal/rules"

	"github.com/shopspring/decimal"
)

func TestPreviewOrder(t *testing.T) {
	rs := loadTestRules(t)

	result, err := PreviewOrder(rs, PreviewInput{
		ProductName:  "Promo Merdeka 80",
		GrandTotal:   decimal.NewFromInt(799000),
		HasAffiliate: true,
	})
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	if result.Classification.Tier != rules.TierTwelveMonths || !result.GrantsMembership {
		t.Fatalf("unexpected classification: %+v", result.Classification)
	}
	if result.Commission.Amount != 250000 || !result.Commission.Ambiguous || !result.CreatesConversion {
		t.Fatalf("unexpected commission: %+v", result.Commission)
	}
	if len(result.ReviewKinds) != 1 || result.ReviewKinds[0] != constants.ReviewKindCommission {
		t.Fatalf("expected commission review, got %v", result.ReviewKinds)
	}

	result, err = PreviewOrder(rs, PreviewInput{ProductID: 8910, GrandTotal: decimal.NewFromInt(1500000), HasAffiliate: true, Status: "refunded"})
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	if result.Status != constants.TransactionStatusRefunded || result.GrantsMembership || result.CreatesConversion {
		t.Fatalf("refunded order must not grant or convert: %+v", result)
	}
	if result.Commission.Amount != 0 || !result.Commission.Resolved() {
		t.Fatalf("expected explicit zero commission, got %+v", result.Commission)
	}

	if _, err := PreviewOrder(nil, PreviewInput{}); !errors.Is(err, ErrRulesNotLoaded) {
		t.Fatalf("expected ErrRulesNotLoaded, got %v", err)
	}
	if _, err := PreviewOrder(rs, PreviewInput{GrandTotal: decimal.NewFromInt(-1)}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
