package service

import (
	"strings"

	"github.com/eksporyuk-migrate/internal/constants"
	"github.com/eksporyuk-migrate/internal/legacy"
	"github.com/eksporyuk-migrate/internal/rules"

	"github.com/shopspring/decimal"
)

// PreviewInput 规则试算输入
type PreviewInput struct {
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
	Status       string          `json:"status"`
	HasAffiliate bool            `json:"has_affiliate"`
}

// PreviewResult 规则试算结果，不写库
type PreviewResult struct {
	RulesVersion      string                     `json:"rules_version"`
	Status            string                     `json:"status"`
	StatusKnown       bool                       `json:"status_known"`
	Classification    rules.Classification       `json:"classification"`
	Commission        rules.CommissionResolution `json:"commission"`
	GrantsMembership  bool                       `json:"grants_membership"`
	CreatesConversion bool                       `json:"creates_conversion"`
	ReviewKinds       []string                   `json:"review_kinds,omitempty"`
}

// PreviewOrder 对单个订单做分类与佣金解析
func PreviewOrder(rs *rules.RuleSet, input PreviewInput) (*PreviewResult, error) {
	if rs == nil {
		return nil, ErrRulesNotLoaded
	}
	if input.GrandTotal.IsNegative() {
		return nil, ErrInvalidInput
	}
	rawStatus := strings.TrimSpace(input.Status)
	if rawStatus == "" {
		rawStatus = constants.LegacyStatusCompleted
	}
	status, known := legacy.MapStatus(rawStatus)
	result := &PreviewResult{
		RulesVersion:   rs.Version(),
		Status:         status,
		StatusKnown:    known,
		Classification: rs.ClassifyOrder(input.ProductID, input.ProductName, input.GrandTotal),
		Commission:     rs.ResolveCommission(input.ProductID, input.ProductName, input.GrandTotal),
	}
	success := status == constants.TransactionStatusSuccess
	result.GrantsMembership = success && result.Classification.IsMembership()
	result.CreatesConversion = success && input.HasAffiliate && result.Commission.Resolved() && result.Commission.Amount > 0
	if !known {
		result.ReviewKinds = append(result.ReviewKinds, constants.ReviewKindStatus)
	}
	if success && !result.Classification.Resolved() {
		result.ReviewKinds = append(result.ReviewKinds, constants.ReviewKindClassification)
	}
	if success && input.HasAffiliate && result.Commission.NeedsReview() {
		result.ReviewKinds = append(result.ReviewKinds, constants.ReviewKindCommission)
	}
	return result, nil
}
