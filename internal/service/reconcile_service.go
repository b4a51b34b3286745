package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/eksporyuk-migrate/internal/cache"
	"github.com/eksporyuk-migrate/internal/constants"
	"github.com/eksporyuk-migrate/internal/legacy"
	"github.com/eksporyuk-migrate/internal/logger"
	"github.com/eksporyuk-migrate/internal/metrics"
	"github.com/eksporyuk-migrate/internal/repository"
	"github.com/eksporyuk-migrate/internal/rules"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	lastReportCacheKey = "reconcile:last"
	lastReportCacheTTL = 7 * 24 * time.Hour
)

// 对账指标名
const (
	MetricTransactionCount = "transaction_count"
	MetricSuccessCount     = "success_count"
	MetricRevenue          = "revenue"
	MetricCommissionTotal  = "commission_total"
	MetricConversionCount  = "conversion_count"
	metricMembershipPrefix = "memberships."
)

// 不变量名
const (
	InvariantMissingConversions  = "missing_conversions"
	InvariantCommissionMismatch  = "commission_mismatch"
	InvariantOrphanConversions   = "orphan_conversions"
	InvariantNonSuccessConverted = "non_success_converted"
)

// ExpectedTotals 旧系统侧的预期汇总，空字段不参与比对；金额为整数卢比
type ExpectedTotals struct {
	TransactionCount *int64           `mapstructure:"transaction_count" json:"transaction_count,omitempty"`
	SuccessCount     *int64           `mapstructure:"success_count" json:"success_count,omitempty"`
	Revenue          *int64           `mapstructure:"revenue" json:"revenue,omitempty"`
	CommissionTotal  *int64           `mapstructure:"commission_total" json:"commission_total,omitempty"`
	ConversionCount  *int64           `mapstructure:"conversion_count" json:"conversion_count,omitempty"`
	Memberships      map[string]int64 `mapstructure:"memberships" json:"memberships,omitempty"`
}

// Empty 是否没有任何预期值
func (e ExpectedTotals) Empty() bool {
	return e.TransactionCount == nil && e.SuccessCount == nil && e.Revenue == nil &&
		e.CommissionTotal == nil && e.ConversionCount == nil && len(e.Memberships) == 0
}

// Discrepancy 单项差异
type Discrepancy struct {
	Metric     string          `json:"metric"`
	Expected   decimal.Decimal `json:"expected"`
	Actual     decimal.Decimal `json:"actual"`
	Difference decimal.Decimal `json:"difference"` // actual - expected
}

// AffiliateGap 单个推广人的佣金差异
type AffiliateGap struct {
	LegacyAffiliateID  int64           `json:"legacy_affiliate_id"`
	Email              string          `json:"email"`
	ExpectedCount      int64           `json:"expected_count"`
	ActualCount        int64           `json:"actual_count"`
	ExpectedCommission decimal.Decimal `json:"expected_commission"`
	ActualCommission   decimal.Decimal `json:"actual_commission"`
	Difference         decimal.Decimal `json:"difference"`
}

// Report 对账报告
type Report struct {
	GeneratedAt   time.Time               `json:"generated_at"`
	Tolerance     int64                   `json:"tolerance"`
	Totals        repository.ReportTotals `json:"totals"`
	Memberships   map[string]int64        `json:"memberships"`
	Expected      ExpectedTotals          `json:"expected"`
	Discrepancies []Discrepancy           `json:"discrepancies"`
	Invariants    map[string]int64        `json:"invariants"`
	AffiliateGaps []AffiliateGap          `json:"affiliate_gaps,omitempty"`
	OpenReviews   int64                   `json:"open_reviews"`
	Passed        bool                    `json:"passed"`
}

// AttachAffiliateGaps 附加推广人差异；存在差异时报告不通过
func (r *Report) AttachAffiliateGaps(gaps []AffiliateGap) {
	r.AffiliateGaps = gaps
	if len(gaps) > 0 {
		r.Passed = false
	}
}

// ReconcileService 导入后对账
type ReconcileService struct {
	reportRepo *repository.GormReportRepository
	reviewRepo *repository.GormReviewRepository
	metrics    *metrics.Metrics
}

// NewReconcileService 创建对账服务
func NewReconcileService(reportRepo *repository.GormReportRepository, reviewRepo *repository.GormReviewRepository, m *metrics.Metrics) *ReconcileService {
	return &ReconcileService{reportRepo: reportRepo, reviewRepo: reviewRepo, metrics: m}
}

// LoadExpected 从 YAML 文件读取预期汇总
func LoadExpected(path string) (ExpectedTotals, error) {
	var expected ExpectedTotals
	if strings.TrimSpace(path) == "" {
		return expected, fmt.Errorf("%w: empty path", ErrExpectedTotalsInvalid)
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return expected, fmt.Errorf("%w: %v", ErrExpectedTotalsInvalid, err)
	}
	if err := v.Unmarshal(&expected); err != nil {
		return expected, fmt.Errorf("%w: %v", ErrExpectedTotalsInvalid, err)
	}
	// viper 会把键名转为小写
	if len(expected.Memberships) > 0 {
		normalized := make(map[string]int64, len(expected.Memberships))
		for tier, count := range expected.Memberships {
			parsed, ok := rules.TierFromString(tier)
			if !ok || !parsed.IsMembership() {
				return expected, fmt.Errorf("%w: unknown tier %q", ErrExpectedTotalsInvalid, tier)
			}
			normalized[parsed.String()] = count
		}
		expected.Memberships = normalized
	}
	return expected, nil
}

// ExpectedFromExport 按规则从旧系统导出推算预期汇总
func ExpectedFromExport(export *legacy.Export, rs *rules.RuleSet) ExpectedTotals {
	var txnCount, successCount, conversionCount int64
	revenue := decimal.Zero
	var commission int64
	bestTier := make(map[int64]rules.Tier)
	if export != nil && rs != nil {
		for _, order := range export.Orders {
			if order.ID.Int64() <= 0 {
				continue
			}
			txnCount++
			status, _ := legacy.MapStatus(order.Status)
			if status != constants.TransactionStatusSuccess {
				continue
			}
			successCount++
			revenue = revenue.Add(order.GrandTotal)
			productID := order.ProductID.Int64()
			if class := rs.ClassifyOrder(productID, order.ProductName, order.GrandTotal); class.IsMembership() {
				buyer := order.UserID.Int64()
				bestTier[buyer] = rules.MaxTier(bestTier[buyer], class.Tier)
			}
			if !order.HasAffiliate() {
				continue
			}
			resolution := rs.ResolveCommission(productID, order.ProductName, order.GrandTotal)
			if resolution.Resolved() && resolution.Amount > 0 {
				conversionCount++
				commission += resolution.Amount
			}
		}
	}
	memberships := make(map[string]int64)
	for _, tier := range bestTier {
		memberships[tier.String()]++
	}
	revenueRupiah := revenue.Round(0).IntPart()
	return ExpectedTotals{
		TransactionCount: &txnCount,
		SuccessCount:     &successCount,
		Revenue:          &revenueRupiah,
		CommissionTotal:  &commission,
		ConversionCount:  &conversionCount,
		Memberships:      memberships,
	}
}

// Run 比对数据库聚合与预期汇总并检查不变量；金额差异在 tolerance（卢比）以内视为一致
func (s *ReconcileService) Run(ctx context.Context, expected ExpectedTotals, tolerance int64) (*Report, error) {
	if tolerance < 0 {
		tolerance = 0
	}
	totals, err := s.reportRepo.Totals()
	if err != nil {
		return nil, err
	}
	memberships, err := s.reportRepo.MembershipCounts()
	if err != nil {
		return nil, err
	}
	invariants, err := s.reportRepo.InvariantCounts()
	if err != nil {
		return nil, err
	}
	openReviews, err := s.reviewRepo.CountOpen()
	if err != nil {
		return nil, err
	}

	report := &Report{
		GeneratedAt: time.Now(),
		Tolerance:   tolerance,
		Totals:      totals,
		Memberships: memberships,
		Expected:    expected,
		Invariants: map[string]int64{
			InvariantMissingConversions:  invariants.MissingConversions,
			InvariantCommissionMismatch:  invariants.CommissionMismatch,
			InvariantOrphanConversions:   invariants.OrphanConversions,
			InvariantNonSuccessConverted: invariants.NonSuccessConverted,
		},
		OpenReviews: openReviews,
	}
	tol := decimal.NewFromInt(tolerance)
	report.compareCount(MetricTransactionCount, expected.TransactionCount, totals.TransactionCount)
	report.compareCount(MetricSuccessCount, expected.SuccessCount, totals.SuccessCount)
	report.compareAmount(MetricRevenue, expected.Revenue, totals.Revenue, tol)
	report.compareAmount(MetricCommissionTotal, expected.CommissionTotal, totals.CommissionTotal, tol)
	report.compareCount(MetricConversionCount, expected.ConversionCount, totals.ConversionCount)
	tiers := make([]string, 0, len(expected.Memberships))
	for tier := range expected.Memberships {
		tiers = append(tiers, tier)
	}
	sort.Strings(tiers)
	for _, tier := range tiers {
		want := expected.Memberships[tier]
		report.compareCount(metricMembershipPrefix+tier, &want, memberships[tier])
	}

	report.Passed = len(report.Discrepancies) == 0
	for _, count := range report.Invariants {
		if count > 0 {
			report.Passed = false
		}
	}

	s.metrics.RecordReconcile(report.Passed, report.Invariants)
	s.Remember(ctx, report)
	logger.Infow("reconcile_finished",
		"passed", report.Passed,
		"discrepancies", len(report.Discrepancies),
		"missing_conversions", invariants.MissingConversions,
		"commission_mismatch", invariants.CommissionMismatch,
		"open_reviews", openReviews,
	)
	return report, nil
}

// Remember 缓存报告供管理接口读取，Redis 未启用时忽略
func (s *ReconcileService) Remember(ctx context.Context, report *Report) {
	if err := cache.SetJSON(ctx, lastReportCacheKey, report, lastReportCacheTTL); err != nil {
		logger.Warnw("reconcile_report_cache_failed", "error", err)
	}
}

// LastReport 读取最近一次缓存的报告
func (s *ReconcileService) LastReport(ctx context.Context) (*Report, error) {
	var report Report
	found, err := cache.GetJSON(ctx, lastReportCacheKey, &report)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &report, nil
}

// AffiliateGaps 比较导出推算的每个推广人佣金与已写入的推广转化
func (s *ReconcileService) AffiliateGaps(export *legacy.Export, rs *rules.RuleSet) ([]AffiliateGap, error) {
	if rs == nil {
		return nil, ErrRulesNotLoaded
	}
	actualRows, err := s.reportRepo.AffiliateTotals()
	if err != nil {
		return nil, err
	}
	actual := make(map[int64]repository.AffiliateTotal, len(actualRows))
	for _, row := range actualRows {
		if row.LegacyAffiliateID > 0 {
			actual[row.LegacyAffiliateID] = row
		}
	}

	type expectedRow struct {
		count  int64
		amount int64
	}
	expected := make(map[int64]*expectedRow)
	var lookups *legacy.Lookups
	if export != nil {
		lookups = legacy.BuildLookups(export)
		for _, order := range export.Orders {
			if !order.HasAffiliate() {
				continue
			}
			if status, _ := legacy.MapStatus(order.Status); status != constants.TransactionStatusSuccess {
				continue
			}
			resolution := rs.ResolveCommission(order.ProductID.Int64(), order.ProductName, order.GrandTotal)
			if !resolution.Resolved() || resolution.Amount <= 0 {
				continue
			}
			id := order.AffiliateID.Int64()
			row := expected[id]
			if row == nil {
				row = &expectedRow{}
				expected[id] = row
			}
			row.count++
			row.amount += resolution.Amount
		}
	}

	ids := make(map[int64]struct{}, len(expected)+len(actual))
	for id := range expected {
		ids[id] = struct{}{}
	}
	for id := range actual {
		ids[id] = struct{}{}
	}
	gaps := make([]AffiliateGap, 0)
	for id := range ids {
		want := expected[id]
		if want == nil {
			want = &expectedRow{}
		}
		got := actual[id]
		wantAmount := decimal.NewFromInt(want.amount)
		if want.count == got.ConversionCount && wantAmount.Equal(got.Commission) {
			continue
		}
		email := got.Email
		if email == "" && lookups != nil {
			email, _ = lookups.AffiliateEmail(id)
		}
		gaps = append(gaps, AffiliateGap{
			LegacyAffiliateID:  id,
			Email:              email,
			ExpectedCount:      want.count,
			ActualCount:        got.ConversionCount,
			ExpectedCommission: wantAmount,
			ActualCommission:   got.Commission,
			Difference:         got.Commission.Sub(wantAmount),
		})
	}
	sort.Slice(gaps, func(i, j int) bool {
		di, dj := gaps[i].Difference.Abs(), gaps[j].Difference.Abs()
		if !di.Equal(dj) {
			return di.GreaterThan(dj)
		}
		return gaps[i].LegacyAffiliateID < gaps[j].LegacyAffiliateID
	})
	return gaps, nil
}

func (r *Report) compareCount(metric string, expected *int64, actual int64) {
	if expected == nil || *expected == actual {
		return
	}
	r.Discrepancies = append(r.Discrepancies, Discrepancy{
		Metric:     metric,
		Expected:   decimal.NewFromInt(*expected),
		Actual:     decimal.NewFromInt(actual),
		Difference: decimal.NewFromInt(actual - *expected),
	})
}

func (r *Report) compareAmount(metric string, expected *int64, actual decimal.Decimal, tolerance decimal.Decimal) {
	if expected == nil {
		return
	}
	want := decimal.NewFromInt(*expected)
	diff := actual.Sub(want)
	if diff.Abs().LessThanOrEqual(tolerance) {
		return
	}
	r.Discrepancies = append(r.Discrepancies, Discrepancy{
		Metric:     metric,
		Expected:   want,
		Actual:     actual,
		Difference: diff,
	})
}
