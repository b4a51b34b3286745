package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/eksporyuk-migrate/internal/cache"
	"github.com/eksporyuk-migrate/internal/constants"
	"github.com/eksporyuk-migrate/internal/legacy"
	"github.com/eksporyuk-migrate/internal/logger"
	"github.com/eksporyuk-migrate/internal/metrics"
	"github.com/eksporyuk-migrate/internal/models"
	"github.com/eksporyuk-migrate/internal/repository"
	"github.com/eksporyuk-migrate/internal/rules"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultImportBatchSize = 500
	importLockName         = "import"
)

// 交易写入结果
const (
	txnActionCreated   = "created"
	txnActionUpdated   = "updated"
	txnActionUnchanged = "unchanged"
)

// 复核原因
const (
	reviewReasonUnknownStatus  = "unknown_status"
	reviewReasonPriceCollision = "price_collision"
	reviewReasonEstimatedBy    = "estimated_"
)

// ImportInput 导入输入
type ImportInput struct {
	Export  *legacy.Export
	Source  string
	Format  string
	Execute bool // false 为演练模式，所有写入回滚
	RunID   string
}

// ImportOptions 导入选项
type ImportOptions struct {
	BatchSize       int
	LockTTL         time.Duration
	ReviewEstimates bool
}

// ImportStats 导入统计
type ImportStats struct {
	RunID              string         `json:"run_id"`
	DryRun             bool           `json:"dry_run"`
	RulesVersion       string         `json:"rules_version"`
	TotalOrders        int            `json:"total_orders"`
	Created            int            `json:"created"`
	Updated            int            `json:"updated"`
	Unchanged          int            `json:"unchanged"`
	Skipped            int            `json:"skipped"`
	Failed             int            `json:"failed"`
	Reviewed           int            `json:"reviewed"`
	Conversions        int            `json:"conversions"`
	MembershipsGranted int            `json:"memberships_granted"`
	RowErrors          int            `json:"row_errors"`
	Watermark          int64          `json:"watermark"`
	PreviousWatermark  int64          `json:"previous_watermark"` // 上一次执行导入的水位
	SkipReasons        map[string]int `json:"skip_reasons"`
	ReviewKinds        map[string]int `json:"review_kinds"`
	Tiers              map[string]int `json:"tiers"`
	CommissionVia      map[string]int `json:"commission_via"`
}

func newImportStats(runID string, dryRun bool, version string) *ImportStats {
	return &ImportStats{
		RunID:         runID,
		DryRun:        dryRun,
		RulesVersion:  version,
		SkipReasons:   make(map[string]int),
		ReviewKinds:   make(map[string]int),
		Tiers:         make(map[string]int),
		CommissionVia: make(map[string]int),
	}
}

// ImportService 旧订单导入：分类、佣金解析与逐单原子写入
type ImportService struct {
	db            *gorm.DB
	rules         *rules.RuleSet
	userRepo      *repository.GormUserRepository
	txnRepo       *repository.GormTransactionRepository
	affiliateRepo repository.AffiliateRepository
	reviewRepo    *repository.GormReviewRepository
	runRepo       *repository.GormImportRunRepository
	affiliateSvc  *AffiliateService
	membershipSvc *MembershipService
	metrics       *metrics.Metrics
	opts          ImportOptions
}

// NewImportService 创建导入服务
func NewImportService(
	db *gorm.DB,
	rs *rules.RuleSet,
	userRepo *repository.GormUserRepository,
	txnRepo *repository.GormTransactionRepository,
	affiliateRepo repository.AffiliateRepository,
	reviewRepo *repository.GormReviewRepository,
	runRepo *repository.GormImportRunRepository,
	affiliateSvc *AffiliateService,
	membershipSvc *MembershipService,
	m *metrics.Metrics,
	opts ImportOptions,
) *ImportService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultImportBatchSize
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	return &ImportService{
		db:            db,
		rules:         rs,
		userRepo:      userRepo,
		txnRepo:       txnRepo,
		affiliateRepo: affiliateRepo,
		reviewRepo:    reviewRepo,
		runRepo:       runRepo,
		affiliateSvc:  affiliateSvc,
		membershipSvc: membershipSvc,
		metrics:       m,
		opts:          opts,
	}
}

// Rules 当前规则集
func (s *ImportService) Rules() *rules.RuleSet {
	return s.rules
}

// Run 执行一次导入；每笔订单的交易、推广转化、钱包、会员与复核项在同一事务内写入
func (s *ImportService) Run(ctx context.Context, input ImportInput) (*ImportStats, error) {
	if s.rules == nil {
		return nil, ErrRulesNotLoaded
	}
	if input.Export == nil || len(input.Export.Orders) == 0 {
		return nil, ErrImportSourceEmpty
	}
	lock, err := cache.AcquireLock(ctx, importLockName, s.opts.LockTTL)
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			return nil, ErrImportLocked
		}
		return nil, err
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			logger.Warnw("import_lock_release_failed", "error", err)
		}
	}()

	runID := strings.TrimSpace(input.RunID)
	if runID == "" {
		runID = uuid.NewString()
	}
	input.RunID = runID
	started := time.Now()
	stats := newImportStats(runID, !input.Execute, s.rules.Version())
	stats.RowErrors = len(input.Export.Errors)

	run := &models.ImportRun{
		RunID:        runID,
		Source:       input.Source,
		Format:       input.Format,
		DryRun:       !input.Execute,
		Status:       constants.ImportRunStatusRunning,
		RulesVersion: s.rules.Version(),
		StartedAt:    started,
	}
	previous, err := s.runRepo.LatestWatermark()
	if err != nil {
		return nil, err
	}
	stats.PreviousWatermark = previous
	if err := s.runRepo.Create(run); err != nil {
		return nil, err
	}
	logger.Infow("import_run_started",
		"run_id", runID,
		"dry_run", !input.Execute,
		"previous_watermark", previous,
		"orders", len(input.Export.Orders),
		"rules_version", s.rules.Version(),
		"row_errors", stats.RowErrors,
	)

	runErr := s.process(ctx, input, stats)

	finished := time.Now()
	fillImportRun(run, stats)
	run.FinishedAt = &finished
	run.Status = constants.ImportRunStatusFinished
	if runErr != nil {
		run.Status = constants.ImportRunStatusFailed
		run.Error = runErr.Error()
	}
	if err := s.runRepo.Update(run); err != nil {
		logger.Errorw("import_run_update_failed", "run_id", runID, "error", err)
	}
	s.metrics.RecordImportRun(!input.Execute, run.Status, finished.Sub(started))
	logger.Infow("import_run_finished",
		"run_id", runID,
		"status", run.Status,
		"total", stats.TotalOrders,
		"created", stats.Created,
		"updated", stats.Updated,
		"unchanged", stats.Unchanged,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"reviewed", stats.Reviewed,
		"conversions", stats.Conversions,
		"memberships", stats.MembershipsGranted,
		"duration_ms", finished.Sub(started).Milliseconds(),
	)
	return stats, runErr
}

func fillImportRun(run *models.ImportRun, stats *ImportStats) {
	run.TotalOrders = stats.TotalOrders
	run.Created = stats.Created
	run.Updated = stats.Updated
	run.Unchanged = stats.Unchanged
	run.Skipped = stats.Skipped
	run.Failed = stats.Failed
	run.Reviewed = stats.Reviewed
	run.Conversions = stats.Conversions
	run.MembershipsGranted = stats.MembershipsGranted
	run.WatermarkLegacyOrderID = stats.Watermark
}

// batchState 单批次预加载的已有记录
type batchState struct {
	txns              map[int64]*models.Transaction
	conversions       map[uint]*models.AffiliateConversion
	conversionsLoaded map[uint]bool
}

func (s *ImportService) process(ctx context.Context, input ImportInput, stats *ImportStats) error {
	resolver, err := NewIdentityResolver(legacy.BuildLookups(input.Export), s.userRepo)
	if err != nil {
		return err
	}
	orders := input.Export.Orders
	for start := 0; start < len(orders); start += s.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + s.opts.BatchSize
		if end > len(orders) {
			end = len(orders)
		}
		chunk := orders[start:end]
		state, err := s.preload(chunk)
		if err != nil {
			return err
		}
		for _, order := range chunk {
			s.processOrder(order, resolver, state, input, stats)
		}
		logger.Debugw("import_batch_processed", "run_id", input.RunID, "offset", start, "size", len(chunk))
	}
	return nil
}

func (s *ImportService) preload(chunk []legacy.Order) (*batchState, error) {
	ids := make([]int64, 0, len(chunk))
	for _, order := range chunk {
		if id := order.ID.Int64(); id > 0 {
			ids = append(ids, id)
		}
	}
	txns, err := s.txnRepo.GetByLegacyOrderIDs(ids)
	if err != nil {
		return nil, err
	}
	txnIDs := make([]uint, 0, len(txns))
	for _, txn := range txns {
		txnIDs = append(txnIDs, txn.ID)
	}
	conversions, err := s.affiliateRepo.GetConversionsByTransactionIDs(txnIDs)
	if err != nil {
		return nil, err
	}
	loaded := make(map[uint]bool, len(txnIDs))
	for _, id := range txnIDs {
		loaded[id] = true
	}
	return &batchState{txns: txns, conversions: conversions, conversionsLoaded: loaded}, nil
}

// orderPlan 单笔订单的推断结果与目标写入
type orderPlan struct {
	legacyID          int64
	buyer             IdentityResult
	affiliate         IdentityResult
	class             rules.Classification
	commission        rules.CommissionResolution
	transaction       models.Transaction
	desiredCommission int64
	reviews           []models.ReviewItem
}

// orderOutcome 单笔订单的写入结果
type orderOutcome struct {
	txnAction  string
	txn        *models.Transaction
	conversion ConversionAction
	grant      GrantAction
	reviews    []string
}

func (s *ImportService) processOrder(order legacy.Order, resolver *IdentityResolver, state *batchState, input ImportInput, stats *ImportStats) {
	legacyID := order.ID.Int64()
	stats.TotalOrders++
	if legacyID <= 0 {
		stats.Failed++
		s.metrics.RecordImportOrder("invalid")
		logger.Warnw("import_order_invalid", "run_id", input.RunID, "product_name", order.ProductName)
		return
	}
	if legacyID > stats.Watermark {
		stats.Watermark = legacyID
	}

	plan := s.plan(order, resolver)
	if !plan.buyer.Resolved() {
		stats.Skipped++
		stats.SkipReasons[plan.buyer.Reason]++
		s.metrics.RecordImportOrder("skipped")
		logger.Warnw("import_order_skipped",
			"run_id", input.RunID,
			"legacy_order_id", legacyID,
			"legacy_user_id", order.UserID.Int64(),
			"reason", plan.buyer.Reason,
		)
		return
	}

	var current *models.Transaction
	var conversion *models.AffiliateConversion
	conversionLoaded := true
	if found := state.txns[legacyID]; found != nil {
		copied := *found
		current = &copied
		conversionLoaded = state.conversionsLoaded[found.ID]
		if existing := state.conversions[found.ID]; existing != nil && conversionLoaded {
			copiedConversion := *existing
			conversion = &copiedConversion
		}
	}

	var outcome orderOutcome
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var writeErr error
		outcome, writeErr = s.writeOrder(tx, plan, current, conversion, conversionLoaded, input.RunID)
		if writeErr != nil {
			return writeErr
		}
		if !input.Execute {
			return errDryRunRollback
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRunRollback) {
		stats.Failed++
		s.metrics.RecordImportOrder("failed")
		logger.Errorw("import_order_failed",
			"run_id", input.RunID,
			"legacy_order_id", legacyID,
			"error", err,
		)
		return
	}

	if input.Execute && outcome.txn != nil {
		state.txns[legacyID] = outcome.txn
		delete(state.conversionsLoaded, outcome.txn.ID)
	}
	s.applyOutcome(stats, plan, outcome)
}

func (s *ImportService) applyOutcome(stats *ImportStats, plan *orderPlan, outcome orderOutcome) {
	switch outcome.txnAction {
	case txnActionCreated:
		stats.Created++
	case txnActionUpdated:
		stats.Updated++
	default:
		stats.Unchanged++
	}
	s.metrics.RecordImportOrder(outcome.txnAction)
	if outcome.conversion.Changed() {
		stats.Conversions++
		s.metrics.RecordConversion(string(outcome.conversion))
	}
	if outcome.grant.Changed() {
		stats.MembershipsGranted++
	}
	for _, kind := range outcome.reviews {
		stats.Reviewed++
		stats.ReviewKinds[kind]++
		s.metrics.RecordReviewItem(kind)
	}
	if plan.class.Resolved() {
		stats.Tiers[plan.class.Tier.String()]++
	} else {
		stats.Tiers[string(rules.StatusUnresolved)]++
	}
	if plan.commission.Resolved() {
		stats.CommissionVia[string(plan.commission.Via)]++
	}
}

// plan 对单笔订单做状态映射、身份解析、分类与佣金解析，不访问数据库
func (s *ImportService) plan(order legacy.Order, resolver *IdentityResolver) *orderPlan {
	legacyID := order.ID.Int64()
	productID := order.ProductID.Int64()
	productName := strings.TrimSpace(order.ProductName)
	status, statusKnown := legacy.MapStatus(order.Status)

	plan := &orderPlan{
		legacyID:   legacyID,
		buyer:      resolver.ResolveBuyer(order.UserID.Int64()),
		class:      s.rules.ClassifyOrder(productID, productName, order.GrandTotal),
		commission: s.rules.ResolveCommission(productID, productName, order.GrandTotal),
	}

	txnType := constants.TransactionTypeProduct
	if plan.class.IsMembership() {
		txnType = constants.TransactionTypeMembership
	}
	tier := ""
	if plan.class.Resolved() {
		tier = plan.class.Tier.String()
	}
	plan.transaction = models.Transaction{
		LegacyOrderID:     legacyID,
		UserID:            plan.buyer.UserID,
		Type:              txnType,
		Status:            status,
		LegacyStatus:      legacy.NormalizeStatus(order.Status),
		Amount:            models.NewMoneyFromDecimal(order.GrandTotal),
		Currency:          constants.DefaultCurrency,
		LegacyProductID:   productID,
		ProductName:       productName,
		MembershipTier:    tier,
		ClassificationVia: string(plan.class.Via),
		LegacyAffiliateID: order.AffiliateID.Int64(),
		RulesVersion:      s.rules.Version(),
		OccurredAt:        order.CreatedAt.Time,
	}

	base := models.ReviewItem{
		LegacyOrderID:   legacyID,
		LegacyProductID: productID,
		ProductName:     productName,
		GrandTotal:      models.NewMoneyFromDecimal(order.GrandTotal),
		Status:          constants.ReviewStatusOpen,
	}
	if !statusKnown {
		item := base
		item.Kind = constants.ReviewKindStatus
		item.Reason = reviewReasonUnknownStatus
		item.Details = models.JSON{"legacy_status": order.Status}
		plan.reviews = append(plan.reviews, item)
		logger.Warnw("import_order_unknown_status", "legacy_order_id", legacyID, "status", order.Status)
	}

	success := status == constants.TransactionStatusSuccess
	if success && !plan.class.Resolved() {
		item := base
		item.Kind = constants.ReviewKindClassification
		item.Reason = plan.class.Reason
		item.Details = models.JSON{"via": string(plan.class.Via)}
		plan.reviews = append(plan.reviews, item)
	}

	if !order.HasAffiliate() {
		return plan
	}
	plan.affiliate = resolver.ResolveAffiliate(order.AffiliateID.Int64())
	if plan.affiliate.Resolved() {
		affiliateUserID := plan.affiliate.UserID
		plan.transaction.AffiliateUserID = &affiliateUserID
	}
	if plan.commission.Resolved() {
		plan.transaction.CommissionAmount = models.NewMoneyFromRupiah(plan.commission.Amount)
		plan.transaction.CommissionVia = string(plan.commission.Via)
		plan.transaction.CommissionEstimated = plan.commission.Estimated()
	}
	if success && plan.affiliate.Resolved() && plan.commission.Resolved() {
		plan.desiredCommission = plan.commission.Amount
	}
	if !success {
		return plan
	}

	if !plan.affiliate.Resolved() {
		item := base
		item.Kind = constants.ReviewKindAffiliate
		item.Reason = plan.affiliate.Reason
		item.Details = models.JSON{
			"legacy_affiliate_id": order.AffiliateID.Int64(),
			"email":               plan.affiliate.Email,
		}
		plan.reviews = append(plan.reviews, item)
	}
	reason := ""
	switch {
	case plan.commission.Ambiguous:
		reason = reviewReasonPriceCollision
	case !plan.commission.Resolved():
		reason = plan.commission.Reason
	case s.opts.ReviewEstimates && plan.commission.Estimated():
		reason = reviewReasonEstimatedBy + string(plan.commission.Via)
	}
	if reason != "" {
		item := base
		item.Kind = constants.ReviewKindCommission
		item.Reason = reason
		item.Details = models.JSON{
			"via":        string(plan.commission.Via),
			"amount":     plan.commission.Amount,
			"candidates": plan.commission.Candidates,
		}
		plan.reviews = append(plan.reviews, item)
	}
	return plan
}

// writeOrder 在事务内写入交易、推广转化、会员与复核项
func (s *ImportService) writeOrder(tx *gorm.DB, plan *orderPlan, current *models.Transaction, conversion *models.AffiliateConversion, conversionLoaded bool, runID string) (orderOutcome, error) {
	var out orderOutcome
	txnRepo := s.txnRepo.WithTx(tx)

	desired := plan.transaction
	desired.ImportRunID = runID
	switch {
	case current == nil:
		if err := txnRepo.Create(&desired); err != nil {
			return out, err
		}
		out.txn = &desired
		out.txnAction = txnActionCreated
	case transactionMatches(current, &desired):
		out.txn = current
		out.txnAction = txnActionUnchanged
	default:
		applyTransactionFields(current, &desired)
		current.ImportRunID = runID
		if err := txnRepo.Update(current); err != nil {
			return out, err
		}
		out.txn = current
		out.txnAction = txnActionUpdated
	}
	txn := out.txn

	var profile *models.AffiliateProfile
	if plan.desiredCommission > 0 {
		ensured, err := s.affiliateSvc.EnsureProfileTx(tx, plan.affiliate.UserID, plan.transaction.LegacyAffiliateID)
		if err != nil {
			return out, err
		}
		profile = ensured
	}
	action, err := s.affiliateSvc.ApplyConversionTx(tx, ConversionInput{
		Transaction:   txn,
		Profile:       profile,
		Desired:       plan.desiredCommission,
		RunID:         runID,
		Current:       conversion,
		CurrentLoaded: conversionLoaded,
	})
	if err != nil {
		return out, err
	}
	out.conversion = action

	out.grant = GrantSkipped
	if txn.Status == constants.TransactionStatusSuccess && plan.class.IsMembership() {
		start := txn.OccurredAt
		if start.IsZero() {
			start = txn.CreatedAt
		}
		txnID := txn.ID
		grant, err := s.membershipSvc.GrantTx(tx, GrantInput{
			UserID:        txn.UserID,
			Tier:          plan.class.Tier,
			Start:         start,
			TransactionID: &txnID,
		})
		if err != nil {
			return out, err
		}
		out.grant = grant
	}

	reviewRepo := s.reviewRepo.WithTx(tx)
	for i := range plan.reviews {
		item := plan.reviews[i]
		item.ImportRunID = runID
		created, err := reviewRepo.CreateIfAbsent(&item)
		if err != nil {
			return out, err
		}
		if created {
			out.reviews = append(out.reviews, item.Kind)
		}
	}
	return out, nil
}

func transactionMatches(current, desired *models.Transaction) bool {
	return current.UserID == desired.UserID &&
		current.Type == desired.Type &&
		current.Status == desired.Status &&
		current.LegacyStatus == desired.LegacyStatus &&
		current.Amount.Equal(desired.Amount.Decimal) &&
		current.Currency == desired.Currency &&
		current.LegacyProductID == desired.LegacyProductID &&
		current.ProductName == desired.ProductName &&
		current.MembershipTier == desired.MembershipTier &&
		current.ClassificationVia == desired.ClassificationVia &&
		equalUintPtr(current.AffiliateUserID, desired.AffiliateUserID) &&
		current.LegacyAffiliateID == desired.LegacyAffiliateID &&
		current.CommissionAmount.Equal(desired.CommissionAmount.Decimal) &&
		current.CommissionVia == desired.CommissionVia &&
		current.CommissionEstimated == desired.CommissionEstimated &&
		current.RulesVersion == desired.RulesVersion &&
		current.OccurredAt.Equal(desired.OccurredAt)
}

func applyTransactionFields(current, desired *models.Transaction) {
	current.UserID = desired.UserID
	current.Type = desired.Type
	current.Status = desired.Status
	current.LegacyStatus = desired.LegacyStatus
	current.Amount = desired.Amount
	current.Currency = desired.Currency
	current.LegacyProductID = desired.LegacyProductID
	current.ProductName = desired.ProductName
	current.MembershipTier = desired.MembershipTier
	current.ClassificationVia = desired.ClassificationVia
	current.AffiliateUserID = desired.AffiliateUserID
	current.LegacyAffiliateID = desired.LegacyAffiliateID
	current.CommissionAmount = desired.CommissionAmount
	current.CommissionVia = desired.CommissionVia
	current.CommissionEstimated = desired.CommissionEstimated
	current.RulesVersion = desired.RulesVersion
	current.OccurredAt = desired.OccurredAt
}

func equalUintPtr(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
