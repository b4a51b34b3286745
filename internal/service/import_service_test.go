package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eksporyuk-migrate/internal/cache"
	"github.com/eksporyuk-migrate/internal/constants"
	"github.com/eksporyuk-migrate/internal/legacy"
	"github.com/eksporyuk-migrate/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func promoExport(total int64) *legacy.Export {
	return &legacy.Export{
		Orders: []legacy.Order{
			testOrder(9001, 10, 0, "Promo Merdeka 80", total, 55, "completed"),
		},
		Users: testLegacyUsers(),
	}
}

func TestImportServicePromoOrderScenario(t *testing.T) {
	db := setupServiceTestDB(t)
	buyer := createServiceUser(t, db, "buyer@example.com", 10)
	affiliate := createServiceUser(t, db, "affiliate@example.com", 55)
	svcs := newTestServices(t, db)

	stats, err := svcs.importService(ImportOptions{}).Run(context.Background(), ImportInput{
		Export:  promoExport(799000),
		Execute: true,
	})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if stats.Created != 1 || stats.Conversions != 1 || stats.MembershipsGranted != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Watermark != 9001 {
		t.Fatalf("expected watermark 9001, got %d", stats.Watermark)
	}
	if stats.ReviewKinds[constants.ReviewKindCommission] != 1 {
		t.Fatalf("expected ambiguous commission review, got %+v", stats.ReviewKinds)
	}

	txn, err := svcs.txns.GetByLegacyOrderID(9001)
	if err != nil || txn == nil {
		t.Fatalf("transaction missing: %v", err)
	}
	if txn.MembershipTier != constants.MembershipTierTwelveMonths || txn.Type != constants.TransactionTypeMembership {
		t.Fatalf("unexpected classification: %+v", txn)
	}
	if txn.CommissionAmount.Rupiah() != 250000 || !txn.CommissionEstimated {
		t.Fatalf("expected estimated commission 250000, got %s", txn.CommissionAmount.String())
	}
	if txn.UserID != buyer.ID || txn.AffiliateUserID == nil || *txn.AffiliateUserID != affiliate.ID {
		t.Fatalf("unexpected identities: %+v", txn)
	}

	conversion, err := svcs.affiliates.GetConversionByTransactionID(txn.ID)
	if err != nil || conversion == nil {
		t.Fatalf("conversion missing: %v", err)
	}
	if conversion.CommissionAmount.Rupiah() != 250000 {
		t.Fatalf("unexpected conversion amount: %s", conversion.CommissionAmount.String())
	}
	account, err := svcs.wallets.GetAccountByUserID(affiliate.ID)
	if err != nil || account == nil {
		t.Fatalf("wallet missing: %v", err)
	}
	if account.Balance.Rupiah() != 250000 {
		t.Fatalf("expected wallet 250000, got %s", account.Balance.String())
	}

	var membership models.UserMembership
	if err := db.Where("user_id = ?", buyer.ID).First(&membership).Error; err != nil {
		t.Fatalf("membership missing: %v", err)
	}
	if membership.Tier != constants.MembershipTierTwelveMonths || membership.EndDate == nil {
		t.Fatalf("unexpected membership: %+v", membership)
	}
	reloaded, _ := svcs.users.GetByID(buyer.ID)
	if reloaded.Role != constants.UserRoleMemberPremium {
		t.Fatalf("expected premium role, got %s", reloaded.Role)
	}

	var review models.ReviewItem
	if err := db.Where("legacy_order_id = ? AND kind = ?", 9001, constants.ReviewKindCommission).First(&review).Error; err != nil {
		t.Fatalf("review missing: %v", err)
	}
	if review.Reason != reviewReasonPriceCollision {
		t.Fatalf("expected price collision reason, got %s", review.Reason)
	}

	run, err := svcs.runs.GetByRunID(stats.RunID)
	if err != nil || run == nil {
		t.Fatalf("import run missing: %v", err)
	}
	if run.Status != constants.ImportRunStatusFinished || run.DryRun || run.WatermarkLegacyOrderID != 9001 {
		t.Fatalf("unexpected run: %+v", run)
	}
}

func TestImportServiceRerunIsUnchanged(t *testing.T) {
	db := setupServiceTestDB(t)
	createServiceUser(t, db, "buyer@example.com", 10)
	createServiceUser(t, db, "affiliate@example.com", 55)
	svc := newTestServices(t, db).importService(ImportOptions{})

	if _, err := svc.Run(context.Background(), ImportInput{Export: promoExport(799000), Execute: true}); err != nil {
		t.Fatalf("first import failed: %v", err)
	}
	stats, err := svc.Run(context.Background(), ImportInput{Export: promoExport(799000), Execute: true})
	if err != nil {
		t.Fatalf("second import failed: %v", err)
	}
	if stats.Unchanged != 1 || stats.Created != 0 || stats.Updated != 0 {
		t.Fatalf("expected unchanged order, got %+v", stats)
	}
	if stats.PreviousWatermark != 9001 {
		t.Fatalf("expected previous watermark 9001 from executed run, got %d", stats.PreviousWatermark)
	}
	if stats.Conversions != 0 || stats.MembershipsGranted != 0 || stats.Reviewed != 0 {
		t.Fatalf("expected no writes on rerun, got %+v", stats)
	}
	if got := countRows(t, db, &models.WalletTransaction{}); got != 1 {
		t.Fatalf("expected 1 wallet transaction, got %d", got)
	}
	if got := countRows(t, db, &models.ImportRun{}); got != 2 {
		t.Fatalf("expected 2 import runs, got %d", got)
	}
}

func TestImportServiceToolPurchaseGrantsNoMembership(t *testing.T) {
	db := setupServiceTestDB(t)
	buyer := createServiceUser(t, db, "buyer@example.com", 10)
	createServiceUser(t, db, "affiliate@example.com", 55)
	svcs := newTestServices(t, db)

	export := &legacy.Export{
		Orders: []legacy.Order{
			testOrder(9101, 10, 0, "Ekspor Yuk Automation", 499000, 55, "completed"),
			testOrder(9102, 10, 0, "Aplikasi EYA + Kelas", 599000, 0, "completed"),
		},
		Users: testLegacyUsers(),
	}
	stats, err := svcs.importService(ImportOptions{}).Run(context.Background(), ImportInput{Export: export, Execute: true})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if stats.MembershipsGranted != 0 {
		t.Fatalf("tool purchases must not grant membership: %+v", stats)
	}
	var memberships int64
	if err := db.Model(&models.UserMembership{}).Where("user_id = ?", buyer.ID).Count(&memberships).Error; err != nil {
		t.Fatalf("count memberships failed: %v", err)
	}
	if memberships != 0 {
		t.Fatalf("expected no membership for tool buyer, got %d", memberships)
	}
	txn, err := svcs.txns.GetByLegacyOrderID(9101)
	if err != nil || txn == nil {
		t.Fatalf("tool transaction missing: %v", err)
	}
	if txn.MembershipTier == constants.MembershipTierTwelveMonths {
		t.Fatalf("tool transaction classified as membership: %+v", txn)
	}
	if stats.ReviewKinds[constants.ReviewKindClassification] != 1 {
		t.Fatalf("expected bundled tool without membership keyword to be reviewed, got %+v", stats.ReviewKinds)
	}
}

func TestImportServiceCommissionChangeCreditsDelta(t *testing.T) {
	db := setupServiceTestDB(t)
	createServiceUser(t, db, "buyer@example.com", 10)
	affiliate := createServiceUser(t, db, "affiliate@example.com", 55)
	svcs := newTestServices(t, db)
	svc := svcs.importService(ImportOptions{})

	if _, err := svc.Run(context.Background(), ImportInput{Export: promoExport(799000), Execute: true}); err != nil {
		t.Fatalf("first import failed: %v", err)
	}
	// 899000 命中精确价格表 300000
	stats, err := svc.Run(context.Background(), ImportInput{Export: promoExport(899000), Execute: true})
	if err != nil {
		t.Fatalf("second import failed: %v", err)
	}
	if stats.Updated != 1 || stats.Conversions != 1 {
		t.Fatalf("expected updated order with adjusted conversion, got %+v", stats)
	}

	account, err := svcs.wallets.GetAccountByUserID(affiliate.ID)
	if err != nil || account == nil {
		t.Fatalf("wallet missing: %v", err)
	}
	if account.Balance.Rupiah() != 300000 {
		t.Fatalf("expected wallet 300000, got %s", account.Balance.String())
	}
	items, err := svcs.wallets.ListTransactionsByUser(affiliate.ID)
	if err != nil {
		t.Fatalf("list wallet transactions failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected initial credit plus delta, got %d", len(items))
	}
	var delta *models.WalletTransaction
	for i := range items {
		if items[i].Type == constants.WalletTxnTypeCommissionAdjust {
			delta = &items[i]
		}
	}
	if delta == nil || delta.Amount.Rupiah() != 50000 || delta.Direction != constants.WalletTxnDirectionIn {
		t.Fatalf("expected +50000 adjustment, got %+v", delta)
	}

	profile, err := svcs.affiliates.GetProfileByUserID(affiliate.ID)
	if err != nil || profile == nil {
		t.Fatalf("profile missing: %v", err)
	}
	if profile.TotalEarnings.Rupiah() != 300000 || profile.TotalConversions != 1 {
		t.Fatalf("unexpected profile totals: %+v", profile)
	}
}

func TestImportServiceDryRunWritesNothing(t *testing.T) {
	db := setupServiceTestDB(t)
	createServiceUser(t, db, "buyer@example.com", 10)
	createServiceUser(t, db, "affiliate@example.com", 55)
	svc := newTestServices(t, db).importService(ImportOptions{})

	stats, err := svc.Run(context.Background(), ImportInput{Export: promoExport(799000)})
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if !stats.DryRun || stats.Created != 1 || stats.Conversions != 1 {
		t.Fatalf("expected planned writes in stats, got %+v", stats)
	}
	for name, model := range map[string]interface{}{
		"transactions":        &models.Transaction{},
		"conversions":         &models.AffiliateConversion{},
		"wallet transactions": &models.WalletTransaction{},
		"user memberships":    &models.UserMembership{},
		"review items":        &models.ReviewItem{},
		"affiliate profiles":  &models.AffiliateProfile{},
	} {
		if got := countRows(t, db, model); got != 0 {
			t.Fatalf("expected no %s after dry run, got %d", name, got)
		}
	}
	run, err := newTestServices(t, db).runs.GetByRunID(stats.RunID)
	if err != nil || run == nil || !run.DryRun {
		t.Fatalf("expected dry run record, got %+v %v", run, err)
	}
}

func TestImportServiceSkipsUnresolvedBuyers(t *testing.T) {
	db := setupServiceTestDB(t)
	createServiceUser(t, db, "buyer@example.com", 10)
	svc := newTestServices(t, db).importService(ImportOptions{})

	export := &legacy.Export{
		Orders: []legacy.Order{
			testOrder(1, 999, 0, "Kelas Ekspor", 699000, 0, "completed"),
			testOrder(2, 77, 0, "Kelas Ekspor", 699000, 0, "completed"),
			testOrder(3, 10, 0, "Webinar Ekspor", 99000, 0, "completed"),
		},
		Users: testLegacyUsers(),
	}
	stats, err := svc.Run(context.Background(), ImportInput{Export: export, Execute: true})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if stats.Skipped != 2 || stats.Created != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.SkipReasons[IdentityReasonLegacyUserUnknown] != 1 || stats.SkipReasons[IdentityReasonUserNotImported] != 1 {
		t.Fatalf("unexpected skip reasons: %+v", stats.SkipReasons)
	}
	if stats.Watermark != 3 {
		t.Fatalf("expected watermark 3, got %d", stats.Watermark)
	}
	if got := countRows(t, db, &models.UserMembership{}); got != 0 {
		t.Fatalf("webinar must not grant membership, got %d", got)
	}
}

func TestImportServiceUnknownStatusQueuesReview(t *testing.T) {
	db := setupServiceTestDB(t)
	createServiceUser(t, db, "buyer@example.com", 10)
	svcs := newTestServices(t, db)

	export := &legacy.Export{
		Orders: []legacy.Order{testOrder(5, 10, 0, "Kelas Ekspor Lifetime", 1500000, 0, "on-review")},
		Users:  testLegacyUsers(),
	}
	stats, err := svcs.importService(ImportOptions{}).Run(context.Background(), ImportInput{Export: export, Execute: true})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if stats.ReviewKinds[constants.ReviewKindStatus] != 1 {
		t.Fatalf("expected status review, got %+v", stats.ReviewKinds)
	}
	txn, _ := svcs.txns.GetByLegacyOrderID(5)
	if txn == nil || txn.Status != constants.TransactionStatusPending {
		t.Fatalf("expected pending transaction, got %+v", txn)
	}
	if stats.MembershipsGranted != 0 {
		t.Fatalf("pending order must not grant membership")
	}
}

func TestImportServiceRollsBackOrderOnConversionFailure(t *testing.T) {
	db := setupServiceTestDB(t)
	createServiceUser(t, db, "buyer@example.com", 10)
	createServiceUser(t, db, "affiliate@example.com", 55)
	svc := newTestServices(t, db).importService(ImportOptions{})

	err := db.Callback().Create().Before("gorm:create").Register("test:fail_conversions", func(tx *gorm.DB) {
		if tx.Statement.Table == "affiliate_conversions" {
			_ = tx.AddError(errors.New("conversion write failed"))
		}
	})
	if err != nil {
		t.Fatalf("register callback failed: %v", err)
	}

	stats, err := svc.Run(context.Background(), ImportInput{Export: promoExport(799000), Execute: true})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if stats.Failed != 1 || stats.Created != 0 {
		t.Fatalf("expected failed order, got %+v", stats)
	}
	for name, model := range map[string]interface{}{
		"transactions":        &models.Transaction{},
		"wallet transactions": &models.WalletTransaction{},
		"user memberships":    &models.UserMembership{},
		"review items":        &models.ReviewItem{},
	} {
		if got := countRows(t, db, model); got != 0 {
			t.Fatalf("expected %s rolled back, got %d", name, got)
		}
	}
}

func TestImportServiceHonoursRedisLock(t *testing.T) {
	server := miniredis.RunT(t)
	cache.UseClient(redis.NewClient(&redis.Options{Addr: server.Addr()}), "test")
	t.Cleanup(func() { cache.UseClient(nil, "") })

	db := setupServiceTestDB(t)
	createServiceUser(t, db, "buyer@example.com", 10)
	svc := newTestServices(t, db).importService(ImportOptions{})

	lock, err := cache.AcquireLock(context.Background(), importLockName, time.Minute)
	if err != nil {
		t.Fatalf("acquire lock failed: %v", err)
	}
	if _, err := svc.Run(context.Background(), ImportInput{Export: promoExport(799000)}); !errors.Is(err, ErrImportLocked) {
		t.Fatalf("expected ErrImportLocked, got %v", err)
	}
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, err := svc.Run(context.Background(), ImportInput{Export: promoExport(799000)}); err != nil {
		t.Fatalf("expected run after release, got %v", err)
	}
}

func TestImportServiceRejectsEmptyExport(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newTestServices(t, db).importService(ImportOptions{})
	if _, err := svc.Run(context.Background(), ImportInput{Export: &legacy.Export{}}); !errors.Is(err, ErrImportSourceEmpty) {
		t.Fatalf("expected ErrImportSourceEmpty, got %v", err)
	}
}
