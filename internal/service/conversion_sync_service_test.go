package service

import (
	"context"
	"testing"

	"github.com/eksporyuk-migrate/internal/models"
)

func TestConversionSyncServiceRun(t *testing.T) {
	db := setupServiceTestDB(t)
	svcs := newTestServices(t, db)
	buyer := createServiceUser(t, db, "buyer@example.com", 10)
	affiliate := createServiceUser(t, db, "affiliate@example.com", 55)

	txn := createServiceTransaction(t, db, 800, buyer.ID)
	affiliateID := affiliate.ID
	txn.AffiliateUserID = &affiliateID
	txn.LegacyAffiliateID = 55
	if err := db.Save(txn).Error; err != nil {
		t.Fatalf("update transaction failed: %v", err)
	}
	createServiceTransaction(t, db, 801, buyer.ID)

	svc := NewConversionSyncService(db, svcs.txns, svcs.affSvc, nil, 0)

	dry, err := svc.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("dry sync failed: %v", err)
	}
	if dry.Missing != 1 || dry.Created != 1 {
		t.Fatalf("unexpected dry stats: %+v", dry)
	}
	if got := countRows(t, db, &models.AffiliateConversion{}); got != 0 {
		t.Fatalf("dry run must not write conversions, got %d", got)
	}

	stats, err := svc.Run(context.Background(), true)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if stats.Missing != 1 || stats.Created != 1 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	account, _ := svcs.wallets.GetAccountByUserID(affiliate.ID)
	if account == nil || account.Balance.Rupiah() != 100000 {
		t.Fatalf("expected wallet credit 100000, got %+v", account)
	}

	walletBefore := countRows(t, db, &models.WalletTransaction{})
	again, err := svc.Run(context.Background(), true)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if again.Missing != 0 || again.Created != 0 {
		t.Fatalf("expected nothing missing, got %+v", again)
	}
	if got := countRows(t, db, &models.WalletTransaction{}); got != walletBefore {
		t.Fatalf("expected zero writes, wallet rows %d -> %d", walletBefore, got)
	}
}
