package service

import (
	"testing"

	"github.com/eksporyuk-migrate/internal/constants"
	"github.com/eksporyuk-migrate/internal/models"

	"gorm.io/gorm"
)

func createServiceTransaction(t *testing.T, db *gorm.DB, legacyOrderID int64, buyerID uint) *models.Transaction {
	t.Helper()
	txn := &models.Transaction{
		LegacyOrderID:    legacyOrderID,
		UserID:           buyerID,
		Type:             constants.TransactionTypeProduct,
		Status:           constants.TransactionStatusSuccess,
		Amount:           models.NewMoneyFromRupiah(500000),
		Currency:         constants.DefaultCurrency,
		CommissionAmount: models.NewMoneyFromRupiah(100000),
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("create transaction failed: %v", err)
	}
	return txn
}

func TestAffiliateServiceEnsureProfileTx(t *testing.T) {
	db := setupServiceTestDB(t)
	svcs := newTestServices(t, db)
	first := createServiceUser(t, db, "first@example.com", 55)
	second := createServiceUser(t, db, "second@example.com", 56)

	var profile, again, other *models.AffiliateProfile
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		if profile, err = svcs.affSvc.EnsureProfileTx(tx, first.ID, 55); err != nil {
			return err
		}
		if again, err = svcs.affSvc.EnsureProfileTx(tx, first.ID, 55); err != nil {
			return err
		}
		other, err = svcs.affSvc.EnsureProfileTx(tx, second.ID, 55)
		return err
	})
	if err != nil {
		t.Fatalf("ensure profile failed: %v", err)
	}
	if profile.ID != again.ID || len(profile.AffiliateCode) != affiliateCodeLength {
		t.Fatalf("expected stable profile with generated code, got %+v %+v", profile, again)
	}
	if profile.LegacyAffiliateID == nil || *profile.LegacyAffiliateID != 55 {
		t.Fatalf("expected legacy id attached, got %+v", profile.LegacyAffiliateID)
	}
	if other.LegacyAffiliateID != nil {
		t.Fatalf("legacy id already owned must not be attached twice")
	}
}

func TestAffiliateServiceConversionLifecycle(t *testing.T) {
	db := setupServiceTestDB(t)
	svcs := newTestServices(t, db)
	buyer := createServiceUser(t, db, "buyer@example.com", 10)
	first := createServiceUser(t, db, "first@example.com", 55)
	second := createServiceUser(t, db, "second@example.com", 56)
	txn := createServiceTransaction(t, db, 700, buyer.ID)

	apply := func(userID uint, legacyID int64, desired int64, runID string) ConversionAction {
		t.Helper()
		var action ConversionAction
		err := db.Transaction(func(tx *gorm.DB) error {
			var profile *models.AffiliateProfile
			if desired > 0 {
				var err error
				if profile, err = svcs.affSvc.EnsureProfileTx(tx, userID, legacyID); err != nil {
					return err
				}
			}
			var err error
			action, err = svcs.affSvc.ApplyConversionTx(tx, ConversionInput{
				Transaction: txn,
				Profile:     profile,
				Desired:     desired,
				RunID:       runID,
			})
			return err
		})
		if err != nil {
			t.Fatalf("apply conversion failed: %v", err)
		}
		return action
	}
	balance := func(userID uint) int64 {
		t.Helper()
		account, err := svcs.wallets.GetAccountByUserID(userID)
		if err != nil {
			t.Fatalf("get account failed: %v", err)
		}
		if account == nil {
			return 0
		}
		return account.Balance.Rupiah()
	}

	if action := apply(0, 0, 0, "run-0"); action != ConversionNone {
		t.Fatalf("expected none without commission, got %s", action)
	}
	if action := apply(first.ID, 55, 100000, "run-1"); action != ConversionCreated {
		t.Fatalf("expected created, got %s", action)
	}
	if action := apply(first.ID, 55, 100000, "run-2"); action != ConversionUnchanged {
		t.Fatalf("expected unchanged, got %s", action)
	}
	if action := apply(first.ID, 55, 80000, "run-3"); action != ConversionAdjusted {
		t.Fatalf("expected adjusted, got %s", action)
	}
	if balance(first.ID) != 80000 {
		t.Fatalf("expected first balance 80000, got %d", balance(first.ID))
	}
	if action := apply(second.ID, 56, 120000, "run-4"); action != ConversionReassigned {
		t.Fatalf("expected reassigned, got %s", action)
	}
	if balance(first.ID) != 0 || balance(second.ID) != 120000 {
		t.Fatalf("unexpected balances after reassignment: first=%d second=%d", balance(first.ID), balance(second.ID))
	}
	firstProfile, _ := svcs.affiliates.GetProfileByUserID(first.ID)
	secondProfile, _ := svcs.affiliates.GetProfileByUserID(second.ID)
	if firstProfile.TotalConversions != 0 || secondProfile.TotalConversions != 1 {
		t.Fatalf("unexpected conversion counters: first=%d second=%d", firstProfile.TotalConversions, secondProfile.TotalConversions)
	}

	if action := apply(0, 0, 0, "run-5"); action != ConversionReversed {
		t.Fatalf("expected reversed, got %s", action)
	}
	if balance(second.ID) != 0 {
		t.Fatalf("expected second balance 0, got %d", balance(second.ID))
	}
	conversion, err := svcs.affiliates.GetConversionByTransactionID(txn.ID)
	if err != nil || conversion == nil {
		t.Fatalf("conversion missing: %v", err)
	}
	if conversion.Status != constants.ConversionStatusReversed || !conversion.CommissionAmount.IsZero() {
		t.Fatalf("unexpected reversed conversion: %+v", conversion)
	}
	if action := apply(0, 0, 0, "run-6"); action != ConversionUnchanged {
		t.Fatalf("expected unchanged on reversed conversion, got %s", action)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if isUniqueViolation(nil) {
		t.Fatalf("nil must not be a unique violation")
	}
	db := setupServiceTestDB(t)
	createServiceUser(t, db, "dup@example.com", 0)
	err := db.Create(&models.User{Email: "dup@example.com", PasswordHash: "x"}).Error
	if !isUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
}
