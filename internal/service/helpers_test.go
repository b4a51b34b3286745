package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/eksporyuk-migrate/internal/constants"
	"github.com/eksporyuk-migrate/internal/legacy"
	"github.com/eksporyuk-migrate/internal/models"
	"github.com/eksporyuk-migrate/internal/repository"
	"github.com/eksporyuk-migrate/internal/rules"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if err := models.SeedMemberships(db); err != nil {
		t.Fatalf("seed memberships failed: %v", err)
	}
	return db
}

func createServiceUser(t *testing.T, db *gorm.DB, email string, legacyID int64) *models.User {
	t.Helper()
	user := &models.User{
		Email:        email,
		PasswordHash: "x",
		Role:         constants.UserRoleMemberFree,
		Status:       constants.UserStatusActive,
	}
	if legacyID > 0 {
		id := legacyID
		user.LegacyUserID = &id
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return user
}

func loadTestRules(t *testing.T) *rules.RuleSet {
	t.Helper()
	rs, err := rules.LoadDefault()
	if err != nil {
		t.Fatalf("load rules failed: %v", err)
	}
	return rs
}

// testServices 测试用服务集合
type testServices struct {
	db         *gorm.DB
	rules      *rules.RuleSet
	users      *repository.GormUserRepository
	txns       *repository.GormTransactionRepository
	affiliates *repository.GormAffiliateRepository
	wallets    *repository.GormWalletRepository
	reviews    *repository.GormReviewRepository
	runs       *repository.GormImportRunRepository
	memberSvc  *MembershipService
	walletSvc  *WalletService
	affSvc     *AffiliateService
}

func newTestServices(t *testing.T, db *gorm.DB) *testServices {
	t.Helper()
	users := repository.NewUserRepository(db)
	affiliates := repository.NewAffiliateRepository(db)
	wallets := repository.NewWalletRepository(db)
	walletSvc := NewWalletService(wallets)
	return &testServices{
		db:         db,
		rules:      loadTestRules(t),
		users:      users,
		txns:       repository.NewTransactionRepository(db),
		affiliates: affiliates,
		wallets:    wallets,
		reviews:    repository.NewReviewRepository(db),
		runs:       repository.NewImportRunRepository(db),
		memberSvc:  NewMembershipService(repository.NewMembershipRepository(db), users),
		walletSvc:  walletSvc,
		affSvc:     NewAffiliateService(affiliates, walletSvc),
	}
}

func (s *testServices) importService(opts ImportOptions) *ImportService {
	return NewImportService(s.db, s.rules, s.users, s.txns, s.affiliates, s.reviews, s.runs, s.affSvc, s.memberSvc, nil, opts)
}

func testOrder(id, userID, productID int64, name string, total int64, affiliateID int64, status string) legacy.Order {
	return legacy.Order{
		ID:          legacy.FlexInt(id),
		UserID:      legacy.FlexInt(userID),
		ProductID:   legacy.FlexInt(productID),
		ProductName: name,
		GrandTotal:  decimal.NewFromInt(total),
		AffiliateID: legacy.FlexInt(affiliateID),
		Status:      status,
		CreatedAt:   legacy.Time{Time: time.Date(2024, 8, 17, 10, 0, 0, 0, time.UTC)},
	}
}

func testLegacyUsers() []legacy.User {
	return []legacy.User{
		{ID: 10, Email: "Buyer@Example.com", DisplayName: "Buyer"},
		{ID: 55, Email: "affiliate@example.com", DisplayName: "Affiliate"},
		{ID: 77, Email: "ghost@example.com", DisplayName: "Not Imported"},
	}
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return count
}
