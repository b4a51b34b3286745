//go:build integration
// +build integration

package repository

import (
	"os"
	"strings"
	"testing"

	"github.com/eksporyuk-migrate/internal/constants"
	"github.com/eksporyuk-migrate/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := []interface{}{
		&models.AffiliateConversion{},
		&models.AffiliateProfile{},
		&models.Transaction{},
		&models.ReviewItem{},
		&models.User{},
	}
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Transaction{},
		&models.AffiliateProfile{},
		&models.AffiliateConversion{},
		&models.ReviewItem{},
	); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func TestPostgresReviewKeywordSearch(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewReviewRepository(db)

	item := &models.ReviewItem{
		LegacyOrderID: 9001,
		Kind:          constants.ReviewKindCommission,
		Reason:        "price_collision",
		ProductName:   "Promo Merdeka 80",
	}
	if _, err := repo.CreateIfAbsent(item); err != nil {
		t.Fatalf("create review item failed: %v", err)
	}
	rows, total, err := repo.List(ReviewListFilter{Page: 1, PageSize: 20, Keyword: "merdeka"})
	if err != nil {
		t.Fatalf("review list search failed: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("review list search want 1 got total=%d len=%d", total, len(rows))
	}
}

func TestPostgresReportQueries(t *testing.T) {
	db := setupPostgresIntegrationDB(t)

	buyer := &models.User{Email: "buyer@example.com", PasswordHash: "x"}
	affiliate := &models.User{Email: "aff@example.com", PasswordHash: "x"}
	for _, user := range []*models.User{buyer, affiliate} {
		if err := db.Create(user).Error; err != nil {
			t.Fatalf("create user failed: %v", err)
		}
	}
	profile := &models.AffiliateProfile{UserID: affiliate.ID, AffiliateCode: "PG55", Status: constants.AffiliateProfileStatusActive}
	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("create profile failed: %v", err)
	}
	txn := &models.Transaction{
		LegacyOrderID:    9001,
		UserID:           buyer.ID,
		Type:             constants.TransactionTypeMembership,
		Status:           constants.TransactionStatusSuccess,
		Amount:           models.NewMoneyFromRupiah(799000),
		CommissionAmount: models.NewMoneyFromRupiah(250000),
		AffiliateUserID:  &affiliate.ID,
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("create txn failed: %v", err)
	}

	repo := NewReportRepository(db)
	counts, err := repo.InvariantCounts()
	if err != nil {
		t.Fatalf("invariant counts failed: %v", err)
	}
	if counts.MissingConversions != 1 {
		t.Fatalf("expected 1 missing conversion, got %+v", counts)
	}
	totals, err := repo.Totals()
	if err != nil {
		t.Fatalf("totals failed: %v", err)
	}
	if totals.Revenue.IntPart() != 799000 || totals.CommissionTotal.IntPart() != 250000 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}
