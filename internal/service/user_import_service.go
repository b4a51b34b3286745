package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/eksporyuk-migrate/internal/constants"
	"github.com/eksporyuk-migrate/internal/legacy"
	"github.com/eksporyuk-migrate/internal/logger"
	"github.com/eksporyuk-migrate/internal/models"
	"github.com/eksporyuk-migrate/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserImportInput 用户导入输入
type UserImportInput struct {
	Users   []legacy.User
	Execute bool
}

// UserImportStats 用户导入统计
type UserImportStats struct {
	DryRun     bool `json:"dry_run"`
	Total      int  `json:"total"`
	Created    int  `json:"created"`
	Linked     int  `json:"linked"`   // 已有用户补齐旧系统ID
	Existing   int  `json:"existing"` // 已有用户无需变更
	Duplicates int  `json:"duplicates"`
	Invalid    int  `json:"invalid"`
	Failed     int  `json:"failed"`
}

// UserImportService 旧系统用户导入
type UserImportService struct {
	db          *gorm.DB
	userRepo    *repository.GormUserRepository
	walletRepo  *repository.GormWalletRepository
	placeholder string
}

// NewUserImportService 创建用户导入服务；placeholder 为空时每次导入生成随机占位密码
func NewUserImportService(db *gorm.DB, userRepo *repository.GormUserRepository, walletRepo *repository.GormWalletRepository, placeholder string) *UserImportService {
	return &UserImportService{db: db, userRepo: userRepo, walletRepo: walletRepo, placeholder: strings.TrimSpace(placeholder)}
}

// Run 按规范化邮箱去重导入用户，新用户使用随机占位密码并开通空钱包
func (s *UserImportService) Run(ctx context.Context, input UserImportInput) (*UserImportStats, error) {
	stats := &UserImportStats{DryRun: !input.Execute}
	if len(input.Users) == 0 {
		return stats, ErrImportSourceEmpty
	}
	password := s.placeholder
	if password == "" {
		password = uuid.NewString()
	}
	placeholder, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(input.Users))
	for _, item := range input.Users {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Total++
		email := legacy.NormalizeEmail(item.Email)
		if email == "" || !strings.Contains(email, "@") {
			stats.Invalid++
			logger.Warnw("user_import_invalid_email", "legacy_user_id", item.ID.Int64(), "email", item.Email)
			continue
		}
		if _, ok := seen[email]; ok {
			stats.Duplicates++
			logger.Debugw("user_import_duplicate", "legacy_user_id", item.ID.Int64(), "email", email)
			continue
		}
		seen[email] = struct{}{}

		var outcome string
		err := s.db.Transaction(func(tx *gorm.DB) error {
			var writeErr error
			outcome, writeErr = s.importOne(tx, item, email, string(placeholder))
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
			logger.Errorw("user_import_failed", "legacy_user_id", item.ID.Int64(), "email", email, "error", err)
			continue
		}
		switch outcome {
		case "created":
			stats.Created++
		case "linked":
			stats.Linked++
		default:
			stats.Existing++
		}
	}
	logger.Infow("user_import_finished",
		"dry_run", stats.DryRun,
		"total", stats.Total,
		"created", stats.Created,
		"linked", stats.Linked,
		"existing", stats.Existing,
		"duplicates", stats.Duplicates,
		"invalid", stats.Invalid,
		"failed", stats.Failed,
	)
	return stats, nil
}

func (s *UserImportService) importOne(tx *gorm.DB, item legacy.User, email, passwordHash string) (string, error) {
	userRepo := s.userRepo.WithTx(tx)
	walletRepo := s.walletRepo.WithTx(tx)
	legacyID := item.ID.Int64()

	legacyFree := false
	if legacyID > 0 {
		holder, err := userRepo.GetByLegacyID(legacyID)
		if err != nil {
			return "", err
		}
		legacyFree = holder == nil
	}

	existing, err := userRepo.GetByEmail(email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		outcome := "existing"
		if existing.LegacyUserID == nil && legacyFree {
			id := legacyID
			existing.LegacyUserID = &id
			if err := userRepo.Update(existing); err != nil {
				return "", err
			}
			outcome = "linked"
		}
		if _, err := walletRepo.EnsureAccount(existing.ID); err != nil {
			return "", err
		}
		return outcome, nil
	}

	user := &models.User{
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  strings.TrimSpace(item.DisplayName),
		Username:     strings.TrimSpace(item.Login),
		Phone:        strings.TrimSpace(item.Phone),
		Role:         constants.UserRoleMemberFree,
		Status:       constants.UserStatusActive,
	}
	if legacyFree {
		id := legacyID
		user.LegacyUserID = &id
	}
	if !item.Registered.IsZero() {
		registered := item.Registered.Time.In(time.UTC)
		user.RegisteredAt = &registered
	}
	if err := userRepo.Create(user); err != nil {
		return "", err
	}
	if _, err := walletRepo.EnsureAccount(user.ID); err != nil {
		return "", err
	}
	return "created", nil
}
