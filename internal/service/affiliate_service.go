package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/eksporyuk-migrate/internal/constants"
	"github.com/eksporyuk-migrate/internal/logger"
	"github.com/eksporyuk-migrate/internal/models"
	"github.com/eksporyuk-migrate/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const affiliateCodeLength = 8

// ConversionAction 推广转化写入结果
type ConversionAction string

const (
	ConversionNone       ConversionAction = "none"
	ConversionCreated    ConversionAction = "created"
	ConversionAdjusted   ConversionAction = "adjusted"
	ConversionReassigned ConversionAction = "reassigned"
	ConversionReversed   ConversionAction = "reversed"
	ConversionUnchanged  ConversionAction = "unchanged"
)

// Changed 是否写入了推广转化
func (a ConversionAction) Changed() bool {
	return a != ConversionNone && a != ConversionUnchanged
}

// ConversionInput 推广转化写入输入
type ConversionInput struct {
	Transaction   *models.Transaction
	Profile       *models.AffiliateProfile // Desired 为 0 时可为空
	Desired       int64                    // 目标佣金（整数卢比）
	RunID         string
	Current       *models.AffiliateConversion
	CurrentLoaded bool // Current 已预加载（可能为空）
}

// AffiliateService 推广人档案与推广转化服务
type AffiliateService struct {
	repo      repository.AffiliateRepository
	walletSvc *WalletService
}

// NewAffiliateService 创建推广服务
func NewAffiliateService(repo repository.AffiliateRepository, walletSvc *WalletService) *AffiliateService {
	return &AffiliateService{repo: repo, walletSvc: walletSvc}
}

// EnsureProfileTx 获取或创建推广人档案，并补齐旧系统推广人ID
func (s *AffiliateService) EnsureProfileTx(tx *gorm.DB, userID uint, legacyAffiliateID int64) (*models.AffiliateProfile, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	repo := s.repo.WithTx(tx)

	profile, err := repo.GetProfileByUserID(userID)
	if err != nil {
		return nil, err
	}
	legacyFree := false
	if legacyAffiliateID > 0 {
		holder, err := repo.GetProfileByLegacyID(legacyAffiliateID)
		if err != nil {
			return nil, err
		}
		legacyFree = holder == nil
		if holder != nil && holder.UserID != userID {
			logger.Warnw("affiliate_legacy_id_owner_mismatch",
				"legacy_affiliate_id", legacyAffiliateID,
				"holder_user_id", holder.UserID,
				"user_id", userID,
			)
		}
	}

	if profile != nil {
		if profile.LegacyAffiliateID == nil && legacyFree {
			id := legacyAffiliateID
			profile.LegacyAffiliateID = &id
			if err := repo.UpdateProfile(profile); err != nil {
				return nil, err
			}
		}
		return profile, nil
	}

	const maxRetry = 8
	for i := 0; i < maxRetry; i++ {
		code, genErr := generateAffiliateCode()
		if genErr != nil {
			return nil, genErr
		}
		taken, err := repo.GetProfileByCode(code)
		if err != nil {
			return nil, err
		}
		if taken != nil {
			continue
		}
		profile = &models.AffiliateProfile{
			UserID:        userID,
			AffiliateCode: code,
			Status:        constants.AffiliateProfileStatusActive,
		}
		if legacyFree {
			id := legacyAffiliateID
			profile.LegacyAffiliateID = &id
		}
		if err := repo.CreateProfile(profile); err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: %v", ErrAffiliateProfileCreateFailed, err)
			}
			return nil, err
		}
		return profile, nil
	}
	return nil, ErrAffiliateProfileCreateFailed
}

// ApplyConversionTx 在事务内把推广转化调整到目标佣金，钱包只记录差额
func (s *AffiliateService) ApplyConversionTx(tx *gorm.DB, input ConversionInput) (ConversionAction, error) {
	txn := input.Transaction
	if txn == nil || txn.ID == 0 {
		return ConversionNone, ErrInvalidInput
	}
	desired := input.Desired
	if desired < 0 {
		desired = 0
	}
	if desired > 0 && input.Profile == nil {
		return ConversionNone, ErrInvalidInput
	}
	repo := s.repo.WithTx(tx)

	current := input.Current
	if !input.CurrentLoaded {
		loaded, err := repo.GetConversionByTransactionID(txn.ID)
		if err != nil {
			return ConversionNone, err
		}
		current = loaded
	}

	if current == nil {
		if desired == 0 {
			return ConversionNone, nil
		}
		conversion := &models.AffiliateConversion{
			AffiliateProfileID: input.Profile.ID,
			TransactionID:      txn.ID,
			LegacyOrderID:      txn.LegacyOrderID,
			BaseAmount:         txn.Amount,
			CommissionAmount:   models.NewMoneyFromRupiah(desired),
			Status:             constants.ConversionStatusCompleted,
		}
		if err := repo.CreateConversion(conversion); err != nil {
			return ConversionNone, err
		}
		if err := s.moveCommission(tx, txn, input.Profile, desired, commissionReference(txn.LegacyOrderID), constants.WalletTxnTypeCommission, 1); err != nil {
			return ConversionNone, err
		}
		return ConversionCreated, nil
	}

	active := current.Status == constants.ConversionStatusCompleted
	var currentAmount int64
	if active {
		currentAmount = current.CommissionAmount.Rupiah()
	}

	if desired == 0 {
		if !active {
			return ConversionUnchanged, nil
		}
		if err := s.withdrawFromOwner(tx, repo, txn, current, currentAmount, input.RunID); err != nil {
			return ConversionNone, err
		}
		current.Status = constants.ConversionStatusReversed
		current.CommissionAmount = models.NewMoneyFromRupiah(0)
		if err := repo.UpdateConversion(current); err != nil {
			return ConversionNone, err
		}
		return ConversionReversed, nil
	}

	if input.Profile.ID == current.AffiliateProfileID {
		if active && currentAmount == desired {
			return ConversionUnchanged, nil
		}
		conversionsDelta := 0
		if !active {
			conversionsDelta = 1
		}
		reference := commissionAdjustReference(txn.LegacyOrderID, input.RunID, input.Profile.UserID, desired)
		if err := s.moveCommission(tx, txn, input.Profile, desired-currentAmount, reference, constants.WalletTxnTypeCommissionAdjust, conversionsDelta); err != nil {
			return ConversionNone, err
		}
		current.CommissionAmount = models.NewMoneyFromRupiah(desired)
		current.BaseAmount = txn.Amount
		current.Status = constants.ConversionStatusCompleted
		if err := repo.UpdateConversion(current); err != nil {
			return ConversionNone, err
		}
		return ConversionAdjusted, nil
	}

	if active {
		if err := s.withdrawFromOwner(tx, repo, txn, current, currentAmount, input.RunID); err != nil {
			return ConversionNone, err
		}
	}
	reference := commissionAdjustReference(txn.LegacyOrderID, input.RunID, input.Profile.UserID, desired)
	if err := s.moveCommission(tx, txn, input.Profile, desired, reference, constants.WalletTxnTypeCommissionAdjust, 1); err != nil {
		return ConversionNone, err
	}
	current.AffiliateProfileID = input.Profile.ID
	current.CommissionAmount = models.NewMoneyFromRupiah(desired)
	current.BaseAmount = txn.Amount
	current.Status = constants.ConversionStatusCompleted
	if err := repo.UpdateConversion(current); err != nil {
		return ConversionNone, err
	}
	return ConversionReassigned, nil
}

// withdrawFromOwner 从原推广人扣回已入账佣金
func (s *AffiliateService) withdrawFromOwner(tx *gorm.DB, repo repository.AffiliateRepository, txn *models.Transaction, current *models.AffiliateConversion, amount int64, runID string) error {
	if amount <= 0 {
		return nil
	}
	owner, err := repo.GetProfileByID(current.AffiliateProfileID)
	if err != nil {
		return err
	}
	if owner == nil {
		return ErrNotFound
	}
	reference := commissionAdjustReference(txn.LegacyOrderID, runID, owner.UserID, 0)
	return s.moveCommission(tx, txn, owner, -amount, reference, constants.WalletTxnTypeCommissionAdjust, -1)
}

// moveCommission 写入钱包流水并同步推广档案累计；流水已存在时不重复累计
func (s *AffiliateService) moveCommission(tx *gorm.DB, txn *models.Transaction, profile *models.AffiliateProfile, delta int64, reference, txnType string, conversionsDelta int) error {
	if delta == 0 && conversionsDelta == 0 {
		return nil
	}
	if delta != 0 {
		txnID := txn.ID
		_, applied, err := s.walletSvc.ApplyInTx(tx, WalletChangeInput{
			UserID:        profile.UserID,
			Delta:         decimal.NewFromInt(delta),
			TxnType:       txnType,
			Reference:     reference,
			Remark:        fmt.Sprintf("Sejoli order #%d", txn.LegacyOrderID),
			Currency:      txn.Currency,
			TransactionID: &txnID,
		})
		if err != nil {
			return err
		}
		if !applied {
			logger.Debugw("wallet_reference_exists", "reference", reference, "legacy_order_id", txn.LegacyOrderID)
			return nil
		}
	}
	return s.repo.WithTx(tx).AddProfileEarnings(profile.ID, decimal.NewFromInt(delta), conversionsDelta)
}

func generateAffiliateCode() (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	var builder strings.Builder
	builder.Grow(affiliateCodeLength)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < affiliateCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		builder.WriteByte(alphabet[n.Int64()])
	}
	return builder.String(), nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
