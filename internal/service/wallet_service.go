package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/eksporyuk-migrate/internal/constants"
	"github.com/eksporyuk-migrate/internal/models"
	"github.com/eksporyuk-migrate/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletService 钱包服务（仅负责佣金入账与调整）
type WalletService struct {
	walletRepo *repository.GormWalletRepository
}

// NewWalletService 创建钱包服务
func NewWalletService(walletRepo *repository.GormWalletRepository) *WalletService {
	return &WalletService{walletRepo: walletRepo}
}

// WalletChangeInput 钱包变动输入，Delta 为正入账、为负扣回
type WalletChangeInput struct {
	UserID        uint
	Delta         decimal.Decimal
	TxnType       string
	Reference     string
	Remark        string
	Currency      string
	TransactionID *uint
}

// ApplyInTx 在事务内执行钱包变动；reference 已存在时视为已处理，返回 applied=false
func (s *WalletService) ApplyInTx(tx *gorm.DB, input WalletChangeInput) (*models.WalletTransaction, bool, error) {
	if tx == nil {
		return nil, false, gorm.ErrInvalidTransaction
	}
	if input.UserID == 0 {
		return nil, false, ErrWalletAccountNotFound
	}
	delta := input.Delta.Round(2)
	if delta.IsZero() {
		return nil, false, ErrWalletInvalidAmount
	}
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		return nil, false, ErrWalletTransactionCreateFailed
	}
	txnType := strings.TrimSpace(input.TxnType)
	if txnType == "" {
		txnType = constants.WalletTxnTypeCommission
	}
	repo := s.walletRepo.WithTx(tx)

	exists, err := repo.GetTransactionByReference(reference)
	if err != nil {
		return nil, false, err
	}
	if exists != nil {
		return exists, false, nil
	}

	if _, err := repo.EnsureAccount(input.UserID); err != nil {
		return nil, false, err
	}
	account, err := repo.GetAccountByUserIDForUpdate(input.UserID)
	if err != nil {
		return nil, false, err
	}
	if account == nil {
		return nil, false, ErrWalletAccountNotFound
	}

	now := time.Now()
	before := account.Balance.Decimal.Round(2)
	after := before.Add(delta).Round(2)
	if after.LessThan(decimal.Zero) {
		return nil, false, ErrWalletInsufficientBalance
	}
	direction := constants.WalletTxnDirectionIn
	amount := delta
	if delta.LessThan(decimal.Zero) {
		direction = constants.WalletTxnDirectionOut
		amount = delta.Abs()
	}

	account.Balance = models.NewMoneyFromDecimal(after)
	account.TotalEarnings = models.NewMoneyFromDecimal(account.TotalEarnings.Decimal.Add(delta))
	account.UpdatedAt = now
	if err := repo.UpdateAccount(account); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrWalletAccountUpdateFailed, err)
	}

	txn := &models.WalletTransaction{
		UserID:        input.UserID,
		AccountID:     account.ID,
		Type:          txnType,
		Direction:     direction,
		Amount:        models.NewMoneyFromDecimal(amount),
		BalanceBefore: models.NewMoneyFromDecimal(before),
		BalanceAfter:  models.NewMoneyFromDecimal(after),
		Currency:      normalizeWalletCurrency(input.Currency),
		Reference:     reference,
		TransactionID: input.TransactionID,
		Remark:        cleanWalletRemark(input.Remark, "佣金入账"),
		CreatedAt:     now,
	}
	if err := repo.CreateTransaction(txn); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrWalletTransactionCreateFailed, err)
	}
	return txn, true, nil
}

func normalizeWalletCurrency(currency string) string {
	normalized := strings.ToUpper(strings.TrimSpace(currency))
	if normalized == "" {
		return constants.DefaultCurrency
	}
	return normalized
}

func cleanWalletRemark(raw string, fallback string) string {
	remark := strings.TrimSpace(raw)
	if remark == "" {
		return fallback
	}
	return remark
}

// commissionReference 首次佣金入账的唯一引用
func commissionReference(legacyOrderID int64) string {
	return fmt.Sprintf("commission:%d", legacyOrderID)
}

// commissionAdjustReference 佣金差额调整的唯一引用，包含目标金额，同一批次重复处理同一目标不会重复入账
func commissionAdjustReference(legacyOrderID int64, runID string, userID uint, target int64) string {
	return fmt.Sprintf("commission-adjust:%d:%s:%d:%d", legacyOrderID, strings.TrimSpace(runID), userID, target)
}
