package service

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	ErrImportLocked      = errors.New("another import is running")
	ErrImportSourceEmpty = errors.New("import source is empty")
	ErrRulesNotLoaded    = errors.New("rule set not loaded")

	ErrWalletAccountNotFound         = errors.New("wallet account not found")
	ErrWalletInvalidAmount           = errors.New("wallet amount must be non-zero")
	ErrWalletInsufficientBalance     = errors.New("wallet balance insufficient")
	ErrWalletAccountUpdateFailed     = errors.New("wallet account update failed")
	ErrWalletTransactionCreateFailed = errors.New("wallet transaction create failed")

	ErrAffiliateProfileCreateFailed = errors.New("affiliate profile create failed")
	ErrMembershipCatalogueMissing   = errors.New("membership catalogue entry missing")

	ErrReviewNotFound        = errors.New("review item not found")
	ErrReviewAlreadyResolved = errors.New("review item already resolved")

	ErrExpectedTotalsInvalid = errors.New("expected totals invalid")

	ErrTokenSecretMissing = errors.New("jwt secret not configured")
	ErrInvalidToken       = errors.New("invalid token")
)

// errDryRunRollback 演练模式下用于回滚事务
var errDryRunRollback = errors.New("dry run rollback")
