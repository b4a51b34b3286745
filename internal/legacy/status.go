package legacy

import (
	"strings"

	"github.com/eksporyuk-migrate/internal/constants"
)

var statusAliases = map[string]string{
	"completed":           constants.LegacyStatusCompleted,
	"complete":            constants.LegacyStatusCompleted,
	"selesai":             constants.LegacyStatusCompleted,
	"cancelled":           constants.LegacyStatusCancelled,
	"canceled":            constants.LegacyStatusCancelled,
	"batal":               constants.LegacyStatusCancelled,
	"dibatalkan":          constants.LegacyStatusCancelled,
	"on-hold":             constants.LegacyStatusOnHold,
	"on hold":             constants.LegacyStatusOnHold,
	"pending":             constants.LegacyStatusPending,
	"menunggu pembayaran": constants.LegacyStatusPending,
	"payment-confirm":     constants.LegacyStatusPaymentConfirm,
	"payment confirm":     constants.LegacyStatusPaymentConfirm,
	"refunded":            constants.LegacyStatusRefunded,
	"refund":              constants.LegacyStatusRefunded,
}

var canonicalStatus = map[string]string{
	constants.LegacyStatusCompleted:      constants.TransactionStatusSuccess,
	constants.LegacyStatusCancelled:      constants.TransactionStatusFailed,
	constants.LegacyStatusOnHold:         constants.TransactionStatusPending,
	constants.LegacyStatusPending:        constants.TransactionStatusPending,
	constants.LegacyStatusPaymentConfirm: constants.TransactionStatusPending,
	constants.LegacyStatusRefunded:       constants.TransactionStatusRefunded,
}

// NormalizeStatus 规范化旧系统状态（含印尼语后台标签）
func NormalizeStatus(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := statusAliases[key]; ok {
		return alias
	}
	return key
}

// MapStatus 旧系统状态映射为新平台交易状态，未知状态返回 PENDING 与 false
func MapStatus(raw string) (string, bool) {
	status, ok := canonicalStatus[NormalizeStatus(raw)]
	if !ok {
		return constants.TransactionStatusPending, false
	}
	return status, true
}

// NormalizeEmail 去空白并转小写
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
