package constants

// Sejoli 旧系统订单状态常量
const (
	LegacyStatusCompleted      = "completed"
	LegacyStatusCancelled      = "cancelled"
	LegacyStatusOnHold         = "on-hold"
	LegacyStatusPending        = "pending"
	LegacyStatusPaymentConfirm = "payment-confirm"
	LegacyStatusRefunded       = "refunded"
)

// 新平台交易状态常量
const (
	TransactionStatusSuccess  = "SUCCESS"
	TransactionStatusFailed   = "FAILED"
	TransactionStatusPending  = "PENDING"
	TransactionStatusRefunded = "REFUNDED"
)

// 交易类型常量
const (
	TransactionTypeMembership = "MEMBERSHIP"
	TransactionTypeProduct    = "PRODUCT"
)

// 默认币种
const DefaultCurrency = "IDR"

// 用户状态与角色常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"

	UserRoleMemberFree     = "MEMBER_FREE"
	UserRoleMemberPremium  = "MEMBER_PREMIUM"
	UserRoleMemberLifetime = "MEMBER_LIFETIME"
)

// 会员状态常量
const (
	MembershipStatusActive  = "ACTIVE"
	MembershipStatusExpired = "EXPIRED"
)

// 推广返利状态常量
const (
	AffiliateProfileStatusActive   = "active"
	AffiliateProfileStatusDisabled = "disabled"
)

// 推广转化记录状态常量
const (
	ConversionStatusCompleted = "COMPLETED"
	ConversionStatusReversed  = "REVERSED"
)

// 钱包交易类型常量
const (
	WalletTxnTypeCommission       = "commission"
	WalletTxnTypeCommissionAdjust = "commission_adjust"
)

// 钱包交易方向常量
const (
	WalletTxnDirectionIn  = "in"
	WalletTxnDirectionOut = "out"
)

// 人工复核队列类型常量
const (
	ReviewKindClassification = "classification"
	ReviewKindCommission     = "commission"
	ReviewKindAffiliate      = "affiliate"
	ReviewKindStatus         = "status"
)

// 人工复核状态常量
const (
	ReviewStatusOpen     = "open"
	ReviewStatusResolved = "resolved"
)

// 导入批次状态常量
const (
	ImportRunStatusRunning  = "running"
	ImportRunStatusFinished = "finished"
	ImportRunStatusFailed   = "failed"
)

// 导入源格式常量
const (
	SourceFormatJSON = "json"
	SourceFormatTSV  = "tsv"
	SourceFormatXLSX = "xlsx"
)

// 异步任务常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"

	TaskImportRun       = "migrate:import"
	TaskSyncConversions = "migrate:sync_conversions"
	TaskReconcile       = "migrate:reconcile"
)

// 会员等级常量
const (
	MembershipTierLifetime      = "LIFETIME"
	MembershipTierTwelveMonths  = "TWELVE_MONTHS"
	MembershipTierSixMonths     = "SIX_MONTHS"
	MembershipTierNotMembership = "NOT_A_MEMBERSHIP"
)
