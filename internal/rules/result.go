package rules

// Status 推断结果状态
type Status string

const (
	StatusResolved   Status = "resolved"
	StatusUnresolved Status = "unresolved"
)

// Via 命中的规则
type Via string

// 会员分类命中规则
const (
	ViaProductID       Via = "product_id"
	ViaExclusion       Via = "exclusion"
	ViaToolPurchase    Via = "tool_purchase"
	ViaLifetimeKeyword Via = "lifetime_keyword"
	ViaRenewal         Via = "renewal"
	ViaDurationKeyword Via = "duration_keyword"
	ViaPromo           Via = "promo"
	ViaGenericClass    Via = "generic_class"
	ViaPriceFallback   Via = "price_fallback"
	ViaNoMatch         Via = "no_match"
	ViaEmptyName       Via = "empty_name"
)

// 佣金命中规则
const (
	ViaExactProductID Via = "exact_product_id"
	ViaExactName      Via = "exact_name"
	ViaExactPrice     Via = "exact_price"
	ViaPriceBucket    Via = "price_bucket"
	ViaZeroTotal      Via = "zero_total"
	ViaDefaultPercent Via = "default_percent"
)

// 未解析原因
const (
	ReasonNoMatch      = "no_match"
	ReasonNoPriceMatch = "no_price_match"
	ReasonNoRule       = "no_rule"
)

// Classification 会员分类结果
type Classification struct {
	Tier    Tier   `json:"tier"`
	Via     Via    `json:"via"`
	Keyword string `json:"keyword,omitempty"` // 命中的关键字
	Status  Status `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

// Resolved 是否有确定结果
func (c Classification) Resolved() bool {
	return c.Status == StatusResolved
}

// IsMembership 是否判定为会员购买
func (c Classification) IsMembership() bool {
	return c.Resolved() && c.Tier.IsMembership()
}

// CommissionResolution 佣金解析结果
type CommissionResolution struct {
	Status     Status  `json:"status"`
	Amount     int64   `json:"amount"` // 整数卢比
	Via        Via     `json:"via,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Ambiguous  bool    `json:"ambiguous"`
	Candidates []int64 `json:"candidates,omitempty"` // 价格键冲突时的候选值
}

// Resolved 是否有确定结果
func (r CommissionResolution) Resolved() bool {
	return r.Status == StatusResolved
}

// Estimated 是否为启发式估算
func (r CommissionResolution) Estimated() bool {
	return r.Via == ViaPriceBucket || r.Via == ViaDefaultPercent
}

// NeedsReview 是否需要人工复核
func (r CommissionResolution) NeedsReview() bool {
	return !r.Resolved() || r.Ambiguous
}
