package rules

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Classify 根据商品名与订单金额推断会员等级，按顺序首个命中生效
func (rs *RuleSet) Classify(productName string, grandTotal decimal.Decimal) Classification {
	name := Normalize(productName)
	if name == "" {
		return rs.classifyByPrice(grandTotal)
	}

	if keyword, ok := containsAny(name, rs.exclude); ok {
		return resolvedClass(TierNotMembership, ViaExclusion, keyword)
	}
	if keyword, ok := containsAny(name, rs.tools); ok {
		if _, bundled := containsAny(name, rs.toolOverrides); !bundled {
			return resolvedClass(TierNotMembership, ViaToolPurchase, keyword)
		}
	}
	if keyword, ok := containsAny(name, rs.lifetime); ok {
		return resolvedClass(TierLifetime, ViaLifetimeKeyword, keyword)
	}
	if marker, ok := containsAny(name, rs.renewalMarkers); ok {
		for _, entry := range rs.renewalDurations {
			if strings.Contains(name, entry.keyword) {
				return resolvedClass(entry.tier, ViaRenewal, entry.keyword)
			}
		}
		return resolvedClass(rs.renewalDefault, ViaRenewal, marker)
	}
	for _, entry := range rs.durations {
		if strings.Contains(name, entry.keyword) {
			return resolvedClass(entry.tier, ViaDurationKeyword, entry.keyword)
		}
	}
	if rs.promoKeyword != "" && strings.Contains(name, rs.promoKeyword) {
		if keyword, ok := containsAny(name, rs.promoLifetime); ok {
			return resolvedClass(TierLifetime, ViaPromo, keyword)
		}
		return resolvedClass(rs.promoDefault, ViaPromo, rs.promoKeyword)
	}
	if keyword, ok := containsAny(name, rs.generic); ok {
		return resolvedClass(TierTwelveMonths, ViaGenericClass, keyword)
	}

	// 无法识别的商品名进入人工复核，不静默判为非会员
	return Classification{
		Tier:   TierNotMembership,
		Via:    ViaNoMatch,
		Status: StatusUnresolved,
		Reason: ReasonNoMatch,
	}
}

// ClassifyOrder 先查商品ID映射表，未命中再按商品名推断
func (rs *RuleSet) ClassifyOrder(productID int64, productName string, grandTotal decimal.Decimal) Classification {
	if productID > 0 {
		if tier, ok := rs.productTiers[productID]; ok {
			return resolvedClass(tier, ViaProductID, "")
		}
	}
	return rs.Classify(productName, grandTotal)
}

func (rs *RuleSet) classifyByPrice(grandTotal decimal.Decimal) Classification {
	if !grandTotal.IsPositive() {
		return resolvedClass(TierNotMembership, ViaEmptyName, "")
	}
	for _, threshold := range rs.priceFallback {
		if grandTotal.GreaterThanOrEqual(threshold.min) {
			return resolvedClass(threshold.tier, ViaPriceFallback, "")
		}
	}
	return Classification{
		Tier:   TierNotMembership,
		Via:    ViaEmptyName,
		Status: StatusUnresolved,
		Reason: ReasonNoPriceMatch,
	}
}

func resolvedClass(tier Tier, via Via, keyword string) Classification {
	return Classification{Tier: tier, Via: via, Keyword: keyword, Status: StatusResolved}
}
