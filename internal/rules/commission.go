package rules

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ResolveCommission 解析推广佣金：商品ID > 商品名 > 精确价格 > 价格区间 > 默认比例
// 精确表中的 0 是有效结果，不会继续向下回退
func (rs *RuleSet) ResolveCommission(productID int64, productName string, grandTotal decimal.Decimal) CommissionResolution {
	if productID > 0 {
		if amount, ok := rs.productCommissions[productID]; ok {
			return resolvedCommission(amount, ViaExactProductID)
		}
	}
	if name := Normalize(productName); name != "" {
		if amount, ok := rs.nameCommissions[name]; ok {
			return resolvedCommission(amount, ViaExactName)
		}
	}
	if !grandTotal.IsPositive() {
		return resolvedCommission(0, ViaZeroTotal)
	}

	var candidates []int64
	if key, ok := priceKey(grandTotal); ok {
		if amounts, collided := rs.collisions[key]; collided {
			candidates = append([]int64(nil), amounts...)
		} else if amount, found := rs.priceCommissions[key]; found {
			return resolvedCommission(amount, ViaExactPrice)
		}
	}
	ambiguous := len(candidates) > 0

	for _, bucket := range rs.buckets {
		if grandTotal.LessThanOrEqual(bucket.max) {
			result := resolvedCommission(bucket.amount, ViaPriceBucket)
			result.Ambiguous = ambiguous
			result.Candidates = candidates
			return result
		}
	}

	if rs.defaultPercent.IsPositive() {
		amount := grandTotal.Mul(rs.defaultPercent).Div(hundred).Round(0).IntPart()
		result := resolvedCommission(amount, ViaDefaultPercent)
		result.Ambiguous = ambiguous
		result.Candidates = candidates
		return result
	}

	return CommissionResolution{
		Status:     StatusUnresolved,
		Reason:     ReasonNoRule,
		Ambiguous:  ambiguous,
		Candidates: candidates,
	}
}

func priceKey(total decimal.Decimal) (int64, bool) {
	if !total.IsInteger() {
		return 0, false
	}
	return total.IntPart(), true
}

func resolvedCommission(amount int64, via Via) CommissionResolution {
	return CommissionResolution{Status: StatusResolved, Amount: amount, Via: via}
}
