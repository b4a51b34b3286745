package rules

import (
	"strings"
	"time"

	"github.com/eksporyuk-migrate/internal/constants"
)

// Tier 会员等级
type Tier string

const (
	TierLifetime      Tier = constants.MembershipTierLifetime
	TierTwelveMonths  Tier = constants.MembershipTierTwelveMonths
	TierSixMonths     Tier = constants.MembershipTierSixMonths
	TierNotMembership Tier = constants.MembershipTierNotMembership
)

// Priority 等级优先级，数值越大越高
func (t Tier) Priority() int {
	switch t {
	case TierLifetime:
		return 3
	case TierTwelveMonths:
		return 2
	case TierSixMonths:
		return 1
	default:
		return 0
	}
}

// DurationDays 有效天数，0 表示无结束日期
func (t Tier) DurationDays() int {
	switch t {
	case TierTwelveMonths:
		return 365
	case TierSixMonths:
		return 180
	default:
		return 0
	}
}

// IsMembership 是否为会员等级
func (t Tier) IsMembership() bool {
	return t.Priority() > 0
}

// EndDate 根据开始时间计算结束日期，终身会员返回 nil
func (t Tier) EndDate(start time.Time) *time.Time {
	days := t.DurationDays()
	if days == 0 {
		return nil
	}
	end := start.AddDate(0, 0, days)
	return &end
}

// String 实现 fmt.Stringer
func (t Tier) String() string {
	return string(t)
}

// TierFromString 解析等级字符串，兼容 12_MONTHS 等旧写法
func TierFromString(raw string) (Tier, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch normalized {
	case "LIFETIME":
		return TierLifetime, true
	case "TWELVE_MONTHS", "12_MONTHS", "12_BULAN":
		return TierTwelveMonths, true
	case "SIX_MONTHS", "6_MONTHS", "6_BULAN":
		return TierSixMonths, true
	case "NOT_A_MEMBERSHIP", "NONE":
		return TierNotMembership, true
	default:
		return "", false
	}
}

// MaxTier 返回优先级较高的等级
func MaxTier(a, b Tier) Tier {
	if b.Priority() > a.Priority() {
		return b
	}
	return a
}
