package rules

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

var (
	// ErrInvalidRules 规则文件内容不合法
	ErrInvalidRules = errors.New("invalid rule set")
)

type tierKeywordEntry struct {
	Keyword string `mapstructure:"keyword"`
	Tier    string `mapstructure:"tier"`
}

type priceFallbackEntry struct {
	MinTotal int64  `mapstructure:"min_total"`
	Tier     string `mapstructure:"tier"`
}

type productTierEntry struct {
	ProductID int64  `mapstructure:"product_id"`
	Tier      string `mapstructure:"tier"`
}

type productAmountEntry struct {
	ProductID int64 `mapstructure:"product_id"`
	Amount    int64 `mapstructure:"amount"`
}

type nameAmountEntry struct {
	Name   string `mapstructure:"name"`
	Amount int64  `mapstructure:"amount"`
}

type priceAmountEntry struct {
	Price  int64 `mapstructure:"price"`
	Amount int64 `mapstructure:"amount"`
}

type bucketEntry struct {
	MaxTotal int64 `mapstructure:"max_total"`
	Amount   int64 `mapstructure:"amount"`
}

type rawMembershipRules struct {
	ExcludeKeywords       []string             `mapstructure:"exclude_keywords"`
	ToolKeywords          []string             `mapstructure:"tool_keywords"`
	ToolOverrideKeywords  []string             `mapstructure:"tool_override_keywords"`
	LifetimeKeywords      []string             `mapstructure:"lifetime_keywords"`
	RenewalMarkers        []string             `mapstructure:"renewal_markers"`
	RenewalDurations      []tierKeywordEntry   `mapstructure:"renewal_durations"`
	RenewalDefault        string               `mapstructure:"renewal_default"`
	DurationKeywords      []tierKeywordEntry   `mapstructure:"duration_keywords"`
	PromoKeyword          string               `mapstructure:"promo_keyword"`
	PromoDefault          string               `mapstructure:"promo_default"`
	PromoLifetimeKeywords []string             `mapstructure:"promo_lifetime_keywords"`
	GenericClassKeywords  []string             `mapstructure:"generic_class_keywords"`
	PriceFallback         []priceFallbackEntry `mapstructure:"price_fallback"`
	Products              []productTierEntry   `mapstructure:"products"`
}

type rawCommissionRules struct {
	DefaultPercent float64              `mapstructure:"default_percent"`
	Products       []productAmountEntry `mapstructure:"products"`
	Names          []nameAmountEntry    `mapstructure:"names"`
	Prices         []priceAmountEntry   `mapstructure:"prices"`
	Buckets        []bucketEntry        `mapstructure:"buckets"`
}

type rawRuleSet struct {
	Version    string             `mapstructure:"version"`
	Membership rawMembershipRules `mapstructure:"membership"`
	Commission rawCommissionRules `mapstructure:"commission"`
}

type keywordTier struct {
	keyword string
	tier    Tier
}

type priceThreshold struct {
	min  decimal.Decimal
	tier Tier
}

type priceBucket struct {
	max    decimal.Decimal
	amount int64
}

// PriceCollision 精确价格表中同一价格对应多个佣金值
type PriceCollision struct {
	Price   int64   `json:"price"`
	Amounts []int64 `json:"amounts"`
}

// RuleSet 编译后的会员分类与佣金规则（只读，可并发使用）
type RuleSet struct {
	version string

	exclude          []string
	tools            []string
	toolOverrides    []string
	lifetime         []string
	renewalMarkers   []string
	renewalDurations []keywordTier
	renewalDefault   Tier
	durations        []keywordTier
	promoKeyword     string
	promoDefault     Tier
	promoLifetime    []string
	generic          []string
	priceFallback    []priceThreshold
	productTiers     map[int64]Tier

	defaultPercent     decimal.Decimal
	productCommissions map[int64]int64
	nameCommissions    map[string]int64
	priceCommissions   map[int64]int64
	collisions         map[int64][]int64
	buckets            []priceBucket
}

// LoadDefault 加载内置规则
func LoadDefault() (*RuleSet, error) {
	return Parse(bytes.NewReader(defaultRulesYAML))
}

// Load 从文件加载规则，路径为空时使用内置规则
func Load(path string) (*RuleSet, error) {
	if strings.TrimSpace(path) == "" {
		return LoadDefault()
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse 解析 YAML 规则
func Parse(r io.Reader) (*RuleSet, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	var raw rawRuleSet
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	return compile(raw)
}

func compile(raw rawRuleSet) (*RuleSet, error) {
	version := strings.TrimSpace(raw.Version)
	if version == "" {
		return nil, fmt.Errorf("%w: version is required", ErrInvalidRules)
	}
	m := raw.Membership
	c := raw.Commission

	rs := &RuleSet{
		version:            version,
		exclude:            normalizeAll(m.ExcludeKeywords),
		tools:              normalizeAll(m.ToolKeywords),
		toolOverrides:      normalizeAll(m.ToolOverrideKeywords),
		lifetime:           normalizeAll(m.LifetimeKeywords),
		renewalMarkers:     normalizeAll(m.RenewalMarkers),
		promoKeyword:       Normalize(m.PromoKeyword),
		promoLifetime:      normalizeAll(m.PromoLifetimeKeywords),
		generic:            normalizeAll(m.GenericClassKeywords),
		productTiers:       make(map[int64]Tier, len(m.Products)),
		defaultPercent:     decimal.NewFromFloat(c.DefaultPercent),
		productCommissions: make(map[int64]int64, len(c.Products)),
		nameCommissions:    make(map[string]int64, len(c.Names)),
		priceCommissions:   make(map[int64]int64, len(c.Prices)),
		collisions:         make(map[int64][]int64),
	}

	var err error
	if rs.renewalDurations, err = compileKeywordTiers(m.RenewalDurations); err != nil {
		return nil, err
	}
	if rs.durations, err = compileKeywordTiers(m.DurationKeywords); err != nil {
		return nil, err
	}
	if rs.renewalDefault, err = parseTierOrDefault(m.RenewalDefault, TierTwelveMonths); err != nil {
		return nil, err
	}
	if rs.promoDefault, err = parseTierOrDefault(m.PromoDefault, TierTwelveMonths); err != nil {
		return nil, err
	}

	for _, entry := range m.PriceFallback {
		tier, ok := TierFromString(entry.Tier)
		if !ok {
			return nil, fmt.Errorf("%w: price_fallback tier %q", ErrInvalidRules, entry.Tier)
		}
		rs.priceFallback = append(rs.priceFallback, priceThreshold{min: decimal.NewFromInt(entry.MinTotal), tier: tier})
	}
	sort.SliceStable(rs.priceFallback, func(i, j int) bool {
		return rs.priceFallback[i].min.GreaterThan(rs.priceFallback[j].min)
	})

	for _, entry := range m.Products {
		tier, ok := TierFromString(entry.Tier)
		if !ok {
			return nil, fmt.Errorf("%w: product %d tier %q", ErrInvalidRules, entry.ProductID, entry.Tier)
		}
		if existing, dup := rs.productTiers[entry.ProductID]; dup && existing != tier {
			return nil, fmt.Errorf("%w: product %d mapped to %s and %s", ErrInvalidRules, entry.ProductID, existing, tier)
		}
		rs.productTiers[entry.ProductID] = tier
	}

	for _, entry := range c.Products {
		if entry.Amount < 0 {
			return nil, fmt.Errorf("%w: product %d negative commission", ErrInvalidRules, entry.ProductID)
		}
		if existing, dup := rs.productCommissions[entry.ProductID]; dup && existing != entry.Amount {
			return nil, fmt.Errorf("%w: product %d commission defined as %d and %d", ErrInvalidRules, entry.ProductID, existing, entry.Amount)
		}
		rs.productCommissions[entry.ProductID] = entry.Amount
	}

	for _, entry := range c.Names {
		key := Normalize(entry.Name)
		if key == "" {
			continue
		}
		if existing, dup := rs.nameCommissions[key]; dup && existing != entry.Amount {
			return nil, fmt.Errorf("%w: name %q commission defined as %d and %d", ErrInvalidRules, entry.Name, existing, entry.Amount)
		}
		rs.nameCommissions[key] = entry.Amount
	}

	for _, entry := range c.Prices {
		if amounts, collided := rs.collisions[entry.Price]; collided {
			if !containsInt64(amounts, entry.Amount) {
				rs.collisions[entry.Price] = append(amounts, entry.Amount)
			}
			continue
		}
		existing, dup := rs.priceCommissions[entry.Price]
		if !dup {
			rs.priceCommissions[entry.Price] = entry.Amount
			continue
		}
		if existing == entry.Amount {
			continue
		}
		rs.collisions[entry.Price] = []int64{existing, entry.Amount}
		delete(rs.priceCommissions, entry.Price)
	}

	for _, entry := range c.Buckets {
		rs.buckets = append(rs.buckets, priceBucket{max: decimal.NewFromInt(entry.MaxTotal), amount: entry.Amount})
	}
	sort.SliceStable(rs.buckets, func(i, j int) bool {
		return rs.buckets[i].max.LessThan(rs.buckets[j].max)
	})

	return rs, nil
}

func compileKeywordTiers(entries []tierKeywordEntry) ([]keywordTier, error) {
	result := make([]keywordTier, 0, len(entries))
	for _, entry := range entries {
		tier, ok := TierFromString(entry.Tier)
		if !ok {
			return nil, fmt.Errorf("%w: keyword %q tier %q", ErrInvalidRules, entry.Keyword, entry.Tier)
		}
		keyword := Normalize(entry.Keyword)
		if keyword == "" {
			continue
		}
		result = append(result, keywordTier{keyword: keyword, tier: tier})
	}
	return result, nil
}

func parseTierOrDefault(raw string, fallback Tier) (Tier, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	tier, ok := TierFromString(raw)
	if !ok {
		return "", fmt.Errorf("%w: tier %q", ErrInvalidRules, raw)
	}
	return tier, nil
}

// Version 规则版本
func (rs *RuleSet) Version() string {
	return rs.version
}

// DefaultPercent 兜底佣金比例
func (rs *RuleSet) DefaultPercent() decimal.Decimal {
	return rs.defaultPercent
}

// PriceCollisions 加载时发现的价格键冲突，按价格升序
func (rs *RuleSet) PriceCollisions() []PriceCollision {
	result := make([]PriceCollision, 0, len(rs.collisions))
	for price, amounts := range rs.collisions {
		copied := append([]int64(nil), amounts...)
		result = append(result, PriceCollision{Price: price, Amounts: copied})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Price < result[j].Price })
	return result
}

// ProductTier 按商品ID查询会员等级
func (rs *RuleSet) ProductTier(productID int64) (Tier, bool) {
	tier, ok := rs.productTiers[productID]
	return tier, ok
}

// Normalize 规范化商品名：小写，- _ / 替换为空格，合并空白
func Normalize(name string) string {
	lowered := strings.ToLower(name)
	lowered = strings.NewReplacer("-", " ", "_", " ", "/", " ").Replace(lowered)
	return strings.Join(strings.Fields(lowered), " ")
}

func normalizeAll(items []string) []string {
	result := make([]string, 0, len(items))
	for _, item := range items {
		if n := Normalize(item); n != "" {
			result = append(result, n)
		}
	}
	return result
}

func containsAny(name string, keywords []string) (string, bool) {
	for _, keyword := range keywords {
		if strings.Contains(name, keyword) {
			return keyword, true
		}
	}
	return "", false
}

func containsInt64(items []int64, target int64) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
