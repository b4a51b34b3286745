package legacy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FlexInt 兼容数字与字符串两种写法的旧系统ID（空值为 0）
type FlexInt int64

// UnmarshalJSON 解析数字、字符串或 null
func (f *FlexInt) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "" || raw == "null" {
		*f = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" || raw == "-" {
			*f = 0
			return nil
		}
	}
	value, err := parseInt(raw)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", raw, err)
	}
	*f = FlexInt(value)
	return nil
}

// Int64 返回整数值
func (f FlexInt) Int64() int64 {
	return int64(f)
}

// Time 兼容多种旧系统时间格式
type Time struct {
	time.Time
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime 解析旧系统时间，空串返回零值
func ParseTime(raw string) (Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0000-00-00 00:00:00" {
		return Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return Time{Time: t}, nil
		}
	}
	return Time{}, fmt.Errorf("invalid time %q", raw)
}

// UnmarshalJSON 解析时间字符串
func (t *Time) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON 输出旧系统格式
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format("2006-01-02 15:04:05"))
}

// Order 旧系统订单
type Order struct {
	ID            FlexInt         `json:"ID"`
	UserID        FlexInt         `json:"user_id"`
	ProductID     FlexInt         `json:"product_id"`
	ProductName   string          `json:"product_name"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	AffiliateID   FlexInt         `json:"affiliate_id"`
	AffiliateName string          `json:"affiliate_name,omitempty"`
	BuyerEmail    string          `json:"user_email,omitempty"`
	Status        string          `json:"status"`
	CreatedAt     Time            `json:"created_at"`
}

// HasAffiliate 是否带推广人
func (o Order) HasAffiliate() bool {
	return o.AffiliateID > 0
}

// User 旧系统 WordPress 用户
type User struct {
	ID          FlexInt `json:"ID"`
	Email       string  `json:"user_email"`
	DisplayName string  `json:"display_name"`
	Nicename    string  `json:"user_nicename,omitempty"`
	Login       string  `json:"user_login"`
	Registered  Time    `json:"user_registered"`
	Phone       string  `json:"phone,omitempty"`
}

// Affiliate 旧系统推广人（ID 即 WordPress 用户ID）
type Affiliate struct {
	ID          FlexInt `json:"id"`
	Email       string  `json:"user_email"`
	DisplayName string  `json:"display_name"`
}

// RowError 单行解析失败，不中断整批
type RowError struct {
	Kind Kind   `json:"kind"`
	Line int    `json:"line"`
	Err  string `json:"error"`
}

// Error 实现 error 接口
func (e RowError) Error() string {
	return fmt.Sprintf("%s line %d: %s", e.Kind, e.Line, e.Err)
}

// Export 旧系统导出数据
type Export struct {
	Orders     []Order     `json:"orders"`
	Users      []User      `json:"users"`
	Affiliates []Affiliate `json:"affiliates"`
	Errors     []RowError  `json:"-"`
}

// Merge 合并另一份导出
func (e *Export) Merge(other *Export) {
	if other == nil {
		return
	}
	e.Orders = append(e.Orders, other.Orders...)
	e.Users = append(e.Users, other.Users...)
	e.Affiliates = append(e.Affiliates, other.Affiliates...)
	e.Errors = append(e.Errors, other.Errors...)
}

// StatusTotal 按状态汇总
type StatusTotal struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// StatusTotals 按旧系统状态汇总订单数与金额
func (e *Export) StatusTotals() map[string]StatusTotal {
	totals := make(map[string]StatusTotal)
	for _, order := range e.Orders {
		key := NormalizeStatus(order.Status)
		item := totals[key]
		item.Count++
		item.Total = item.Total.Add(order.GrandTotal)
		totals[key] = item
	}
	return totals
}

func parseInt(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}
