package legacy

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// 位置列布局（无表头或表头名不可信时按位置解析）
// orders:     id, user_id, product_id, product_name, grand_total, affiliate_id, status, created_at
// users:      id, user_email, display_name, user_login, user_registered, phone
// affiliates: id, user_email, display_name
var minColumns = map[Kind]int{
	KindOrders:     7,
	KindUsers:      2,
	KindAffiliates: 2,
}

// rowCollector 逐行解析并收集错误
type rowCollector struct {
	kind        Kind
	export      *Export
	seenContent bool
}

func newRowCollector(kind Kind) (*rowCollector, error) {
	if _, ok := minColumns[kind]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return &rowCollector{kind: kind, export: &Export{}}, nil
}

func (c *rowCollector) add(line int, cells []string) {
	if isBlankRow(cells) {
		return
	}
	if !c.seenContent {
		c.seenContent = true
		if isHeaderRow(cells) {
			return
		}
	}
	if len(cells) < minColumns[c.kind] {
		c.fail(line, fmt.Errorf("expected at least %d columns, got %d", minColumns[c.kind], len(cells)))
		return
	}
	var err error
	switch c.kind {
	case KindOrders:
		err = c.addOrder(cells)
	case KindUsers:
		err = c.addUser(cells)
	case KindAffiliates:
		err = c.addAffiliate(cells)
	}
	if err != nil {
		c.fail(line, err)
	}
}

func (c *rowCollector) fail(line int, err error) {
	c.export.Errors = append(c.export.Errors, RowError{Kind: c.kind, Line: line, Err: err.Error()})
}

func (c *rowCollector) addOrder(cells []string) error {
	id, err := parseID(cell(cells, 0), true)
	if err != nil {
		return fmt.Errorf("id: %w", err)
	}
	userID, err := parseID(cell(cells, 1), false)
	if err != nil {
		return fmt.Errorf("user_id: %w", err)
	}
	productID, err := parseID(cell(cells, 2), false)
	if err != nil {
		return fmt.Errorf("product_id: %w", err)
	}
	total, err := ParseAmount(cell(cells, 4))
	if err != nil {
		return fmt.Errorf("grand_total: %w", err)
	}
	affiliateID, err := parseID(cell(cells, 5), false)
	if err != nil {
		return fmt.Errorf("affiliate_id: %w", err)
	}
	createdAt, err := ParseTime(cell(cells, 7))
	if err != nil {
		return fmt.Errorf("created_at: %w", err)
	}
	c.export.Orders = append(c.export.Orders, Order{
		ID:          FlexInt(id),
		UserID:      FlexInt(userID),
		ProductID:   FlexInt(productID),
		ProductName: strings.TrimSpace(cell(cells, 3)),
		GrandTotal:  total,
		AffiliateID: FlexInt(affiliateID),
		Status:      strings.TrimSpace(cell(cells, 6)),
		CreatedAt:   createdAt,
	})
	return nil
}

func (c *rowCollector) addUser(cells []string) error {
	id, err := parseID(cell(cells, 0), true)
	if err != nil {
		return fmt.Errorf("id: %w", err)
	}
	registered, err := ParseTime(cell(cells, 4))
	if err != nil {
		return fmt.Errorf("user_registered: %w", err)
	}
	c.export.Users = append(c.export.Users, User{
		ID:          FlexInt(id),
		Email:       strings.TrimSpace(cell(cells, 1)),
		DisplayName: strings.TrimSpace(cell(cells, 2)),
		Login:       strings.TrimSpace(cell(cells, 3)),
		Registered:  registered,
		Phone:       strings.TrimSpace(cell(cells, 5)),
	})
	return nil
}

func (c *rowCollector) addAffiliate(cells []string) error {
	id, err := parseID(cell(cells, 0), true)
	if err != nil {
		return fmt.Errorf("id: %w", err)
	}
	c.export.Affiliates = append(c.export.Affiliates, Affiliate{
		ID:          FlexInt(id),
		Email:       strings.TrimSpace(cell(cells, 1)),
		DisplayName: strings.TrimSpace(cell(cells, 2)),
	})
	return nil
}

// ParseAmount 解析金额，兼容 "Rp 799.000" 这类后台导出写法
func ParseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(strings.TrimPrefix(cleaned, "Rp"), "IDR")
	cleaned = strings.ReplaceAll(strings.TrimSpace(cleaned), " ", "")
	if cleaned == "" || cleaned == "-" {
		return decimal.Zero, nil
	}
	if d, err := decimal.NewFromString(cleaned); err == nil && !looksGrouped(cleaned) {
		return d, nil
	}
	grouped := strings.NewReplacer(".", "", ",", "").Replace(cleaned)
	d, err := decimal.NewFromString(grouped)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	return d, nil
}

// looksGrouped 判断 799.000 / 1.499.000 这类千分位写法
func looksGrouped(s string) bool {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == ',' })
	if len(parts) < 2 {
		return false
	}
	for _, part := range parts[1:] {
		if len(part) != 3 {
			return false
		}
	}
	return true
}

func parseID(raw string, required bool) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-" {
		if required {
			return 0, fmt.Errorf("missing value")
		}
		return 0, nil
	}
	return parseInt(raw)
}

func cell(cells []string, index int) string {
	if index < len(cells) {
		return cells[index]
	}
	return ""
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func isHeaderRow(cells []string) bool {
	first := strings.TrimSpace(cell(cells, 0))
	if first == "" {
		return false
	}
	_, err := parseInt(first)
	return err != nil
}
