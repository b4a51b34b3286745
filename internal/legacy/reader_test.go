package legacy

import (
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

const sampleExport = `{
  "users": [
    {"ID": "101", "user_email": " Buyer@Example.com ", "display_name": "Buyer", "user_login": "buyer", "user_registered": "2021-03-04 10:00:00"},
    {"ID": 55, "user_email": "aff@example.com", "display_name": "Affiliate"}
  ],
  "orders": [
    {"id": 9001, "user_id": "101", "product_id": null, "product_name": "Promo Merdeka 80", "grand_total": "799000", "affiliate_id": 55, "status": "completed", "created_at": "2023-08-17 09:00:00"},
    {"ID": "9002", "user_id": 101, "product_id": "13401", "product_name": "Paket Ekspor Yuk Lifetime", "grand_total": 999000, "affiliate_id": "0", "status": "on-hold", "created_at": "2023-08-18T09:00:00Z"},
    {"ID": "x-broken", "user_id": 101}
  ],
  "affiliates": [
    {"id": "55", "user_email": "AFF@example.com", "display_name": "Affiliate"}
  ]
}`

func TestReadJSONToleratesStringIDsAndCollectsBadRows(t *testing.T) {
	export, err := ReadJSON(strings.NewReader(sampleExport))
	if err != nil {
		t.Fatalf("read json failed: %v", err)
	}
	if len(export.Orders) != 2 || len(export.Users) != 2 || len(export.Affiliates) != 1 {
		t.Fatalf("unexpected counts: orders=%d users=%d affiliates=%d", len(export.Orders), len(export.Users), len(export.Affiliates))
	}
	if len(export.Errors) != 1 || export.Errors[0].Kind != KindOrders || export.Errors[0].Line != 3 {
		t.Fatalf("expected one order row error at line 3, got %+v", export.Errors)
	}
	first := export.Orders[0]
	if first.ID != 9001 || first.UserID != 101 || first.ProductID != 0 || first.AffiliateID != 55 {
		t.Fatalf("unexpected first order ids: %+v", first)
	}
	if first.GrandTotal.IntPart() != 799000 {
		t.Fatalf("unexpected grand total: %s", first.GrandTotal)
	}
	if first.CreatedAt.Year() != 2023 {
		t.Fatalf("expected created_at parsed, got %v", first.CreatedAt)
	}
	if export.Orders[1].HasAffiliate() {
		t.Fatalf("affiliate id 0 means no affiliate")
	}
}

func TestReadTSVHeaderCommentsAndMalformedRows(t *testing.T) {
	input := strings.Join([]string{
		"# exported from sejoli admin",
		"ID\tuser_id\tproduct_id\tproduct_name\tgrand_total\taffiliate_id\tstatus\tcreated_at",
		"9001\t101\t\tPromo Merdeka 80\t799000\t55\tcompleted\t2023-08-17 09:00:00",
		"9002\t101\t13401\tPaket Ekspor Yuk Lifetime\tRp 999.000\t-\tSelesai\t2023-08-18",
		"oops\t101\t1\tBroken\t1\t0\tcompleted\t2023-08-18",
		"9003\t101",
		"",
		"9004\t102\t8910\tKelas Bundling EYA\t1499000\t0\trefunded\tnot-a-date",
	}, "\n")

	export, err := ReadTSV(KindOrders, strings.NewReader(input))
	if err != nil {
		t.Fatalf("read tsv failed: %v", err)
	}
	if len(export.Orders) != 2 {
		t.Fatalf("expected 2 valid orders, got %d: %+v", len(export.Orders), export.Orders)
	}
	if len(export.Errors) != 3 {
		t.Fatalf("expected 3 row errors, got %+v", export.Errors)
	}
	if export.Errors[0].Line != 5 {
		t.Fatalf("expected first error on line 5, got %d", export.Errors[0].Line)
	}
	second := export.Orders[1]
	if second.GrandTotal.IntPart() != 999000 || second.AffiliateID != 0 {
		t.Fatalf("unexpected parsed order: %+v", second)
	}
	if status, ok := MapStatus(second.Status); !ok || status != "SUCCESS" {
		t.Fatalf("expected Selesai to map to SUCCESS, got %s %v", status, ok)
	}
}

func TestReadTSVWithoutHeader(t *testing.T) {
	input := "101\tbuyer@example.com\tBuyer\tbuyer\t2021-03-04 10:00:00\t0812\n"
	export, err := ReadTSV(KindUsers, strings.NewReader(input))
	if err != nil {
		t.Fatalf("read tsv failed: %v", err)
	}
	if len(export.Users) != 1 || export.Users[0].Phone != "0812" {
		t.Fatalf("expected headerless user row, got %+v", export.Users)
	}
}

func TestReadTSVUnknownKind(t *testing.T) {
	if _, err := ReadTSV(Kind("products"), strings.NewReader("")); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"ID", "Email", "Name"},
		{55, "aff@example.com", "Affiliate"},
		{"bad", "x@example.com", "Bad"},
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name failed: %v", err)
		}
		values := row
		if err := f.SetSheetRow(sheet, cellName, &values); err != nil {
			t.Fatalf("set row failed: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook failed: %v", err)
	}

	export, err := ReadXLSX(KindAffiliates, buf)
	if err != nil {
		t.Fatalf("read xlsx failed: %v", err)
	}
	if len(export.Affiliates) != 1 || export.Affiliates[0].ID != 55 {
		t.Fatalf("unexpected affiliates: %+v", export.Affiliates)
	}
	if len(export.Errors) != 1 || export.Errors[0].Line != 3 {
		t.Fatalf("expected one error on line 3, got %+v", export.Errors)
	}
}

func TestLookups(t *testing.T) {
	export, err := ReadJSON(strings.NewReader(sampleExport))
	if err != nil {
		t.Fatalf("read json failed: %v", err)
	}
	lookups := BuildLookups(export)
	if email, ok := lookups.UserEmail(101); !ok || email != "buyer@example.com" {
		t.Fatalf("expected normalized buyer email, got %q %v", email, ok)
	}
	if email, ok := lookups.AffiliateEmail(55); !ok || email != "aff@example.com" {
		t.Fatalf("expected affiliate email, got %q %v", email, ok)
	}
	if _, ok := lookups.UserEmail(999); ok {
		t.Fatalf("unknown user must not resolve")
	}
	totals := export.StatusTotals()
	if totals["completed"].Count != 1 || totals["on-hold"].Total.IntPart() != 999000 {
		t.Fatalf("unexpected status totals: %+v", totals)
	}
}

func TestParseAmount(t *testing.T) {
	cases := map[string]int64{
		"799000":       799000,
		"799000.00":    799000,
		"Rp 1.499.000": 1499000,
		"1,499,000":    1499000,
		"":             0,
	}
	for raw, want := range cases {
		got, err := ParseAmount(raw)
		if err != nil {
			t.Fatalf("ParseAmount(%q) failed: %v", raw, err)
		}
		if got.IntPart() != want {
			t.Fatalf("ParseAmount(%q) = %s, want %d", raw, got, want)
		}
	}
	if _, err := ParseAmount("abc"); err == nil {
		t.Fatalf("expected error for non-numeric amount")
	}
}

func TestMapStatus(t *testing.T) {
	cases := map[string]string{
		"completed":       "SUCCESS",
		"cancelled":       "FAILED",
		"on-hold":         "PENDING",
		"pending":         "PENDING",
		"payment-confirm": "PENDING",
		"refunded":        "REFUNDED",
	}
	for legacyStatus, want := range cases {
		got, ok := MapStatus(legacyStatus)
		if !ok || got != want {
			t.Fatalf("MapStatus(%q) = %s %v, want %s", legacyStatus, got, ok, want)
		}
	}
	if got, ok := MapStatus("mystery"); ok || got != "PENDING" {
		t.Fatalf("unknown status should map to PENDING with ok=false, got %s %v", got, ok)
	}
}
