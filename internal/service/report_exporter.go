package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"
)

// 报告工作表名
const (
	SheetSummary       = "Summary"
	SheetInvariants    = "Invariants"
	SheetAffiliateGaps = "Affiliate Gaps"
)

// ReportExporter 对账报告导出为 Excel 工作簿
type ReportExporter struct{}

// NewReportExporter 创建导出器
func NewReportExporter() *ReportExporter {
	return &ReportExporter{}
}

// WriteXLSX 写入文件，自动创建目录
func (e *ReportExporter) WriteXLSX(path string, report *Report) error {
	if report == nil {
		return ErrInvalidInput
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	f, err := e.build(report)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// Write 写入任意 io.Writer（HTTP 下载）
func (e *ReportExporter) Write(w io.Writer, report *Report) error {
	if report == nil {
		return ErrInvalidInput
	}
	f, err := e.build(report)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func (e *ReportExporter) build(report *Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create style: %w", err)
	}

	steps := []func(*excelize.File, *Report, int) error{
		writeSummarySheet,
		writeInvariantSheet,
		writeAffiliateGapSheet,
	}
	for _, step := range steps {
		if err := step(f, report, headerStyle); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeSummarySheet(f *excelize.File, report *Report, headerStyle int) error {
	status := "FAILED"
	if report.Passed {
		status = "PASSED"
	}
	rows := [][]interface{}{
		{"Generated at", report.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"Status", status},
		{"Tolerance (IDR)", report.Tolerance},
		{"Open reviews", report.OpenReviews},
		{},
		{"Metric", "Actual"},
		{MetricTransactionCount, report.Totals.TransactionCount},
		{MetricSuccessCount, report.Totals.SuccessCount},
		{MetricRevenue, report.Totals.Revenue.StringFixed(0)},
		{MetricCommissionTotal, report.Totals.CommissionTotal.StringFixed(0)},
		{MetricConversionCount, report.Totals.ConversionCount},
		{"conversion_total", report.Totals.ConversionTotal.StringFixed(0)},
		{"user_count", report.Totals.UserCount},
	}
	tiers := make([]string, 0, len(report.Memberships))
	for tier := range report.Memberships {
		tiers = append(tiers, tier)
	}
	sort.Strings(tiers)
	for _, tier := range tiers {
		rows = append(rows, []interface{}{metricMembershipPrefix + tier, report.Memberships[tier]})
	}
	rows = append(rows, []interface{}{}, []interface{}{"Discrepancy", "Expected", "Actual", "Difference"})
	discrepancyHeader := len(rows)
	for _, d := range report.Discrepancies {
		rows = append(rows, []interface{}{d.Metric, d.Expected.String(), d.Actual.String(), d.Difference.String()})
	}
	if err := writeRows(f, SheetSummary, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetSummary, "A6", "B6", headerStyle); err != nil {
		return err
	}
	from, _ := excelize.CoordinatesToCellName(1, discrepancyHeader)
	to, _ := excelize.CoordinatesToCellName(4, discrepancyHeader)
	if err := f.SetCellStyle(SheetSummary, from, to, headerStyle); err != nil {
		return err
	}
	return f.SetColWidth(SheetSummary, "A", "D", 24)
}

func writeInvariantSheet(f *excelize.File, report *Report, headerStyle int) error {
	if _, err := f.NewSheet(SheetInvariants); err != nil {
		return err
	}
	names := make([]string, 0, len(report.Invariants))
	for name := range report.Invariants {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := [][]interface{}{{"Invariant", "Violations"}}
	for _, name := range names {
		rows = append(rows, []interface{}{name, report.Invariants[name]})
	}
	if err := writeRows(f, SheetInvariants, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetInvariants, "A1", "B1", headerStyle); err != nil {
		return err
	}
	return f.SetColWidth(SheetInvariants, "A", "B", 24)
}

func writeAffiliateGapSheet(f *excelize.File, report *Report, headerStyle int) error {
	if _, err := f.NewSheet(SheetAffiliateGaps); err != nil {
		return err
	}
	rows := [][]interface{}{{
		"Legacy affiliate ID", "Email", "Expected count", "Actual count",
		"Expected commission", "Actual commission", "Difference",
	}}
	for _, gap := range report.AffiliateGaps {
		rows = append(rows, []interface{}{
			gap.LegacyAffiliateID,
			gap.Email,
			gap.ExpectedCount,
			gap.ActualCount,
			gap.ExpectedCommission.StringFixed(0),
			gap.ActualCommission.StringFixed(0),
			gap.Difference.StringFixed(0),
		})
	}
	if err := writeRows(f, SheetAffiliateGaps, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetAffiliateGaps, "A1", "G1", headerStyle); err != nil {
		return err
	}
	return f.SetColWidth(SheetAffiliateGaps, "A", "G", 20)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
