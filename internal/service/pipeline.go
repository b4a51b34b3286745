package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/eksporyuk-migrate/internal/config"
	"github.com/eksporyuk-migrate/internal/legacy"
	"github.com/eksporyuk-migrate/internal/logger"
)

// SourceRequest 导入源，字段为空时回落到配置
type SourceRequest struct {
	Source         string
	Format         string
	UsersFile      string
	AffiliatesFile string
}

// PipelineImportResult 一次完整导入的结果
type PipelineImportResult struct {
	Users  *UserImportStats `json:"users,omitempty"`
	Orders *ImportStats     `json:"orders"`
}

// ReconcileRequest 对账请求
type ReconcileRequest struct {
	ExpectedFile string
	ReportPath   string
	Source       SourceRequest // 提供时用于推算预期汇总与推广人差异
	SkipReport   bool          // 不写出工作簿
}

// Pipeline 串联读取、导入与对账，供命令行与异步任务共用
type Pipeline struct {
	imports      *ImportService
	users        *UserImportService
	conversions  *ConversionSyncService
	reconcile    *ReconcileService
	exporter     *ReportExporter
	importCfg    config.ImportConfig
	reconcileCfg config.ReconcileConfig
}

// NewPipeline 创建流水线
func NewPipeline(
	imports *ImportService,
	users *UserImportService,
	conversions *ConversionSyncService,
	reconcile *ReconcileService,
	exporter *ReportExporter,
	importCfg config.ImportConfig,
	reconcileCfg config.ReconcileConfig,
) *Pipeline {
	return &Pipeline{
		imports:      imports,
		users:        users,
		conversions:  conversions,
		reconcile:    reconcile,
		exporter:     exporter,
		importCfg:    importCfg,
		reconcileCfg: reconcileCfg,
	}
}

// SourceSpec 合并请求与配置得到读取参数
func (p *Pipeline) SourceSpec(req SourceRequest) legacy.SourceSpec {
	spec := legacy.SourceSpec{
		Format:         firstNonEmpty(req.Format, p.importCfg.Format),
		OrdersPath:     firstNonEmpty(req.Source, p.importCfg.SourceFile),
		UsersPath:      firstNonEmpty(req.UsersFile, p.importCfg.UsersFile),
		AffiliatesPath: firstNonEmpty(req.AffiliatesFile, p.importCfg.AffiliatesFile),
	}
	return spec
}

// LoadExport 读取导入源
func (p *Pipeline) LoadExport(req SourceRequest) (*legacy.Export, legacy.SourceSpec, error) {
	spec := p.SourceSpec(req)
	if spec.OrdersPath == "" && spec.UsersPath == "" {
		return nil, spec, fmt.Errorf("%w: no source file", ErrInvalidInput)
	}
	export, err := legacy.LoadSource(spec)
	if err != nil {
		return nil, spec, err
	}
	for _, rowErr := range export.Errors {
		logger.Warnw("legacy_row_rejected", "source", spec.Describe(), "error", rowErr.Error())
	}
	return export, spec, nil
}

// RunImport 先导入用户再导入订单
func (p *Pipeline) RunImport(ctx context.Context, req SourceRequest, execute bool, runID string) (*PipelineImportResult, error) {
	export, spec, err := p.LoadExport(req)
	if err != nil {
		return nil, err
	}
	return p.ImportExport(ctx, export, spec, execute, runID)
}

// ImportExport 导入已读取的导出数据
func (p *Pipeline) ImportExport(ctx context.Context, export *legacy.Export, spec legacy.SourceSpec, execute bool, runID string) (*PipelineImportResult, error) {
	result := &PipelineImportResult{}
	if len(export.Users) > 0 && p.users != nil {
		stats, err := p.users.Run(ctx, UserImportInput{Users: export.Users, Execute: execute})
		if err != nil {
			return nil, err
		}
		result.Users = stats
	}
	if len(export.Orders) == 0 {
		if result.Users != nil {
			return result, nil
		}
		return nil, ErrImportSourceEmpty
	}
	stats, err := p.imports.Run(ctx, ImportInput{
		Export:  export,
		Source:  spec.Describe(),
		Format:  spec.Format,
		Execute: execute,
		RunID:   runID,
	})
	if err != nil {
		return nil, err
	}
	result.Orders = stats
	return result, nil
}

// RunUsers 仅导入用户
func (p *Pipeline) RunUsers(ctx context.Context, req SourceRequest, execute bool) (*UserImportStats, error) {
	spec := p.SourceSpec(req)
	users := firstNonEmpty(req.UsersFile, req.Source, spec.UsersPath)
	export, err := legacy.LoadSource(legacy.SourceSpec{Format: spec.Format, UsersPath: users})
	if err != nil {
		return nil, err
	}
	return p.users.Run(ctx, UserImportInput{Users: export.Users, Execute: execute})
}

// SyncConversions 补齐推广转化
func (p *Pipeline) SyncConversions(ctx context.Context, execute bool) (*ConversionSyncStats, error) {
	return p.conversions.Run(ctx, execute)
}

// Reconcile 对账；预期汇总优先取文件，其次由导入源推算，报告路径非空时写出工作簿
func (p *Pipeline) Reconcile(ctx context.Context, req ReconcileRequest) (*Report, string, error) {
	var export *legacy.Export
	spec := p.SourceSpec(req.Source)
	if spec.OrdersPath != "" {
		loaded, _, err := p.LoadExport(req.Source)
		if err != nil {
			return nil, "", err
		}
		export = loaded
	}

	var expected ExpectedTotals
	if file := firstNonEmpty(req.ExpectedFile, p.reconcileCfg.ExpectedTotalsFile); file != "" {
		loaded, err := LoadExpected(file)
		if err != nil {
			return nil, "", err
		}
		expected = loaded
	} else if export != nil {
		expected = ExpectedFromExport(export, p.imports.Rules())
	}

	report, err := p.reconcile.Run(ctx, expected, p.reconcileCfg.Tolerance)
	if err != nil {
		return nil, "", err
	}
	if export != nil {
		gaps, err := p.reconcile.AffiliateGaps(export, p.imports.Rules())
		if err != nil {
			return nil, "", err
		}
		report.AttachAffiliateGaps(gaps)
		p.reconcile.Remember(ctx, report)
	}

	path := strings.TrimSpace(req.ReportPath)
	if req.SkipReport {
		path = ""
	} else if path == "" && strings.TrimSpace(p.reconcileCfg.ReportDir) != "" {
		name := fmt.Sprintf("reconcile-%s.xlsx", report.GeneratedAt.Format("20060102-150405"))
		path = filepath.Join(p.reconcileCfg.ReportDir, name)
	}
	if path != "" {
		if err := p.exporter.WriteXLSX(path, report); err != nil {
			return report, "", err
		}
		logger.Infow("reconcile_report_written", "path", path, "passed", report.Passed)
	}
	return report, path, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
