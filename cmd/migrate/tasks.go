package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/eksporyuk-migrate/internal/config"
	"github.com/eksporyuk-migrate/internal/legacy"
	"github.com/eksporyuk-migrate/internal/logger"
	"github.com/eksporyuk-migrate/internal/models"
	"github.com/eksporyuk-migrate/internal/provider"
	"github.com/eksporyuk-migrate/internal/rules"
	"github.com/eksporyuk-migrate/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func openContainer(cfg *config.Config) (*provider.Container, error) {
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := models.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return provider.NewContainer(cfg, nil)
}

func sourceRequest(f cliFlags) service.SourceRequest {
	return service.SourceRequest{
		Source:         f.source,
		Format:         f.format,
		UsersFile:      f.users,
		AffiliatesFile: f.affiliates,
	}
}

func printJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		logger.Warnw("migrate_print_failed", "error", err)
	}
}

func runImport(ctx context.Context, cfg *config.Config, f cliFlags) (int, error) {
	container, err := openContainer(cfg)
	if err != nil {
		return exitFailed, err
	}
	defer container.Close()

	result, err := container.Pipeline.RunImport(ctx, sourceRequest(f), f.execute, uuid.NewString())
	if err != nil {
		return exitFailed, err
	}
	printJSON(result)
	if !f.execute {
		logger.Infow("migrate_dry_run_done", "task", f.task, "hint", "rerun with -execute to write")
	}
	return exitOK, nil
}

func runUsers(ctx context.Context, cfg *config.Config, f cliFlags) (int, error) {
	container, err := openContainer(cfg)
	if err != nil {
		return exitFailed, err
	}
	defer container.Close()

	stats, err := container.Pipeline.RunUsers(ctx, sourceRequest(f), f.execute)
	if err != nil {
		return exitFailed, err
	}
	printJSON(stats)
	return exitOK, nil
}

func runSyncConversions(ctx context.Context, cfg *config.Config, f cliFlags) (int, error) {
	container, err := openContainer(cfg)
	if err != nil {
		return exitFailed, err
	}
	defer container.Close()

	stats, err := container.Pipeline.SyncConversions(ctx, f.execute)
	if err != nil {
		return exitFailed, err
	}
	printJSON(stats)
	return exitOK, nil
}

func runReconcile(ctx context.Context, cfg *config.Config, f cliFlags) (int, error) {
	container, err := openContainer(cfg)
	if err != nil {
		return exitFailed, err
	}
	defer container.Close()

	report, path, err := container.Pipeline.Reconcile(ctx, service.ReconcileRequest{
		ExpectedFile: f.expected,
		ReportPath:   f.report,
		Source:       sourceRequest(f),
	})
	if err != nil {
		return exitFailed, err
	}
	printJSON(report)
	logger.Infow("migrate_reconcile_done", "passed", report.Passed, "report_path", path, "discrepancies", len(report.Discrepancies))
	if !report.Passed {
		return exitNotPassed, nil
	}
	return exitOK, nil
}

func runFetch(ctx context.Context, cfg *config.Config, f cliFlags) (int, error) {
	out := strings.TrimSpace(f.source)
	if out == "" {
		out = "legacy-export.json"
	}
	client, err := legacy.NewClient(legacy.ClientConfig{
		BaseURL:  cfg.Sejoli.BaseURL,
		UsersURL: cfg.Sejoli.UsersURL,
		Username: cfg.Sejoli.Username,
		Password: cfg.Sejoli.Password,
		Interval: cfg.Sejoli.RequestInterval(),
		PerPage:  cfg.Sejoli.PerPage,
		Timeout:  cfg.Sejoli.Timeout(),
	})
	if err != nil {
		return exitFailed, err
	}
	export, err := client.Snapshot(ctx)
	if err != nil {
		return exitFailed, err
	}
	if err := legacy.WriteJSONFile(out, export); err != nil {
		return exitFailed, err
	}
	logger.Infow("migrate_fetch_done",
		"path", out,
		"orders", len(export.Orders),
		"users", len(export.Users),
		"affiliates", len(export.Affiliates),
	)
	return exitOK, nil
}

// classifySummary 导出文件的分类汇总
type classifySummary struct {
	RulesVersion string         `json:"rules_version"`
	Orders       int            `json:"orders"`
	Tiers        map[string]int `json:"tiers"`
	Via          map[string]int `json:"via"`
	ReviewKinds  map[string]int `json:"review_kinds"`
	Unmatched    []string       `json:"unmatched_products,omitempty"`
}

func runClassify(cfg *config.Config, f cliFlags) (int, error) {
	rs, err := rules.Load(cfg.Import.RulesFile)
	if err != nil {
		return exitFailed, err
	}
	if strings.TrimSpace(f.product) != "" || f.productID > 0 {
		total := decimal.Zero
		if strings.TrimSpace(f.total) != "" {
			total, err = legacy.ParseAmount(f.total)
			if err != nil {
				return exitFailed, fmt.Errorf("%w: total %q", service.ErrInvalidInput, f.total)
			}
		}
		result, err := service.PreviewOrder(rs, service.PreviewInput{
			ProductID:    f.productID,
			ProductName:  f.product,
			GrandTotal:   total,
			Status:       f.status,
			HasAffiliate: f.affiliate,
		})
		if err != nil {
			return exitFailed, err
		}
		printJSON(result)
		return exitOK, nil
	}

	spec := legacy.SourceSpec{
		Format:     firstNonEmpty(f.format, cfg.Import.Format),
		OrdersPath: firstNonEmpty(f.source, cfg.Import.SourceFile),
	}
	if spec.OrdersPath == "" {
		return exitFailed, fmt.Errorf("%w: -source or -product is required", service.ErrInvalidInput)
	}
	export, err := legacy.LoadSource(spec)
	if err != nil {
		return exitFailed, err
	}
	summary := classifySummary{
		RulesVersion: rs.Version(),
		Tiers:        make(map[string]int),
		Via:          make(map[string]int),
		ReviewKinds:  make(map[string]int),
	}
	unmatched := make(map[string]struct{})
	for _, order := range export.Orders {
		result, err := service.PreviewOrder(rs, service.PreviewInput{
			ProductID:    order.ProductID.Int64(),
			ProductName:  order.ProductName,
			GrandTotal:   order.GrandTotal,
			Status:       order.Status,
			HasAffiliate: order.HasAffiliate(),
		})
		if err != nil {
			logger.Warnw("migrate_classify_order_failed", "legacy_order_id", order.ID.Int64(), "error", err)
			continue
		}
		summary.Orders++
		summary.Tiers[result.Classification.Tier.String()]++
		summary.Via[string(result.Classification.Via)]++
		for _, kind := range result.ReviewKinds {
			summary.ReviewKinds[kind]++
		}
		if !result.Classification.Resolved() {
			unmatched[order.ProductName] = struct{}{}
		}
	}
	for name := range unmatched {
		summary.Unmatched = append(summary.Unmatched, name)
	}
	sort.Strings(summary.Unmatched)
	printJSON(summary)
	return exitOK, nil
}

func runToken(cfg *config.Config, f cliFlags) (int, error) {
	subject := strings.TrimSpace(f.subject)
	if subject == "" {
		return exitFailed, fmt.Errorf("%w: -subject is required", service.ErrInvalidInput)
	}
	token, expiresAt, err := service.NewAdminTokenService(cfg.JWT).Issue(subject)
	if err != nil {
		return exitFailed, err
	}
	printJSON(map[string]interface{}{"token": token, "expires_at": expiresAt})
	return exitOK, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
