package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/eksporyuk-migrate/internal/config"
	"github.com/eksporyuk-migrate/internal/logger"
)

const (
	exitOK        = 0
	exitFailed    = 1
	exitNotPassed = 2
)

// cliFlags 命令行参数
type cliFlags struct {
	task       string
	configPath string
	source     string
	format     string
	users      string
	affiliates string
	expected   string
	report     string
	execute    bool
	subject    string
	product    string
	productID  int64
	total      string
	status     string
	affiliate  bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}

	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		return exitFailed
	}
	logger.Init(logger.ModeCLI, cfg.Log.ToLoggerOptions())
	defer func() { _ = logger.Z().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code, err := dispatch(ctx, cfg, flags)
	if err != nil {
		logger.Errorw("migrate_task_failed", "task", flags.task, "error", err)
		return exitFailed
	}
	return code
}

func parseFlags(args []string) (cliFlags, error) {
	var f cliFlags
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.StringVar(&f.task, "task", "", "任务: import, users, sync-conversions, reconcile, fetch, classify, token")
	fs.StringVar(&f.configPath, "config", "", "配置文件路径，为空时按默认目录查找 config.yml")
	fs.StringVar(&f.source, "source", "", "订单导出文件（fetch 时为输出文件）")
	fs.StringVar(&f.format, "format", "", "导出格式: json, tsv, xlsx")
	fs.StringVar(&f.users, "users", "", "用户导出文件")
	fs.StringVar(&f.affiliates, "affiliates", "", "推广人导出文件")
	fs.StringVar(&f.expected, "expected", "", "对账预期汇总 YAML")
	fs.StringVar(&f.report, "report", "", "对账报告输出路径 (.xlsx)")
	fs.BoolVar(&f.execute, "execute", false, "真正写库，默认演练")
	fs.StringVar(&f.subject, "subject", "", "token 任务的管理员标识")
	fs.StringVar(&f.product, "product", "", "classify 任务的商品名")
	fs.Int64Var(&f.productID, "product-id", 0, "classify 任务的商品ID")
	fs.StringVar(&f.total, "total", "", "classify 任务的订单金额")
	fs.StringVar(&f.status, "status", "", "classify 任务的旧系统订单状态")
	fs.BoolVar(&f.affiliate, "affiliate", false, "classify 任务的订单是否带推广人")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	f.task = strings.ToLower(strings.TrimSpace(f.task))
	if f.task == "" {
		fs.Usage()
		return f, fmt.Errorf("-task is required")
	}
	return f, nil
}

func loadConfig(path string) (*config.Config, error) {
	if strings.TrimSpace(path) == "" {
		return config.Load(), nil
	}
	return config.LoadFile(path)
}

func dispatch(ctx context.Context, cfg *config.Config, f cliFlags) (int, error) {
	switch f.task {
	case "import":
		return runImport(ctx, cfg, f)
	case "users":
		return runUsers(ctx, cfg, f)
	case "sync-conversions":
		return runSyncConversions(ctx, cfg, f)
	case "reconcile":
		return runReconcile(ctx, cfg, f)
	case "fetch":
		return runFetch(ctx, cfg, f)
	case "classify":
		return runClassify(cfg, f)
	case "token":
		return runToken(cfg, f)
	default:
		return exitFailed, fmt.Errorf("unknown task %q", f.task)
	}
}
