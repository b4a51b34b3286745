package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileAppliesDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := []byte(`
database:
  driver: postgres
  dsn: "host=localhost user=migrate dbname=eksporyuk"
import:
  batch_size: 250
  review_estimates: false
reconcile:
  tolerance: 1000
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("expected postgres driver, got %s", cfg.Database.Driver)
	}
	if cfg.Import.BatchSize != 250 {
		t.Fatalf("expected batch size 250, got %d", cfg.Import.BatchSize)
	}
	if cfg.Import.ReviewEstimates {
		t.Fatalf("expected review_estimates override to false")
	}
	if cfg.Import.Format != "json" {
		t.Fatalf("expected default format json, got %s", cfg.Import.Format)
	}
	if cfg.Reconcile.Tolerance != 1000 {
		t.Fatalf("expected tolerance 1000, got %d", cfg.Reconcile.Tolerance)
	}
	if cfg.Sejoli.PerPage != 100 {
		t.Fatalf("expected default per_page 100, got %d", cfg.Sejoli.PerPage)
	}
	if cfg.Queue.Queues["critical"] != 5 {
		t.Fatalf("expected default critical queue weight, got %+v", cfg.Queue.Queues)
	}
}

func TestLoadFileEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9000\"\n"), 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	t.Setenv("SEJOLI_USERNAME", "admin")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	if cfg.Server.Port != "9000" {
		t.Fatalf("expected port 9000, got %s", cfg.Server.Port)
	}
	if cfg.Sejoli.Username != "admin" {
		t.Fatalf("expected env override for sejoli.username, got %q", cfg.Sejoli.Username)
	}
}

func TestDurationHelpers(t *testing.T) {
	if got := (ImportConfig{}).LockTTL().Minutes(); got != 30 {
		t.Fatalf("expected default lock ttl 30m, got %v", got)
	}
	if got := (SejoliConfig{RequestIntervalMS: 250}).RequestInterval().Milliseconds(); got != 250 {
		t.Fatalf("expected 250ms interval, got %d", got)
	}
	if got := (SejoliConfig{}).RequestInterval().Seconds(); got != 1 {
		t.Fatalf("expected default 1s interval, got %v", got)
	}
	if got := (SejoliConfig{}).Timeout().Seconds(); got != 30 {
		t.Fatalf("expected default 30s timeout, got %v", got)
	}
}

func TestRoleAssignments(t *testing.T) {
	cfg := SecurityConfig{AdminRoles: []AdminRoleBinding{
		{Subject: " Ops@EksporYuk.com ", Role: "operator"},
		{Subject: "finance@eksporyuk.com", Role: ""},
		{Subject: "ops@eksporyuk.com", Role: "reviewer"},
	}}
	got := cfg.RoleAssignments()
	if len(got) != 1 || got["ops@eksporyuk.com"] != "reviewer" {
		t.Fatalf("unexpected assignments: %v", got)
	}
}
