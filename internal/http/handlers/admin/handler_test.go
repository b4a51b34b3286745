package admin

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eksporyuk-migrate/internal/authz"
	"github.com/eksporyuk-migrate/internal/cache"
	"github.com/eksporyuk-migrate/internal/config"
	"github.com/eksporyuk-migrate/internal/constants"
	handlershared "github.com/eksporyuk-migrate/internal/http/handlers/shared"
	"github.com/eksporyuk-migrate/internal/models"
	"github.com/eksporyuk-migrate/internal/provider"
	"github.com/eksporyuk-migrate/internal/queue"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
	Pagination struct {
		Total int64 `json:"total"`
	} `json:"pagination"`
}

type fakeEnqueuer struct {
	imports []queue.ImportPayload
	syncs   []queue.SyncConversionsPayload
	err     error
}

func (f *fakeEnqueuer) Enabled() bool { return true }

func (f *fakeEnqueuer) EnqueueImport(payload queue.ImportPayload) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.imports = append(f.imports, payload)
	return payload.RunID, nil
}

func (f *fakeEnqueuer) EnqueueSyncConversions(payload queue.SyncConversionsPayload) (string, error) {
	f.syncs = append(f.syncs, payload)
	return "sync-task", nil
}

func (f *fakeEnqueuer) EnqueueReconcile(queue.ReconcilePayload) (string, error) {
	return "reconcile-task", nil
}

func setupHandler(t *testing.T) (*Handler, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:admin_handler_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	container, err := provider.NewContainer(&config.Config{}, db)
	if err != nil {
		t.Fatalf("init container failed: %v", err)
	}
	h := New(container)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(handlershared.AdminSubjectKey, "ops@eksporyuk.com")
		c.Next()
	})
	r.POST("/imports", h.CreateImport)
	r.GET("/imports", h.ListImports)
	r.GET("/imports/:run_id", h.GetImport)
	r.POST("/conversions/sync", h.SyncConversions)
	r.POST("/reconciliation", h.RunReconcile)
	r.GET("/reconciliation/last", h.GetLastReport)
	r.GET("/reconciliation/last/export", h.ExportLastReport)
	r.GET("/reviews", h.ListReviews)
	r.POST("/reviews/:id/resolve", h.ResolveReview)
	r.GET("/rules", h.GetRules)
	r.POST("/rules/preview", h.PreviewRules)
	r.GET("/me", h.GetAccess)
	return h, r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var resp envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal response failed: %v (%s)", err, w.Body.String())
		}
	}
	return w, resp
}

func TestCreateImportRequiresQueue(t *testing.T) {
	_, r := setupHandler(t)
	_, resp := doJSON(t, r, http.MethodPost, "/imports", gin.H{"execute": true})
	if resp.StatusCode != 503 {
		t.Fatalf("want 503 when queue disabled, got %d (%s)", resp.StatusCode, resp.Msg)
	}
}

func TestCreateImportEnqueues(t *testing.T) {
	h, r := setupHandler(t)
	fake := &fakeEnqueuer{}
	h.Enqueuer = fake

	w, resp := doJSON(t, r, http.MethodPost, "/imports", gin.H{"source": " /data/orders.tsv ", "format": "tsv"})
	if w.Code != http.StatusAccepted || resp.StatusCode != 0 {
		t.Fatalf("want 202 accepted, got %d / %d", w.Code, resp.StatusCode)
	}
	if len(fake.imports) != 1 {
		t.Fatalf("expected one enqueued import, got %d", len(fake.imports))
	}
	payload := fake.imports[0]
	if payload.Source != "/data/orders.tsv" || payload.Execute || payload.RunID == "" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	var data struct {
		RunID  string `json:"run_id"`
		DryRun bool   `json:"dry_run"`
	}
	_ = json.Unmarshal(resp.Data, &data)
	if data.RunID != payload.RunID || !data.DryRun {
		t.Fatalf("unexpected response data: %+v", data)
	}

	_, bad := doJSON(t, r, http.MethodPost, "/imports", gin.H{"format": "csv"})
	if bad.StatusCode != 400 {
		t.Fatalf("want 400 for unsupported format, got %d", bad.StatusCode)
	}

	fake.err = errors.New("redis gone")
	_, failed := doJSON(t, r, http.MethodPost, "/imports", gin.H{})
	if failed.StatusCode != 500 || failed.Msg != "internal error" {
		t.Fatalf("want masked 500, got %d %s", failed.StatusCode, failed.Msg)
	}
}

func TestSyncConversionsEnqueues(t *testing.T) {
	h, r := setupHandler(t)
	fake := &fakeEnqueuer{}
	h.Enqueuer = fake
	w, _ := doJSON(t, r, http.MethodPost, "/conversions/sync", gin.H{"execute": true})
	if w.Code != http.StatusAccepted || len(fake.syncs) != 1 || !fake.syncs[0].Execute {
		t.Fatalf("unexpected sync enqueue: %d %+v", w.Code, fake.syncs)
	}
}

func TestListAndGetImports(t *testing.T) {
	h, r := setupHandler(t)
	run := &models.ImportRun{RunID: "run-1", Status: constants.ImportRunStatusFinished, DryRun: true, StartedAt: time.Now()}
	if err := h.ImportRunRepo.Create(run); err != nil {
		t.Fatalf("create run failed: %v", err)
	}

	_, list := doJSON(t, r, http.MethodGet, "/imports?dry_run=true", nil)
	if list.StatusCode != 0 || list.Pagination.Total != 1 {
		t.Fatalf("expected one run, got %d total=%d", list.StatusCode, list.Pagination.Total)
	}
	_, bad := doJSON(t, r, http.MethodGet, "/imports?dry_run=maybe", nil)
	if bad.StatusCode != 400 {
		t.Fatalf("want 400 for bad dry_run, got %d", bad.StatusCode)
	}
	_, found := doJSON(t, r, http.MethodGet, "/imports/run-1", nil)
	if found.StatusCode != 0 {
		t.Fatalf("want run detail, got %d", found.StatusCode)
	}
	_, missing := doJSON(t, r, http.MethodGet, "/imports/run-404", nil)
	if missing.StatusCode != 404 {
		t.Fatalf("want 404, got %d", missing.StatusCode)
	}
}

func TestResolveReview(t *testing.T) {
	h, r := setupHandler(t)
	item := &models.ReviewItem{
		LegacyOrderID: 9001,
		Kind:          constants.ReviewKindCommission,
		Reason:        "price_collision",
		Status:        constants.ReviewStatusOpen,
	}
	if err := h.DB.Create(item).Error; err != nil {
		t.Fatalf("create review failed: %v", err)
	}

	_, list := doJSON(t, r, http.MethodGet, "/reviews?status=open", nil)
	if list.Pagination.Total != 1 {
		t.Fatalf("expected one open review, got %d", list.Pagination.Total)
	}

	path := fmt.Sprintf("/reviews/%d/resolve", item.ID)
	_, missingNote := doJSON(t, r, http.MethodPost, path, gin.H{})
	if missingNote.StatusCode != 400 {
		t.Fatalf("want 400 without note, got %d", missingNote.StatusCode)
	}
	_, resolved := doJSON(t, r, http.MethodPost, path, gin.H{"note": "250000 confirmed with finance"})
	if resolved.StatusCode != 0 {
		t.Fatalf("want resolved, got %d %s", resolved.StatusCode, resolved.Msg)
	}
	var data models.ReviewItem
	_ = json.Unmarshal(resolved.Data, &data)
	if data.Status != constants.ReviewStatusResolved || data.ResolvedBy != "ops@eksporyuk.com" {
		t.Fatalf("unexpected resolved item: %+v", data)
	}
	_, again := doJSON(t, r, http.MethodPost, path, gin.H{"note": "again"})
	if again.StatusCode != 409 {
		t.Fatalf("want 409 on second resolve, got %d", again.StatusCode)
	}
	_, unknown := doJSON(t, r, http.MethodPost, "/reviews/999/resolve", gin.H{"note": "x"})
	if unknown.StatusCode != 404 {
		t.Fatalf("want 404 for unknown review, got %d", unknown.StatusCode)
	}
}

func TestPreviewRules(t *testing.T) {
	_, r := setupHandler(t)
	_, resp := doJSON(t, r, http.MethodPost, "/rules/preview", gin.H{
		"product_name":  "Kelas Ekspor 12 Bulan",
		"grand_total":   "999000",
		"has_affiliate": true,
	})
	if resp.StatusCode != 0 {
		t.Fatalf("preview failed: %d %s", resp.StatusCode, resp.Msg)
	}
	var data struct {
		Status         string `json:"status"`
		Classification struct {
			Tier string `json:"tier"`
		} `json:"classification"`
		GrantsMembership bool `json:"grants_membership"`
	}
	_ = json.Unmarshal(resp.Data, &data)
	if data.Status != constants.TransactionStatusSuccess || data.Classification.Tier != constants.MembershipTierTwelveMonths || !data.GrantsMembership {
		t.Fatalf("unexpected preview: %+v", data)
	}

	_, empty := doJSON(t, r, http.MethodPost, "/rules/preview", gin.H{"grand_total": "10"})
	if empty.StatusCode != 400 {
		t.Fatalf("want 400 without product, got %d", empty.StatusCode)
	}

	_, rulesResp := doJSON(t, r, http.MethodGet, "/rules", nil)
	if rulesResp.StatusCode != 0 {
		t.Fatalf("rules summary failed: %d", rulesResp.StatusCode)
	}
}

func TestReconcileAndLastReport(t *testing.T) {
	_, r := setupHandler(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.UseClient(client, "test")
	t.Cleanup(func() {
		cache.UseClient(nil, "")
		_ = client.Close()
	})

	_, before := doJSON(t, r, http.MethodGet, "/reconciliation/last", nil)
	if before.StatusCode != 404 || before.Msg != "no reconciliation report yet" {
		t.Fatalf("want 404 before first reconcile, got %d %s", before.StatusCode, before.Msg)
	}
	_, beforeExport := doJSON(t, r, http.MethodGet, "/reconciliation/last/export", nil)
	if beforeExport.StatusCode != 404 {
		t.Fatalf("want 404 export before first reconcile, got %d", beforeExport.StatusCode)
	}

	_, run := doJSON(t, r, http.MethodPost, "/reconciliation", nil)
	if run.StatusCode != 0 {
		t.Fatalf("reconcile failed: %d %s", run.StatusCode, run.Msg)
	}
	var data struct {
		Report struct {
			Passed bool `json:"passed"`
		} `json:"report"`
		ReportPath string `json:"report_path"`
	}
	_ = json.Unmarshal(run.Data, &data)
	if !data.Report.Passed || data.ReportPath != "" {
		t.Fatalf("unexpected reconcile result: %+v", data)
	}

	_, last := doJSON(t, r, http.MethodGet, "/reconciliation/last", nil)
	if last.StatusCode != 0 {
		t.Fatalf("want cached report, got %d", last.StatusCode)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reconciliation/last/export", nil))
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("export failed: %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("unexpected content type %s", got)
	}

	_, badExpected := doJSON(t, r, http.MethodPost, "/reconciliation", gin.H{"expected_file": "/nonexistent/expected.yml"})
	if badExpected.StatusCode != 400 {
		t.Fatalf("want 400 for unreadable expected totals, got %d", badExpected.StatusCode)
	}
}

func TestGetAccessListsRolesAndPolicies(t *testing.T) {
	h, r := setupHandler(t)
	if err := h.Authz.SetAdminRoles("ops@eksporyuk.com", []string{authz.RoleOperator}); err != nil {
		t.Fatalf("assign role failed: %v", err)
	}

	_, resp := doJSON(t, r, http.MethodGet, "/me", nil)
	if resp.StatusCode != 0 {
		t.Fatalf("get access failed: %d %s", resp.StatusCode, resp.Msg)
	}
	var access authz.AdminAccess
	if err := json.Unmarshal(resp.Data, &access); err != nil {
		t.Fatalf("decode access failed: %v", err)
	}
	if access.Subject != "admin:ops@eksporyuk.com" || len(access.Roles) != 1 || access.Roles[0] != "role:operator" {
		t.Fatalf("unexpected access: %+v", access)
	}
	canImport := false
	for _, policy := range access.Policies {
		if policy.Object == "/admin/imports" && policy.Action == "POST" {
			canImport = true
		}
	}
	if !canImport || len(access.Policies) != 6 {
		t.Fatalf("expected operator policies incl. inherited, got %+v", access.Policies)
	}
}

func TestGetAccessWithoutAuthz(t *testing.T) {
	h, r := setupHandler(t)
	h.Authz = nil
	_, resp := doJSON(t, r, http.MethodGet, "/me", nil)
	if resp.StatusCode != 503 {
		t.Fatalf("want 503 without authz, got %d", resp.StatusCode)
	}
}
