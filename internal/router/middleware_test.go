package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/eksporyuk-migrate/internal/config"
	handlershared "github.com/eksporyuk-migrate/internal/http/handlers/shared"
	"github.com/eksporyuk-migrate/internal/service"

	"github.com/gin-gonic/gin"
)

func TestResolveAllowedOrigin(t *testing.T) {
	got := resolveAllowedOrigin("https://example.com", []string{"*"}, false)
	if got != "*" {
		t.Fatalf("wildcard without credentials should return *, got %s", got)
	}

	got = resolveAllowedOrigin("https://example.com", []string{"*"}, true)
	if got != "https://example.com" {
		t.Fatalf("wildcard with credentials should echo origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://ops.eksporyuk.com", []string{"https://ops.eksporyuk.com"}, false)
	if got != "https://ops.eksporyuk.com" {
		t.Fatalf("allow-list should return matched origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://x.example.com", []string{"https://ops.eksporyuk.com"}, false)
	if got != "" {
		t.Fatalf("unmatched origin should be empty, got %s", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": getRequestID(c)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-123")
	r.ServeHTTP(w, req)

	if w.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("response request id want req-123 got %s", w.Header().Get(requestIDHeader))
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp["request_id"] != "req-123" {
		t.Fatalf("context request id want req-123 got %s", resp["request_id"])
	}

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if strings.TrimSpace(w2.Header().Get(requestIDHeader)) == "" {
		t.Fatalf("generated request id should not be empty")
	}
}

func adminAuthStatus(t *testing.T, tokens *service.AdminTokenService, header string) (int, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AdminAuthMiddleware(tokens))
	r.GET("/admin/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status_code": 0, "subject": handlershared.AdminSubject(c)})
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(w, req)
	var resp struct {
		StatusCode int    `json:"status_code"`
		Subject    string `json:"subject"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	return resp.StatusCode, resp.Subject
}

func TestAdminAuthMiddleware(t *testing.T) {
	tokens := service.NewAdminTokenService(config.JWTConfig{SecretKey: "router-secret", ExpireHours: 1})
	token, _, err := tokens.Issue("ops@eksporyuk.com")
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}

	if code, _ := adminAuthStatus(t, tokens, ""); code != 401 {
		t.Fatalf("missing header want 401 got %d", code)
	}
	if code, _ := adminAuthStatus(t, tokens, "Token "+token); code != 401 {
		t.Fatalf("non bearer header want 401 got %d", code)
	}
	if code, _ := adminAuthStatus(t, tokens, "Bearer not-a-jwt"); code != 401 {
		t.Fatalf("garbage token want 401 got %d", code)
	}
	code, subject := adminAuthStatus(t, tokens, "Bearer "+token)
	if code != 0 || subject != "ops@eksporyuk.com" {
		t.Fatalf("valid token want subject ops@eksporyuk.com, got %d %q", code, subject)
	}

	missingSecret := service.NewAdminTokenService(config.JWTConfig{})
	if code, _ := adminAuthStatus(t, missingSecret, "Bearer "+token); code != 401 {
		t.Fatalf("missing secret want 401 got %d", code)
	}
}

func TestAdminRateLimitRuleDefaults(t *testing.T) {
	cfg := config.Config{}
	cfg.Security.AdminRateLimit = config.RateLimitConfig{WindowSeconds: 60, MaxRequests: 30, BlockSeconds: 120}
	rule := AdminRateLimitRule(cfg)
	if rule.Prefix != "eym:rate:admin" || rule.MaxRequests != 30 || rule.BlockSeconds != 120 {
		t.Fatalf("unexpected rule: %+v", rule)
	}
}
