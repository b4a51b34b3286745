package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func newLimitedEngine(client *redis.Client, rule RateLimitRule) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(client, rule, KeyByIP))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status_code": 0})
	})
	return r
}

func hit(r *gin.Engine) (int, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(w, req)
	var resp struct {
		StatusCode int `json:"status_code"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp.StatusCode, w
}

func TestRateLimitMiddlewareWithoutClient(t *testing.T) {
	r := newLimitedEngine(nil, RateLimitRule{WindowSeconds: 60, MaxRequests: 1})
	for i := 0; i < 3; i++ {
		if code, _ := hit(r); code != 0 {
			t.Fatalf("request %d should pass without redis, got %d", i, code)
		}
	}
}

func TestRateLimitMiddlewareBlocksAfterLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := newLimitedEngine(client, RateLimitRule{Prefix: "eym:rate:test", WindowSeconds: 60, MaxRequests: 2, BlockSeconds: 300})
	for i := 0; i < 2; i++ {
		if code, _ := hit(r); code != 0 {
			t.Fatalf("request %d should pass, got %d", i, code)
		}
	}
	code, w := hit(r)
	if code != 429 {
		t.Fatalf("third request want 429 got %d", code)
	}
	if w.Header().Get("Retry-After") != "300" {
		t.Fatalf("retry-after want 300 got %s", w.Header().Get("Retry-After"))
	}
	if !mr.Exists("eym:rate:test:10.0.0.1:block") {
		t.Fatalf("expected block key to be set")
	}

	// 计数窗口过期后封禁仍然有效
	mr.FastForward(61 * time.Second)
	if code, _ := hit(r); code != 429 {
		t.Fatalf("blocked client want 429 got %d", code)
	}
	mr.FastForward(300 * time.Second)
	if code, _ := hit(r); code != 0 {
		t.Fatalf("block should expire, got %d", code)
	}
}

func TestKeyByAdminSubject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "1.2.3.4:5678"
	if key := KeyByAdminSubject(c); key != "unknown|1.2.3.4" {
		t.Fatalf("unexpected anonymous key %s", key)
	}
	c.Set("admin_subject", "Ops@Eksporyuk.com")
	if key := KeyByAdminSubject(c); !strings.HasPrefix(key, "ops@eksporyuk.com|") {
		t.Fatalf("unexpected admin key %s", key)
	}
}

func TestToInt64(t *testing.T) {
	cases := []struct {
		name  string
		input interface{}
		want  int64
		ok    bool
	}{
		{name: "int64", input: int64(10), want: 10, ok: true},
		{name: "int", input: int(11), want: 11, ok: true},
		{name: "float64", input: float64(13.9), want: 13, ok: true},
		{name: "string", input: "bad", want: 0, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := toInt64(tc.input)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("want %d/%v got %d/%v", tc.want, tc.ok, got, ok)
			}
		})
	}
}
