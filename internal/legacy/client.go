package legacy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eksporyuk-migrate/internal/logger"

	"golang.org/x/time/rate"
)

var (
	// ErrClientNotConfigured 未配置旧系统 API 地址
	ErrClientNotConfigured = errors.New("sejoli api not configured")
	// ErrUnexpectedStatus 旧系统 API 返回非 2xx
	ErrUnexpectedStatus = errors.New("unexpected sejoli api status")
)

const (
	defaultPerPage  = 100
	maxPages        = 1000
	defaultInterval = time.Second
)

// ClientConfig 旧系统只读 API 配置
type ClientConfig struct {
	BaseURL    string // 例如 https://member.example.com/wp-json/sejoli-api/v1
	UsersURL   string // 例如 https://member.example.com/wp-json/wp/v2/users
	Username   string
	Password   string
	Interval   time.Duration
	PerPage    int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client Sejoli 与 WordPress REST 只读客户端，请求间隔固定
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient 创建客户端
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrClientNotConfigured
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = defaultPerPage
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Every(cfg.Interval), 1),
	}, nil
}

type salesEnvelope struct {
	Orders []json.RawMessage `json:"orders"`
	Data   []json.RawMessage `json:"data"`
}

// FetchSalesPage 拉取一页销售记录
func (c *Client) FetchSalesPage(ctx context.Context, page int) ([]Order, error) {
	body, _, err := c.get(ctx, c.endpoint(c.cfg.BaseURL, "sales"), page)
	if err != nil {
		return nil, err
	}
	items, err := decodeList(body)
	if err != nil {
		return nil, fmt.Errorf("decode sales page %d: %w", page, err)
	}
	orders := make([]Order, 0, len(items))
	for i, item := range items {
		var order Order
		if err := json.Unmarshal(item, &order); err != nil {
			logger.Warnw("sejoli_sale_decode_failed", "page", page, "index", i, "error", err)
			continue
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// FetchAllSales 逐页拉取全部销售记录
func (c *Client) FetchAllSales(ctx context.Context) ([]Order, error) {
	var all []Order
	for page := 1; page <= maxPages; page++ {
		orders, err := c.FetchSalesPage(ctx, page)
		if err != nil {
			return nil, err
		}
		all = append(all, orders...)
		logger.Debugw("sejoli_sales_page_fetched", "page", page, "count", len(orders))
		if len(orders) < c.cfg.PerPage {
			break
		}
	}
	return all, nil
}

type wpUser struct {
	ID             FlexInt `json:"id"`
	Name           string  `json:"name"`
	Slug           string  `json:"slug"`
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	RegisteredDate string  `json:"registered_date"`
}

// FetchAllUsers 拉取 WordPress 用户（需要具备 edit 权限的账号才能拿到邮箱）
func (c *Client) FetchAllUsers(ctx context.Context) ([]User, error) {
	if strings.TrimSpace(c.cfg.UsersURL) == "" {
		return nil, nil
	}
	var all []User
	for page := 1; page <= maxPages; page++ {
		body, header, err := c.get(ctx, c.cfg.UsersURL, page, "context", "edit")
		if err != nil {
			return nil, err
		}
		var items []wpUser
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("decode users page %d: %w", page, err)
		}
		for _, item := range items {
			login := item.Username
			if login == "" {
				login = item.Slug
			}
			registered, err := ParseTime(item.RegisteredDate)
			if err != nil {
				logger.Warnw("wp_user_registered_invalid", "user_id", item.ID, "error", err)
			}
			all = append(all, User{
				ID:          item.ID,
				Email:       item.Email,
				DisplayName: item.Name,
				Nicename:    item.Slug,
				Login:       login,
				Registered:  registered,
			})
		}
		if totalPages, err := strconv.Atoi(header.Get("X-WP-TotalPages")); err == nil && page >= totalPages {
			break
		}
		if len(items) < c.cfg.PerPage {
			break
		}
	}
	return all, nil
}

// Snapshot 拉取销售与用户组成一份导出，不做任何写入
func (c *Client) Snapshot(ctx context.Context) (*Export, error) {
	orders, err := c.FetchAllSales(ctx)
	if err != nil {
		return nil, err
	}
	users, err := c.FetchAllUsers(ctx)
	if err != nil {
		return nil, err
	}
	export := &Export{Orders: orders, Users: users}
	seen := make(map[int64]struct{})
	for _, order := range orders {
		id := order.AffiliateID.Int64()
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		export.Affiliates = append(export.Affiliates, Affiliate{ID: order.AffiliateID, DisplayName: order.AffiliateName})
	}
	return export, nil
}

func (c *Client) endpoint(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) get(ctx context.Context, rawURL string, page int, extra ...string) ([]byte, http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse url: %w", err)
	}
	query := u.Query()
	query.Set("per_page", strconv.Itoa(c.cfg.PerPage))
	query.Set("page", strconv.Itoa(page))
	for i := 0; i+1 < len(extra); i += 2 {
		query.Set(extra[i], extra[i+1])
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request %s: %w", u.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, u.Path)
	}
	return body, resp.Header, nil
}

// decodeList 兼容数组与 {orders: [...]} / {data: [...]} 两种返回
func decodeList(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var envelope salesEnvelope
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Orders) > 0 {
		return envelope.Orders, nil
	}
	return envelope.Data, nil
}
