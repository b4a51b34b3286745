package queue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/eksporyuk-migrate/internal/config"
	"github.com/eksporyuk-migrate/internal/constants"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列名称
	DefaultQueue = constants.QueueDefault
	// CriticalQueue 导入与补齐等写库任务
	CriticalQueue = constants.QueueCritical
)

// ErrQueueDisabled 队列未启用
var ErrQueueDisabled = errors.New("queue disabled")

// Enqueuer 任务投递接口
type Enqueuer interface {
	Enabled() bool
	EnqueueImport(payload ImportPayload) (string, error)
	EnqueueSyncConversions(payload SyncConversionsPayload) (string, error)
	EnqueueReconcile(payload ReconcilePayload) (string, error)
}

// Client 队列客户端封装
type Client struct {
	client  *asynq.Client
	enabled bool
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{enabled: false}, nil
	}
	return &Client{
		client:  asynq.NewClient(buildRedisOpt(cfg)),
		enabled: true,
	}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueImport 投递导入任务，run_id 同时作为任务ID防止重复投递
func (c *Client) EnqueueImport(payload ImportPayload) (string, error) {
	if !c.Enabled() {
		return "", ErrQueueDisabled
	}
	if strings.TrimSpace(payload.RunID) == "" {
		payload.RunID = uuid.NewString()
	}
	task, err := NewImportTask(payload)
	if err != nil {
		return "", err
	}
	info, err := c.client.Enqueue(task, asynq.Queue(CriticalQueue), asynq.TaskID(payload.RunID), asynq.MaxRetry(1))
	if err != nil {
		return "", fmt.Errorf("enqueue import: %w", err)
	}
	return info.ID, nil
}

// EnqueueSyncConversions 投递推广转化补齐任务
func (c *Client) EnqueueSyncConversions(payload SyncConversionsPayload) (string, error) {
	if !c.Enabled() {
		return "", ErrQueueDisabled
	}
	task, err := NewSyncConversionsTask(payload)
	if err != nil {
		return "", err
	}
	info, err := c.client.Enqueue(task, asynq.Queue(CriticalQueue), asynq.MaxRetry(1))
	if err != nil {
		return "", fmt.Errorf("enqueue sync conversions: %w", err)
	}
	return info.ID, nil
}

// EnqueueReconcile 投递对账任务
func (c *Client) EnqueueReconcile(payload ReconcilePayload) (string, error) {
	if !c.Enabled() {
		return "", ErrQueueDisabled
	}
	task, err := NewReconcileTask(payload)
	if err != nil {
		return "", err
	}
	info, err := c.client.Enqueue(task, asynq.Queue(DefaultQueue))
	if err != nil {
		return "", fmt.Errorf("enqueue reconcile: %w", err)
	}
	return info.ID, nil
}

// BuildServerConfig 生成队列服务配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	opt := buildRedisOpt(cfg)
	concurrency := 2
	if cfg != nil && cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	queues := map[string]int{CriticalQueue: 5, DefaultQueue: 1}
	if cfg != nil && len(cfg.Queues) > 0 {
		queues = cfg.Queues
	}
	return opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
	}
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	host := "127.0.0.1"
	port := 6379
	password := ""
	db := 0
	if cfg != nil {
		if strings.TrimSpace(cfg.Host) != "" {
			host = strings.TrimSpace(cfg.Host)
		}
		if cfg.Port > 0 {
			port = cfg.Port
		}
		password = cfg.Password
		db = cfg.DB
	}
	return asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	}
}
