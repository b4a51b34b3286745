package admin

import (
	"github.com/eksporyuk-migrate/internal/provider"
	"github.com/eksporyuk-migrate/internal/queue"
)

// Handler 迁移管理接口处理器
type Handler struct {
	*provider.Container
	Enqueuer queue.Enqueuer
}

// New 创建后台处理器
func New(c *provider.Container) *Handler {
	h := &Handler{Container: c}
	if c != nil && c.QueueClient != nil {
		h.Enqueuer = c.QueueClient
	}
	return h
}
