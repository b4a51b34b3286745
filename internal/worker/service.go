package worker

import (
	"context"
	"errors"
	"strings"

	"github.com/eksporyuk-migrate/internal/config"
	"github.com/eksporyuk-migrate/internal/logger"
	"github.com/eksporyuk-migrate/internal/queue"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
)

// Service 异步队列服务，附带定时对账
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
	cron     *cron.Cron
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, reconcileCfg config.ReconcileConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	serverCfg.Logger = logger.S()
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	scheduler, err := buildScheduler(reconcileCfg.Cron, consumer)
	if err != nil {
		return nil, err
	}
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
		cron:     scheduler,
	}, nil
}

// buildScheduler 按表达式投递对账任务；表达式为空时不启用
func buildScheduler(spec string, consumer *Consumer) (*cron.Cron, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	scheduler := cron.New()
	_, err := scheduler.AddFunc(spec, func() {
		enqueueScheduledReconcile(consumer.QueueClient)
	})
	if err != nil {
		return nil, err
	}
	return scheduler, nil
}

func enqueueScheduledReconcile(client queue.Enqueuer) {
	if client == nil || !client.Enabled() {
		logger.Warnw("worker_scheduled_reconcile_skip_queue_disabled")
		return
	}
	id, err := client.EnqueueReconcile(queue.ReconcilePayload{})
	if err != nil {
		logger.Warnw("worker_scheduled_reconcile_enqueue_failed", "error", err)
		return
	}
	logger.Infow("worker_scheduled_reconcile_enqueued", "task_id", id)
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.cron != nil {
		s.cron.Start()
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	if s.cron != nil {
		stopped := s.cron.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
		}
	}
	s.server.Shutdown()
	return nil
}
