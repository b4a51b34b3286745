package queue

import (
	"encoding/json"
	"fmt"

	"github.com/eksporyuk-migrate/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskImportRun 旧订单导入任务
	TaskImportRun = constants.TaskImportRun
	// TaskSyncConversions 推广转化补齐任务
	TaskSyncConversions = constants.TaskSyncConversions
	// TaskReconcile 对账任务
	TaskReconcile = constants.TaskReconcile
)

// ImportPayload 导入任务载荷，文件路径为空时使用配置
type ImportPayload struct {
	RunID          string `json:"run_id"`
	Source         string `json:"source"`
	Format         string `json:"format"`
	UsersFile      string `json:"users_file,omitempty"`
	AffiliatesFile string `json:"affiliates_file,omitempty"`
	Execute        bool   `json:"execute"`
}

// SyncConversionsPayload 推广转化补齐任务载荷
type SyncConversionsPayload struct {
	Execute bool `json:"execute"`
}

// ReconcilePayload 对账任务载荷
type ReconcilePayload struct {
	ExpectedFile string `json:"expected_file,omitempty"`
	ReportPath   string `json:"report_path,omitempty"`
}

// NewImportTask 创建导入任务
func NewImportTask(payload ImportPayload) (*asynq.Task, error) {
	return newTask(TaskImportRun, payload)
}

// NewSyncConversionsTask 创建推广转化补齐任务
func NewSyncConversionsTask(payload SyncConversionsPayload) (*asynq.Task, error) {
	return newTask(TaskSyncConversions, payload)
}

// NewReconcileTask 创建对账任务
func NewReconcileTask(payload ReconcilePayload) (*asynq.Task, error) {
	return newTask(TaskReconcile, payload)
}

// DecodePayload 解析任务载荷
func DecodePayload(task *asynq.Task, dest interface{}) error {
	if task == nil {
		return fmt.Errorf("nil task")
	}
	if err := json.Unmarshal(task.Payload(), dest); err != nil {
		return fmt.Errorf("decode %s payload: %w", task.Type(), err)
	}
	return nil
}

func newTask(taskType string, payload interface{}) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body), nil
}
