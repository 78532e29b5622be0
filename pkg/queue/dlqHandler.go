package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// DLQHandler handles tasks that exhausted their retries
type DLQHandler interface {
	HandleFailedTask(ctx context.Context, task *Task, err error)
}

// RedisDLQHandler keeps failed tasks in a sorted set scored by failure time
type RedisDLQHandler struct {
	client *redis.Client
	dlq    string
}

// FailedTask represents a task that failed execution
type FailedTask struct {
	Task     *Task     `json:"task"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
	Attempts int       `json:"attempts"`
}

func NewRedisDLQHandler(client *redis.Client, dlq string) *RedisDLQHandler {
	return &RedisDLQHandler{
		client: client,
		dlq:    dlq,
	}
}

func (d *RedisDLQHandler) HandleFailedTask(ctx context.Context, task *Task, err error) {
	failedTask := &FailedTask{
		Task:     task,
		Error:    err.Error(),
		FailedAt: time.Now(),
		Attempts: task.Attempts,
	}

	taskData, marshalErr := json.Marshal(failedTask)
	if marshalErr != nil {
		logrus.Errorf("Failed to marshal failed task: %v", marshalErr)
		return
	}

	// the consumer context may already be cancelled during shutdown
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	score := float64(failedTask.FailedAt.UnixNano()) / 1e9
	if err := d.client.ZAdd(ctx, d.dlq, &redis.Z{Score: score, Member: taskData}).Err(); err != nil {
		logrus.Errorf("Failed to send task %s to DLQ: %v", task.ID, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"task_id":   task.ID,
		"task_type": task.Type,
		"attempts":  task.Attempts,
	}).Warnf("Task moved to DLQ: %v", err)
}
