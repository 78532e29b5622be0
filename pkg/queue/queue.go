package queue

import (
	"context"

	"github.com/ds124wfegd/busbooker/internal/service"
)

// Queue интерфейс очереди
type Queue interface {
	Publish(ctx context.Context, task *Task) error
	Subscribe(ctx context.Context, handler func(context.Context, *Task) error) error
	Close() error
}

// ServiceAdapter адаптирует Queue к интерфейсу service.TaskPublisher
type ServiceAdapter struct {
	queue Queue
}

func NewServiceAdapter(q Queue) *ServiceAdapter {
	return &ServiceAdapter{queue: q}
}

// Publish converts a service.Task into a queue Task
func (a *ServiceAdapter) Publish(ctx context.Context, task *service.Task) error {
	if a.queue == nil {
		return nil
	}

	return a.queue.Publish(ctx, &Task{
		ID:         task.ID,
		Type:       TaskType(task.Type),
		Data:       task.Data,
		ExecuteAt:  task.ExecuteAt,
		MaxRetries: task.MaxRetries,
		Attempts:   task.Attempts,
	})
}
