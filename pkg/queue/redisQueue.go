package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxRetries    = 3
	defaultBaseDelay     = 5 * time.Second
	defaultQueueTimeout  = 5 * time.Second
	defaultDelayedPoll   = 2 * time.Second
	defaultMetricsTTL    = 24 * time.Hour
	defaultQueueBacklogs = 1000
)

// errInterrupted marks a task whose run was cut off by shutdown.
var errInterrupted = errors.New("task interrupted by shutdown")

// RedisQueue implements Queue using a Redis list for ready tasks and a
// sorted set for delayed ones.
type RedisQueue struct {
	client          *redis.Client
	mainQueue       string
	delayedQueue    string
	processingQueue string
	metricsPrefix   string
	retryManager    *RetryManager
	dlqHandler      DLQHandler
	config          *RedisQueueConfig
	stopChan        chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
}

// RedisQueueConfig contains configuration for RedisQueue
type RedisQueueConfig struct {
	// Prefix of every key, e.g. "bus_booking"
	Prefix string

	MaxRetries    int
	BaseDelay     time.Duration
	QueueTimeout  time.Duration
	DelayedPoll   time.Duration
	BacklogAlert  int64
	EnableDLQ     bool
	EnableMetrics bool
}

func DefaultRedisQueueConfig(prefix string) *RedisQueueConfig {
	if prefix == "" {
		prefix = "bus_booking"
	}
	return &RedisQueueConfig{
		Prefix:        prefix,
		MaxRetries:    defaultMaxRetries,
		BaseDelay:     defaultBaseDelay,
		QueueTimeout:  defaultQueueTimeout,
		DelayedPoll:   defaultDelayedPoll,
		BacklogAlert:  defaultQueueBacklogs,
		EnableDLQ:     true,
		EnableMetrics: true,
	}
}

// NewRedisQueue wraps an already connected client. The queue owns the client
// from here on and closes it in Close.
func NewRedisQueue(client *redis.Client, cfg *RedisQueueConfig) *RedisQueue {
	if cfg == nil {
		cfg = DefaultRedisQueueConfig("")
	}

	q := &RedisQueue{
		client:          client,
		mainQueue:       cfg.Prefix + ":tasks",
		delayedQueue:    cfg.Prefix + ":tasks:delayed",
		processingQueue: cfg.Prefix + ":tasks:processing",
		metricsPrefix:   cfg.Prefix + ":metrics:",
		retryManager:    NewRetryManager(cfg.BaseDelay),
		config:          cfg,
		stopChan:        make(chan struct{}),
	}
	if cfg.EnableDLQ {
		q.dlqHandler = NewRedisDLQHandler(client, cfg.Prefix+":dlq")
	}

	logrus.WithFields(logrus.Fields{
		"main":    q.mainQueue,
		"delayed": q.delayedQueue,
	}).Info("RedisQueue initialized")
	return q
}

// Publish sends a task to the queue
func (r *RedisQueue) Publish(ctx context.Context, task *Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	r.applyDefaults(task)
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if task.ExecuteAt.After(time.Now()) {
		score := float64(task.ExecuteAt.UnixNano()) / 1e9
		if err := r.client.ZAdd(ctx, r.delayedQueue, &redis.Z{Score: score, Member: taskData}).Err(); err != nil {
			return fmt.Errorf("failed to publish delayed task: %w", err)
		}
		r.incrementMetric(ctx, "tasks_delayed", 1)
	} else {
		if err := r.client.LPush(ctx, r.mainQueue, taskData).Err(); err != nil {
			return fmt.Errorf("failed to publish immediate task: %w", err)
		}
		r.incrementMetric(ctx, "tasks_queued", 1)
	}

	logrus.WithFields(logrus.Fields{
		"task_id":    task.ID,
		"task_type":  task.Type,
		"execute_at": task.ExecuteAt.Format(time.RFC3339),
	}).Debug("Task published")
	return nil
}

// Subscribe starts the consumer goroutines. They run until ctx is done or Close is called.
func (r *RedisQueue) Subscribe(ctx context.Context, handler func(context.Context, *Task) error) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	r.wg.Add(3)
	go r.processDelayedTasks(ctx)
	go r.processMainQueue(ctx, handler)
	go r.monitorBacklog(ctx)

	logrus.Info("RedisQueue subscriber started")
	return nil
}

func (r *RedisQueue) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-r.stopChan:
		return true
	default:
		return false
	}
}

func (r *RedisQueue) processMainQueue(ctx context.Context, handler func(context.Context, *Task) error) {
	defer r.wg.Done()

	for !r.stopped(ctx) {
		if err := r.processNext(ctx, handler); err != nil {
			if r.stopped(ctx) {
				break
			}
			logrus.Errorf("Error processing queue: %v", err)
			time.Sleep(time.Second)
		}
	}
	logrus.Info("Main queue processor stopped")
}

// processNext moves one task into the processing list, runs it and removes it
func (r *RedisQueue) processNext(ctx context.Context, handler func(context.Context, *Task) error) error {
	taskData, err := r.client.BRPopLPush(ctx, r.mainQueue, r.processingQueue, r.config.QueueTimeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to move task to processing queue: %w", err)
	}

	defer func() {
		if err := r.client.LRem(context.WithoutCancel(ctx), r.processingQueue, 1, taskData).Err(); err != nil {
			logrus.Errorf("Failed to remove task from processing queue: %v", err)
		}
	}()

	var task Task
	if err := json.Unmarshal([]byte(taskData), &task); err != nil {
		r.moveToDLQ(ctx, &Task{
			ID:        "corrupted_" + uuid.NewString(),
			Type:      "corrupted",
			Data:      map[string]interface{}{"raw_data": taskData},
			CreatedAt: time.Now(),
		}, fmt.Errorf("invalid task format: %w", err))
		return nil
	}

	if err := r.executeTaskWithRetry(ctx, &task, handler); err != nil {
		if errors.Is(err, errInterrupted) {
			r.requeue(ctx, &task)
			return nil
		}
		logrus.WithFields(logrus.Fields{
			"task_id":  task.ID,
			"attempts": task.Attempts,
		}).Errorf("Task failed: %v", err)
		r.moveToDLQ(ctx, &task, err)
		return nil
	}

	logrus.WithField("task_id", task.ID).Debug("Task completed successfully")
	return nil
}

// requeue parks a task cut off by shutdown in the delayed set, due at once,
// so the next consumer runs it instead of the DLQ keeping it.
func (r *RedisQueue) requeue(ctx context.Context, task *Task) {
	ctx = context.WithoutCancel(ctx)
	task.ExecuteAt = time.Now()

	taskData, err := json.Marshal(task)
	if err != nil {
		logrus.Errorf("Failed to marshal interrupted task %s: %v", task.ID, err)
		return
	}

	score := float64(task.ExecuteAt.UnixNano()) / 1e9
	if err := r.client.ZAdd(ctx, r.delayedQueue, &redis.Z{Score: score, Member: taskData}).Err(); err != nil {
		logrus.Errorf("Failed to requeue interrupted task %s: %v", task.ID, err)
		return
	}
	logrus.WithField("task_id", task.ID).Info("Task requeued on shutdown")
}

func (r *RedisQueue) processDelayedTasks(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.DelayedPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			if err := r.moveReadyDelayedTasks(ctx); err != nil {
				logrus.Errorf("Failed to process delayed tasks: %v", err)
			}
		}
	}
}

func (r *RedisQueue) moveReadyDelayedTasks(ctx context.Context) error {
	now := fmt.Sprintf("%f", float64(time.Now().UnixNano())/1e9)

	tasks, err := r.client.ZRangeByScore(ctx, r.delayedQueue, &redis.ZRangeBy{
		Min: "0",
		Max: now,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to get delayed tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil
	}

	// ZREM per member so a task added between the two calls is not lost
	pipe := r.client.TxPipeline()
	for _, taskData := range tasks {
		pipe.LPush(ctx, r.mainQueue, taskData)
		pipe.ZRem(ctx, r.delayedQueue, taskData)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to move delayed tasks: %w", err)
	}

	r.incrementMetric(ctx, "tasks_delayed_processed", int64(len(tasks)))
	logrus.Debugf("Moved %d delayed tasks to main queue", len(tasks))
	return nil
}

func (r *RedisQueue) executeTaskWithRetry(ctx context.Context, task *Task, handler func(context.Context, *Task) error) error {
	for {
		task.Attempts++

		err := handler(ctx, task)
		if err == nil {
			r.incrementMetric(ctx, "tasks_success", 1)
			return nil
		}
		r.incrementMetric(ctx, "tasks_failure", 1)

		if r.stopped(ctx) {
			return fmt.Errorf("%w: %v", errInterrupted, err)
		}

		shouldRetry, delay := r.retryManager.ShouldRetry(task, err)
		if !shouldRetry {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"task_id": task.ID,
			"attempt": task.Attempts,
			"max":     task.MaxRetries,
			"delay":   delay.String(),
		}).Warnf("Task failed, retrying: %v", err)

		if ms := int64(delay / time.Millisecond); ms > 0 {
			delay += time.Duration(rand.Int63n(ms)) * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", errInterrupted, err)
		case <-r.stopChan:
			return fmt.Errorf("%w: %v", errInterrupted, err)
		case <-time.After(delay):
		}
	}
}

func (r *RedisQueue) moveToDLQ(ctx context.Context, task *Task, err error) {
	if r.dlqHandler == nil {
		return
	}
	r.dlqHandler.HandleFailedTask(ctx, task, err)
	r.incrementMetric(ctx, "tasks_dlq", 1)
}

func (r *RedisQueue) applyDefaults(task *Task) {
	if task.ID == "" {
		task.ID = "task_" + uuid.NewString()
	}
	if task.MaxRetries == 0 {
		task.MaxRetries = r.config.MaxRetries
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if task.ExecuteAt.IsZero() {
		task.ExecuteAt = task.CreatedAt
	}
}

// monitorBacklog warns when ready tasks pile up faster than they are consumed
func (r *RedisQueue) monitorBacklog(ctx context.Context) {
	defer r.wg.Done()

	if !r.config.EnableMetrics {
		return
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			stats, err := r.Stats(ctx)
			if err != nil {
				logrus.Errorf("Failed to collect queue metrics: %v", err)
				continue
			}
			if stats.MainQueue > r.config.BacklogAlert {
				logrus.WithField("main_queue", stats.MainQueue).
					Warnf("Main queue size exceeds threshold %d", r.config.BacklogAlert)
			}
		}
	}
}

func (r *RedisQueue) incrementMetric(ctx context.Context, metric string, value int64) {
	if !r.config.EnableMetrics || r.client == nil {
		return
	}

	key := r.metricsPrefix + metric
	pipe := r.client.Pipeline()
	pipe.IncrBy(ctx, key, value)
	pipe.Expire(ctx, key, defaultMetricsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		logrus.Debugf("Failed to record metric %s: %v", metric, err)
	}
}

// Stats returns current queue lengths
func (r *RedisQueue) Stats(ctx context.Context) (*QueueStats, error) {
	pipe := r.client.Pipeline()

	mainLen := pipe.LLen(ctx, r.mainQueue)
	delayedLen := pipe.ZCard(ctx, r.delayedQueue)
	processingLen := pipe.LLen(ctx, r.processingQueue)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}

	return &QueueStats{
		MainQueue:       mainLen.Val(),
		DelayedQueue:    delayedLen.Val(),
		ProcessingQueue: processingLen.Val(),
		Timestamp:       time.Now(),
	}, nil
}

// Close stops the consumers and closes the Redis client
func (r *RedisQueue) Close() error {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	logrus.Info("RedisQueue closed successfully")
	return nil
}

// QueueStats contains statistics about queue state
type QueueStats struct {
	MainQueue       int64     `json:"main_queue"`
	DelayedQueue    int64     `json:"delayed_queue"`
	ProcessingQueue int64     `json:"processing_queue"`
	Timestamp       time.Time `json:"timestamp"`
}
