package queue

import (
	"math/rand"
	"strings"
	"time"
)

// RetryManager manages retry logic for failed tasks
type RetryManager struct {
	baseDelay time.Duration
	maxDelay  time.Duration
}

func NewRetryManager(baseDelay time.Duration) *RetryManager {
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	return &RetryManager{
		baseDelay: baseDelay,
		maxDelay:  baseDelay * 16,
	}
}

// ShouldRetry determines if a task should be retried and returns the delay
func (r *RetryManager) ShouldRetry(task *Task, err error) (bool, time.Duration) {
	if task.Attempts >= task.MaxRetries {
		return false, 0
	}

	if !isRetryableError(err) {
		return false, 0
	}

	return true, r.calculateBackoff(task.Attempts)
}

var nonRetryableErrors = []string{
	"invalid",
	"not found",
	"permission denied",
	"validation failed",
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range nonRetryableErrors {
		if strings.Contains(errStr, pattern) {
			return false
		}
	}
	return true
}

// calculateBackoff returns base * 2^(attempt-1) with ±25% jitter, capped at maxDelay
func (r *RetryManager) calculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return r.baseDelay
	}

	backoff := r.baseDelay * time.Duration(1<<uint(attempt-1))

	if quarter := int64(backoff / 4); quarter > 0 {
		jitter := time.Duration(rand.Int63n(quarter))
		if rand.Intn(2) == 0 {
			backoff += jitter
		} else {
			backoff -= jitter
		}
	}

	if backoff > r.maxDelay {
		backoff = r.maxDelay
	}
	return backoff
}
