package worker

import (
	"time"

	"mindcare_billing/pkg/logger"

	"go.uber.org/zap"
)

// RedemptionTask is one promo redemption to persist after the fast
// redis pre-check admitted it.
type RedemptionTask struct {
	UserID    string
	CodeID    string
	Code      string
	GrantDays int
	Retry     int
}

// Handler persists one task. Returning an error schedules a retry.
type Handler func(task RedemptionTask) error

// Pool decouples the redemption endpoint from database writes. Tasks
// that keep failing are logged as dead letters for manual replay.
type Pool struct {
	TaskQueue  chan RedemptionTask
	RetryQueue chan RedemptionTask
	handler    Handler
	WorkerNum  int
	MaxRetry   int
}

// NewPool creates a pool with the given worker count and queue size.
func NewPool(handler Handler, workerNum, bufferSize int) *Pool {
	return &Pool{
		TaskQueue:  make(chan RedemptionTask, bufferSize),
		RetryQueue: make(chan RedemptionTask, bufferSize/2),
		handler:    handler,
		WorkerNum:  workerNum,
		MaxRetry:   3,
	}
}

// Start launches the workers and the retry loop.
func (p *Pool) Start() {
	for i := 0; i < p.WorkerNum; i++ {
		go p.worker(i)
	}
	go p.retryWorker()
	logger.Log.Info("redemption worker pool started", zap.Int("workers", p.WorkerNum))
}

func (p *Pool) worker(id int) {
	for task := range p.TaskQueue {
		if err := p.handler(task); err != nil {
			logger.Log.Warn("redemption task failed",
				zap.Int("worker", id),
				zap.String("user_id", task.UserID),
				zap.String("code", task.Code),
				zap.Int("attempt", task.Retry),
				zap.Error(err))

			if task.Retry < p.MaxRetry {
				task.Retry++
				select {
				case p.RetryQueue <- task:
				default:
					p.logFailedTask(task, err)
				}
			} else {
				p.logFailedTask(task, err)
			}
		}
	}
}

func (p *Pool) retryWorker() {
	for task := range p.RetryQueue {
		// Linear backoff before re-queueing.
		time.Sleep(time.Duration(task.Retry) * time.Second)

		select {
		case p.TaskQueue <- task:
		default:
			p.logFailedTask(task, nil)
		}
	}
}

func (p *Pool) logFailedTask(task RedemptionTask, err error) {
	logger.Log.Error("redemption task dropped",
		zap.String("user_id", task.UserID),
		zap.String("code", task.Code),
		zap.Error(err))
}

// AddTask enqueues a task, dropping to the dead-letter log when the
// queue is full rather than blocking the request path.
func (p *Pool) AddTask(task RedemptionTask) {
	select {
	case p.TaskQueue <- task:
	default:
		logger.Log.Warn("redemption queue full, dropping task",
			zap.String("user_id", task.UserID),
			zap.String("code", task.Code))
		p.logFailedTask(task, nil)
	}
}
