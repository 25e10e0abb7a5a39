package analytics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"nutripal/internal/core/nutrition"
	"nutripal/internal/core/store"
	"nutripal/internal/pkg/common"
)

var (
	// ErrQueueFull 佇列已滿，紀錄被丟棄
	ErrQueueFull = errors.New("analytics queue is full")
	// ErrClosed 記錄器已關閉
	ErrClosed = errors.New("analytics recorder is closed")
)

// FailureWriter 寫入驗證失敗紀錄
type FailureWriter interface {
	InsertAnalyticsFailure(ctx context.Context, f *store.AnalyticsFailure) error
}

// Config 記錄器設定
type Config struct {
	Workers      int
	QueueSize    int
	WriteTimeout time.Duration
}

// Status 佇列狀態
type Status struct {
	QueueLength  int   `json:"queue_length"`
	MaxQueueSize int   `json:"max_queue_size"`
	Workers      int   `json:"workers"`
	Written      int64 `json:"written"`
	Failed       int64 `json:"failed"`
	Dropped      int64 `json:"dropped"`
}

// Recorder 以有界佇列與固定數量 worker 非同步寫入失敗紀錄
type Recorder struct {
	writer FailureWriter
	cfg    Config
	now    func() time.Time

	queue chan *store.AnalyticsFailure
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	written int64
	failed  int64
	dropped int64
}

// NewRecorder 創建並啟動記錄器
func NewRecorder(writer FailureWriter, cfg Config) *Recorder {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	r := &Recorder{
		writer: writer,
		cfg:    cfg,
		now:    time.Now,
		queue:  make(chan *store.AnalyticsFailure, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	return r
}

// RecordFailure implements nutrition.FailureRecorder. 不阻塞，佇列滿時丟棄
func (r *Recorder) RecordFailure(_ context.Context, report nutrition.FailureReport) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}

	f := &store.AnalyticsFailure{
		UserID:     report.UserID,
		Query:      report.Query,
		Portion:    report.Portion,
		FoodName:   report.FoodName,
		Violations: report.Violations,
		CreatedAt:  r.now(),
	}

	select {
	case r.queue <- f:
		common.LogDebug("分析紀錄已加入佇列",
			zap.Int("queue_length", len(r.queue)),
			zap.Int("max_queue_size", r.cfg.QueueSize),
		)
		return nil
	default:
		atomic.AddInt64(&r.dropped, 1)
		return ErrQueueFull
	}
}

func (r *Recorder) worker(id int) {
	defer r.wg.Done()
	for f := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
		err := r.writer.InsertAnalyticsFailure(ctx, f)
		cancel()

		if err != nil {
			atomic.AddInt64(&r.failed, 1)
			common.LogWarn("分析紀錄寫入失敗",
				zap.Int("worker", id),
				zap.String("user_id", f.UserID),
				zap.String("food", f.FoodName),
				zap.Error(err),
			)
			continue
		}
		atomic.AddInt64(&r.written, 1)
	}
}

// Status 取得佇列狀態
func (r *Recorder) Status() Status {
	return Status{
		QueueLength:  len(r.queue),
		MaxQueueSize: r.cfg.QueueSize,
		Workers:      r.cfg.Workers,
		Written:      atomic.LoadInt64(&r.written),
		Failed:       atomic.LoadInt64(&r.failed),
		Dropped:      atomic.LoadInt64(&r.dropped),
	}
}

// Close 停止接收新紀錄並等待佇列寫完
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
}
