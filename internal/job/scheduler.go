// 文件路径: internal/job/scheduler.go
// 模块说明: 守护模式的后台任务调度。cron 表达式解析、单实例防重入、
// panic 隔离与优雅停机。
package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Runnable 由调度器触发的后台任务。
type Runnable interface {
	Name() string
	Run(ctx context.Context) error
}

// jobTimeout 单次任务上限。证书续期含 ACME 网络往返，给足余量。
const jobTimeout = 10 * time.Minute

// Scheduler cron 调度器。
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	mu      sync.Mutex
	started bool
}

// NewScheduler 构建支持秒字段与 @daily 等描述符的调度器。
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{cron: cron.New(cron.WithParser(parser)), logger: logger}
}

// Register 绑定 cron 表达式与任务。同一任务上次执行未结束时本轮跳过。
func (s *Scheduler) Register(expr string, runnable Runnable) (cron.EntryID, error) {
	if runnable == nil {
		return 0, fmt.Errorf("scheduler: runnable is required / 任务不能为空")
	}
	if expr == "" {
		return 0, fmt.Errorf("scheduler: cron expression is required / cron 表达式不能为空")
	}
	r := &runner{runnable: runnable, logger: s.logger.With("job", runnable.Name())}
	entryID, err := s.cron.AddFunc(expr, r.fire)
	if err != nil {
		return 0, err
	}
	s.logger.Info("job registered", "job", runnable.Name(), "cron", expr)
	return entryID, nil
}

// Start 启动调度器。重复调用无效果。
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron.Start()
	s.started = true
}

// Stop 停止调度器，返回的 context 在执行中任务结束后完成。
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return context.Background()
	}
	s.started = false
	return s.cron.Stop()
}

// runner 给任务套上超时、防重入与 panic 隔离。
type runner struct {
	runnable Runnable
	logger   *slog.Logger
	busy     atomic.Bool
}

func (r *runner) fire() {
	if !r.busy.CompareAndSwap(false, true) {
		r.logger.Warn("previous run still in progress, skipping")
		return
	}
	defer r.busy.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("job panicked", "panic", v, "elapsed", time.Since(start))
		}
	}()
	if err := r.runnable.Run(ctx); err != nil {
		r.logger.Error("job failed", "error", err, "elapsed", time.Since(start))
		return
	}
	r.logger.Debug("job completed", "elapsed", time.Since(start))
}
