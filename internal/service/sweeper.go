package service

import (
	"context"
	"edu_platform_backend/pkg/logger"
	"edu_platform_backend/pkg/monitoring"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SweepStore 清理任务依赖的最小存储面
type SweepStore interface {
	ModuleIDsWithTemporary(ctx context.Context) ([]uint, error)
	DeleteExpiredTemporary(ctx context.Context, moduleID uint, cutoff time.Time) (int64, error)
}

// Sweeper 周期清理过期的临时附件。只删数据库记录：物理文件留给
// 存储侧的生命周期策略处理，避免清理任务和正在写入的上传竞争。
type Sweeper struct {
	Attachments SweepStore
	Interval    time.Duration

	// Now 可注入，测试时固定时钟
	Now func() time.Time

	mu         sync.Mutex
	retention  time.Duration
	maxRetries int

	stop chan struct{}
}

func NewSweeper(attachments SweepStore, interval, retention time.Duration, maxRetries int) *Sweeper {
	return &Sweeper{
		Attachments: attachments,
		Interval:    interval,
		retention:   retention,
		maxRetries:  maxRetries,
		Now:         time.Now,
		stop:        make(chan struct{}),
	}
}

// UpdateSettings 配置热更新时刷新保留窗口和重试上限
func (s *Sweeper) UpdateSettings(retention time.Duration, maxRetries int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retention = retention
	s.maxRetries = maxRetries
}

func (s *Sweeper) settings() (time.Duration, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retention, s.maxRetries
}

// Start 启动后先立即清一轮（兜住进程宕机期间积压的临时文件），再按周期跑
func (s *Sweeper) Start() {
	go func() {
		s.RunOnce()

		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunOnce()
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	close(s.stop)
}

// RunOnce 执行一轮清理。扫描失败按指数退避重试，超过 MaxRetries 放弃
// 本轮；单个模块清理失败记日志后继续处理其余模块。
func (s *Sweeper) RunOnce() {
	monitoring.SweepRuns.Inc()

	retention, maxRetries := s.settings()

	moduleIDs, ok := s.scanWithRetry(maxRetries)
	if !ok {
		monitoring.SweepFailures.Inc()
		logger.Log.Error("temporary attachment sweep abandoned",
			zap.Int("maxRetries", maxRetries))
		return
	}
	if len(moduleIDs) == 0 {
		return
	}

	cutoff := s.Now().Add(-retention)
	var removed int64
	for _, moduleID := range moduleIDs {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := s.Attachments.DeleteExpiredTemporary(ctx, moduleID, cutoff)
		cancel()
		if err != nil {
			logger.Log.Warn("failed to sweep module",
				zap.Uint("moduleId", moduleID), zap.Error(err))
			continue
		}
		removed += n
	}

	if removed > 0 {
		monitoring.SweepRemoved.Add(float64(removed))
		logger.Log.Info("swept expired temporary attachments",
			zap.Int64("removed", removed),
			zap.Int("modules", len(moduleIDs)))
	}
}

func (s *Sweeper) scanWithRetry(maxRetries int) ([]uint, bool) {
	backoff := time.Second
	for attempt := 0; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		ids, err := s.Attachments.ModuleIDsWithTemporary(ctx)
		cancel()
		if err == nil {
			return ids, true
		}
		if attempt >= maxRetries {
			return nil, false
		}
		logger.Log.Warn("sweep scan failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		select {
		case <-time.After(backoff):
		case <-s.stop:
			return nil, false
		}
		backoff *= 2
	}
}
