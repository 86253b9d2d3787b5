// Package supervisor 管理周期刷新循环与流量订阅的生命周期。
//
// 任一时刻至多存在一代循环：Start 在持锁状态下取消并等待上一代退出后才启动新一代。
package supervisor

import (
	"context"
	"sync"
	"time"

	"vergepresence/internal/metrics"
	"vergepresence/internal/traffic"

	"github.com/sirupsen/logrus"
)

// DefaultInterval 周期刷新间隔
const DefaultInterval = time.Second

// Runner 嵌套的流量订阅任务，运行到 ctx 取消为止
type Runner interface {
	Run(ctx context.Context)
}

// Refresher 单次状态刷新
type Refresher interface {
	Refresh(ctx context.Context) error
}

// EnabledFunc 每个周期重新读取的启用开关
type EnabledFunc func(ctx context.Context) bool

// Supervisor 更新循环的唯一持有者
type Supervisor struct {
	monitor   Runner
	refresher Refresher
	enabled   EnabledFunc
	rate      *traffic.Rate
	interval  time.Duration
	logger    *logrus.Logger

	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	generation uint64
}

// New 创建 Supervisor，rate 为 Stop 时需要清零的实时速率
func New(monitor Runner, refresher Refresher, enabled EnabledFunc, rate *traffic.Rate, logger *logrus.Logger) *Supervisor {
	return &Supervisor{
		monitor:   monitor,
		refresher: refresher,
		enabled:   enabled,
		rate:      rate,
		interval:  DefaultInterval,
		logger:    logger,
	}
}

// SetInterval 修改刷新间隔，仅对之后启动的循环生效
func (s *Supervisor) SetInterval(d time.Duration) {
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
}

// Start 停止旧循环（如有）并启动新一代
func (s *Supervisor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.generation++
	s.cancel = cancel
	s.done = done
	metrics.LoopGenerations.Inc()

	s.logger.WithField("generation", s.generation).Info("更新循环已启动")
	go s.run(ctx, s.generation, s.interval, done)
}

// Stop 停止当前循环并清零实时速率，累计流量不受影响
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopLocked() {
		s.logger.WithField("generation", s.generation).Info("更新循环已停止")
	}
	s.rate.Reset()
}

// Running 当前是否有循环在运行
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Generation 已启动的循环代数
func (s *Supervisor) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// stopLocked 取消并等待当前一代退出，调用方需持有 mu
func (s *Supervisor) stopLocked() bool {
	if s.cancel == nil {
		return false
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	return true
}

func (s *Supervisor) run(ctx context.Context, generation uint64, interval time.Duration, done chan struct{}) {
	defer close(done)
	log := s.logger.WithField("generation", generation)

	monitorCtx, monitorCancel := context.WithCancel(ctx)
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		s.monitor.Run(monitorCtx)
	}()
	defer func() {
		monitorCancel()
		<-monitorDone
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !s.enabled(ctx) {
			log.Info("presence 已关闭，更新循环退出")
			return
		}
		if err := s.refresher.Refresh(ctx); err != nil {
			log.WithError(err).Warn("刷新状态失败")
		}
	}
}
