package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vergepresence/internal/api"
	"vergepresence/internal/config"
	"vergepresence/internal/presence"
	"vergepresence/internal/ratelimit"
	"vergepresence/internal/status"
	"vergepresence/internal/supervisor"
	"vergepresence/internal/traffic"

	"github.com/sirupsen/logrus"
)

const (
	defaultConnectDelay    = 500 * time.Millisecond // 连接后等待片刻再推送首次更新
	defaultReloadDelay     = 1500 * time.Millisecond
	defaultShutdownTimeout = 3 * time.Second
)

// Controller 代理内核控制器：查询接口加实时流量流
type Controller interface {
	status.Engine
	traffic.Source
}

// Server 应用上下文，持有 presence 相关的全部组件
// 入口方法之间互斥执行
type Server struct {
	provider    config.Provider
	accumulator *traffic.Accumulator
	rate        *traffic.Rate
	presence    *presence.Handle
	refresher   *status.Refresher
	supervisor  *supervisor.Supervisor
	logger      *logrus.Logger

	connectDelay    time.Duration
	reloadDelay     time.Duration
	shutdownTimeout time.Duration

	mu sync.Mutex
}

// NewServer 根据配置组装服务
func NewServer(cfg *config.Config, provider config.Provider, logger *logrus.Logger) *Server {
	controller := api.NewClient(cfg.Controller.Server, cfg.Controller.Secret, logger)
	store := traffic.NewStore(cfg.TrafficFile)
	return newServer(provider, controller, store, presence.DiscordFactory, discordRunning, logger)
}

func newServer(
	provider config.Provider,
	controller Controller,
	store traffic.Persister,
	factory presence.Factory,
	processCheck status.ProcessCheck,
	logger *logrus.Logger,
) *Server {
	rate := &traffic.Rate{}
	accumulator := traffic.NewAccumulator(store, logger)
	handle := presence.NewHandle(factory, logger)
	gate := ratelimit.NewReconnectGate(ratelimit.DefaultInterval)
	refresher := status.NewRefresher(provider, controller, accumulator, rate, handle, gate, processCheck, logger)
	monitor := traffic.NewMonitor(controller, rate, logger)

	s := &Server{
		provider:        provider,
		accumulator:     accumulator,
		rate:            rate,
		presence:        handle,
		refresher:       refresher,
		logger:          logger,
		connectDelay:    defaultConnectDelay,
		reloadDelay:     defaultReloadDelay,
		shutdownTimeout: defaultShutdownTimeout,
	}
	s.supervisor = supervisor.New(monitor, refresher, s.enabled, rate, logger)
	return s
}

// Toggle 开启或关闭 presence
// 开启：启动 Actor 并连接，等待片刻后启动循环并推送一次更新；关闭：停止循环并关闭 Actor
func (s *Server) Toggle(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toggleLocked(ctx, enabled)
}

// Refresh 立即推送一次更新
func (s *Server) Refresh(ctx context.Context) error {
	return s.refresher.Refresh(ctx)
}

// Reload 关闭、等待、再开启
func (s *Server) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("重新加载 presence")
	if err := s.toggleLocked(ctx, false); err != nil {
		return err
	}
	if err := sleepContext(ctx, s.reloadDelay); err != nil {
		return err
	}
	return s.toggleLocked(ctx, true)
}

// InitializeOnStartup 启动时按配置决定是否开启
func (s *Server) InitializeOnStartup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.provider.Load(ctx)
	if err != nil {
		return fmt.Errorf("读取配置失败: %w", err)
	}
	if !cfg.Presence.Enabled {
		s.logger.Info("presence 未启用")
		return nil
	}

	s.presence.Init(actorOptions(cfg))
	s.presence.Send(presence.Connect{})
	s.supervisor.Start()

	if err := sleepContext(ctx, s.connectDelay); err != nil {
		return err
	}
	if err := s.refresher.Refresh(ctx); err != nil {
		s.logger.WithError(err).Warn("首次刷新失败")
	}
	s.logger.Info("presence 已启动")
	return nil
}

// ShutdownOnExit 退出前停止循环、关闭 Actor 并保存累计流量
func (s *Server) ShutdownOnExit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("正在关闭 presence...")
	s.supervisor.Stop()
	s.presence.Shutdown(s.shutdownTimeout)

	if err := s.accumulator.Flush(); err != nil {
		s.logger.WithError(err).Error("保存累计流量失败")
	}
	s.logger.Info("presence 已关闭")
}

// Totals 当前累计流量
func (s *Server) Totals() traffic.Totals {
	return s.accumulator.Totals()
}

func (s *Server) toggleLocked(ctx context.Context, enabled bool) error {
	s.provider.SetEnabled(enabled)

	if !enabled {
		s.supervisor.Stop()
		s.presence.Shutdown(s.shutdownTimeout)
		s.logger.Info("presence 已关闭")
		return nil
	}

	cfg, err := s.provider.Load(ctx)
	if err != nil {
		return fmt.Errorf("读取配置失败: %w", err)
	}

	s.presence.Init(actorOptions(cfg))
	s.presence.Send(presence.Connect{})
	if err := sleepContext(ctx, s.connectDelay); err != nil {
		return err
	}

	s.supervisor.Start()
	if err := s.refresher.Refresh(ctx); err != nil {
		s.logger.WithError(err).Warn("刷新状态失败")
	}
	s.logger.Info("presence 已开启")
	return nil
}

// enabled 供循环每个周期读取；读取失败时保持运行
func (s *Server) enabled(ctx context.Context) bool {
	cfg, err := s.provider.Load(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.WithError(err).Debug("读取启用开关失败，保持运行")
		}
		return true
	}
	return cfg.Presence.Enabled
}

func actorOptions(cfg *config.Config) presence.Options {
	return presence.Options{
		AppID:      cfg.AppID(),
		LargeImage: cfg.Presence.LargeImage,
		LargeText:  cfg.Presence.LargeText,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
