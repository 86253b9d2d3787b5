// Package status 汇总流量、模式和节点信息，生成展示文本并提交给 presence Actor。
package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vergepresence/internal/api"
	"vergepresence/internal/config"
	"vergepresence/internal/metrics"
	"vergepresence/internal/node"
	"vergepresence/internal/presence"
	"vergepresence/internal/ratelimit"
	"vergepresence/internal/traffic"

	"github.com/sirupsen/logrus"
)

// Engine 代理内核控制器
type Engine interface {
	GetConnections(ctx context.Context) (*api.Connections, error)
	GetProxies(ctx context.Context) (map[string]api.Proxy, error)
	GetConfigs(ctx context.Context) (*api.ClashConfig, error)
}

// Sender presence 指令出口
type Sender interface {
	Send(cmd presence.Command)
	Connected() bool
}

// ProcessCheck 检测 presence 客户端进程是否在运行
type ProcessCheck func(ctx context.Context) (bool, error)

// Refresher 执行一次状态刷新
type Refresher struct {
	provider     config.Provider
	engine       Engine
	accumulator  *traffic.Accumulator
	rate         *traffic.Rate
	sender       Sender
	gate         *ratelimit.ReconnectGate
	processCheck ProcessCheck
	logger       *logrus.Logger
	now          func() time.Time

	mu             sync.Mutex
	connectPending bool
	connectSentAt  time.Time
}

// NewRefresher 创建刷新器，processCheck 为 nil 时视为客户端始终在运行
func NewRefresher(
	provider config.Provider,
	engine Engine,
	accumulator *traffic.Accumulator,
	rate *traffic.Rate,
	sender Sender,
	gate *ratelimit.ReconnectGate,
	processCheck ProcessCheck,
	logger *logrus.Logger,
) *Refresher {
	return &Refresher{
		provider:     provider,
		engine:       engine,
		accumulator:  accumulator,
		rate:         rate,
		sender:       sender,
		gate:         gate,
		processCheck: processCheck,
		logger:       logger,
		now:          time.Now,
	}
}

// Refresh 采集当前状态并提交 UpdateActivity
// 只有读取配置失败会返回错误，其余失败记录日志后降级处理
func (r *Refresher) Refresh(ctx context.Context) error {
	cfg, err := r.provider.Load(ctx)
	if err != nil {
		return fmt.Errorf("读取配置失败: %w", err)
	}
	if !cfg.Presence.Enabled {
		return nil
	}

	r.ensureConnected(ctx)

	up, down := r.rate.Load()
	metrics.TrafficRateBytes.WithLabelValues("up").Set(float64(up))
	metrics.TrafficRateBytes.WithLabelValues("down").Set(float64(down))

	totals := r.accumulator.Totals()
	if conns, err := r.engine.GetConnections(ctx); err != nil {
		r.logger.WithError(err).Debug("获取连接统计失败")
	} else {
		totals = r.accumulator.Update(conns.UploadTotal, conns.DownloadTotal)
	}
	metrics.TrafficTotalBytes.WithLabelValues("up").Set(float64(totals.Up))
	metrics.TrafficTotalBytes.WithLabelValues("down").Set(float64(totals.Down))

	mode := ""
	if clash, err := r.engine.GetConfigs(ctx); err != nil {
		r.logger.WithError(err).Debug("获取内核模式失败")
	} else {
		mode = clash.Mode
	}

	var (
		selected     string
		totalProxies int
	)
	if proxies, err := r.engine.GetProxies(ctx); err != nil {
		r.logger.WithError(err).Debug("获取代理列表失败")
	} else {
		selected = node.Resolve(node.SnapshotFromProxies(proxies), cfg.Profile.Name)
		totalProxies = len(proxies)
	}

	cmd := presence.UpdateActivity{
		Details: Details(up, down, totals, cfg.Profile.Name),
		State:   StateLine(ConnMode(cfg.Proxy), ModeLabel(mode), selected),
	}
	if totalProxies > 0 {
		cmd.PartySize, cmd.PartyMax = presence.Party(1, totalProxies)
	}
	r.sender.Send(cmd)

	r.logger.WithFields(logrus.Fields{
		"details": cmd.Details,
		"state":   cmd.State,
	}).Debug("已提交活动更新")
	return nil
}

// ensureConnected 未连接时按闸门节奏投递 Connect
// 投递后超过闸门间隔仍未连上才记为一次失败，Connect 本身可能耗时数秒
func (r *Refresher) ensureConnected(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sender.Connected() {
		if r.connectPending {
			r.gate.RecordSuccess()
			r.connectPending = false
		}
		return
	}

	if r.connectPending {
		if r.now().Sub(r.connectSentAt) < r.gate.Interval() {
			return
		}
		r.gate.RecordFailure()
		r.connectPending = false
	}
	if !r.gate.Allow() {
		return
	}
	if r.processCheck != nil {
		running, err := r.processCheck(ctx)
		if err != nil {
			r.logger.WithError(err).Debug("检测 presence 客户端进程失败")
		} else if !running {
			return
		}
	}

	r.sender.Send(presence.Connect{})
	r.connectPending = true
	r.connectSentAt = r.now()
	r.logger.Debug("presence 未连接，已请求重连")
}
