package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultInterval = 5 * time.Second  // 两次重连尝试的最小间隔
	maxFailures     = 10               // 窗口内最大连续失败次数
	failWindow      = 60 * time.Second // 失败计数窗口
	cooldown        = time.Minute      // 超过失败上限后的冷却时长
)

// ReconnectGate 限制重连 presence 服务的频率
// 令牌桶控制基础频率；窗口内连续失败过多时进入冷却，期间拒绝所有尝试
type ReconnectGate struct {
	limiter  *rate.Limiter
	interval time.Duration
	now      func() time.Time

	mu           sync.Mutex
	failures     int
	firstFail    time.Time
	cooldownFrom time.Time
}

// NewReconnectGate 创建重连闸门，interval <= 0 时使用默认间隔
func NewReconnectGate(interval time.Duration) *ReconnectGate {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &ReconnectGate{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
		now:      time.Now,
	}
}

// Interval 两次重连尝试的最小间隔
func (g *ReconnectGate) Interval() time.Duration {
	return g.interval
}

// Allow 是否允许现在发起一次重连
func (g *ReconnectGate) Allow() bool {
	now := g.now()

	g.mu.Lock()
	if !g.cooldownFrom.IsZero() {
		if now.Sub(g.cooldownFrom) < cooldown {
			g.mu.Unlock()
			return false
		}
		g.cooldownFrom = time.Time{}
		g.failures = 0
	}
	g.mu.Unlock()

	return g.limiter.AllowN(now, 1)
}

// RecordFailure 记录一次重连失败
func (g *ReconnectGate) RecordFailure() {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	// 冷却中不再计数
	if !g.cooldownFrom.IsZero() {
		return
	}

	// 窗口过期，重置
	if g.failures == 0 || now.Sub(g.firstFail) > failWindow {
		g.failures = 1
		g.firstFail = now
		return
	}

	g.failures++
	if g.failures > maxFailures {
		g.cooldownFrom = now
	}
}

// RecordSuccess 连接成功后清空失败记录
func (g *ReconnectGate) RecordSuccess() {
	g.mu.Lock()
	g.failures = 0
	g.firstFail = time.Time{}
	g.cooldownFrom = time.Time{}
	g.mu.Unlock()
}

// Failures 当前窗口内记录的失败次数
func (g *ReconnectGate) Failures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures
}

// CoolingDown 是否处于冷却期
func (g *ReconnectGate) CoolingDown() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.cooldownFrom.IsZero() && g.now().Sub(g.cooldownFrom) < cooldown
}
