package presence

import (
	"context"
	"errors"
	"sync"
	"time"

	"vergepresence/internal/discord"
	"vergepresence/internal/metrics"

	"github.com/sirupsen/logrus"
)

// queueSize 指令队列容量
const queueSize = 64

// ErrStopped Actor 已终止
var ErrStopped = errors.New("presence actor stopped")

// Client 外部 presence 服务客户端，只由 Actor 的工作 goroutine 调用
type Client interface {
	Connect() error
	SetActivity(activity *discord.Activity) error
	ClearActivity() error
	Close() error
}

// Factory 根据应用 ID 构造客户端
type Factory func(appID string) (Client, error)

// DiscordFactory 使用本地 Discord IPC
func DiscordFactory(appID string) (Client, error) {
	c, err := discord.New(appID)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Options Actor 参数
type Options struct {
	AppID      string
	LargeImage string
	LargeText  string
}

// Actor 独占 presence 连接的工作者
type Actor struct {
	opts     Options
	client   Client
	logger   *logrus.Logger
	commands chan Command
	done     chan struct{}

	// 仅工作 goroutine 访问
	hasHandle bool

	mu        sync.RWMutex
	connected bool
	startTime time.Time
}

// NewActor 创建并启动 Actor
// 客户端构造失败时只记录日志，Actor 照常运行并保持未连接
func NewActor(opts Options, factory Factory, logger *logrus.Logger) *Actor {
	a := &Actor{
		opts:     opts,
		logger:   logger,
		commands: make(chan Command, queueSize),
		done:     make(chan struct{}),
	}

	client, err := factory(opts.AppID)
	if err != nil {
		logger.WithError(err).Error("创建 presence 客户端失败")
	} else {
		a.client = client
	}

	go a.run()
	return a
}

// Send 投递指令，从不阻塞调用方；队列已满或 Actor 已终止时丢弃
func (a *Actor) Send(cmd Command) bool {
	select {
	case <-a.done:
		a.logger.WithField("command", commandName(cmd)).Debug("Actor 已终止，丢弃指令")
		return false
	default:
	}

	select {
	case a.commands <- cmd:
		return true
	default:
		metrics.CommandsDropped.WithLabelValues(commandName(cmd)).Inc()
		a.logger.WithField("command", commandName(cmd)).Warn("指令队列已满，丢弃指令")
		return false
	}
}

// SendContext 投递指令，队列已满时等待直到 ctx 结束
func (a *Actor) SendContext(ctx context.Context, cmd Command) error {
	select {
	case a.commands <- cmd:
		return nil
	case <-a.done:
		return ErrStopped
	case <-ctx.Done():
		metrics.CommandsDropped.WithLabelValues(commandName(cmd)).Inc()
		return ctx.Err()
	}
}

// Connected 当前是否已连接
func (a *Actor) Connected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.connected
}

// StartTime 本次连接的起始时间
func (a *Actor) StartTime() (time.Time, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.startTime, !a.startTime.IsZero()
}

// Done 在 Actor 终止后关闭
func (a *Actor) Done() <-chan struct{} {
	return a.done
}

func (a *Actor) run() {
	defer close(a.done)
	for cmd := range a.commands {
		if !a.handle(cmd) {
			return
		}
	}
}

// handle 执行一条指令，返回 false 表示终止
func (a *Actor) handle(cmd Command) bool {
	switch c := cmd.(type) {
	case Connect:
		a.connect()
	case Disconnect:
		a.disconnect()
	case UpdateActivity:
		a.updateActivity(c)
	case ClearActivity:
		a.clearActivity()
	case Shutdown:
		if a.Connected() {
			if err := a.client.ClearActivity(); err != nil {
				a.logger.WithError(err).Debug("退出前清除活动失败")
			}
		}
		a.disconnect()
		a.logger.Info("presence Actor 已停止")
		return false
	default:
		a.logger.WithField("command", commandName(cmd)).Warn("未知指令")
	}
	return true
}

func (a *Actor) connect() {
	if a.Connected() {
		return
	}
	if a.client == nil {
		a.logger.Debug("presence 客户端不可用，跳过连接")
		return
	}
	// 上次设置失败后句柄仍在，先关闭再重连
	if a.hasHandle {
		if err := a.client.Close(); err != nil {
			a.logger.WithError(err).Debug("关闭失效连接失败")
		}
		a.hasHandle = false
	}

	if err := a.client.Connect(); err != nil {
		metrics.ConnectAttempts.WithLabelValues("error").Inc()
		a.logger.WithError(err).Warn("连接 presence 服务失败")
		return
	}
	a.hasHandle = true
	metrics.ConnectAttempts.WithLabelValues("ok").Inc()
	metrics.Connected.Set(1)

	a.mu.Lock()
	a.connected = true
	a.startTime = time.Now()
	a.mu.Unlock()
	a.logger.Info("已连接 presence 服务")
}

func (a *Actor) disconnect() {
	if a.hasHandle {
		if err := a.client.Close(); err != nil {
			a.logger.WithError(err).Debug("关闭 presence 连接失败")
		}
		a.hasHandle = false
	}
	a.markDisconnected()
	a.mu.Lock()
	a.startTime = time.Time{}
	a.mu.Unlock()
}

func (a *Actor) markDisconnected() {
	metrics.Connected.Set(0)
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()
}

func (a *Actor) updateActivity(c UpdateActivity) {
	if !a.Connected() {
		metrics.ActivityUpdates.WithLabelValues("skipped").Inc()
		return
	}

	activity := &discord.Activity{
		Details: c.Details,
		State:   c.State,
		Assets: &discord.Assets{
			LargeImage: a.opts.LargeImage,
			LargeText:  a.opts.LargeText,
		},
	}
	if start, ok := a.StartTime(); ok {
		activity.Timestamps = &discord.Timestamps{Start: start.Unix()}
	}
	if c.PartySize != nil && c.PartyMax != nil {
		activity.Party = &discord.Party{Size: [2]int{*c.PartySize, *c.PartyMax}}
	}

	if err := a.client.SetActivity(activity); err != nil {
		metrics.ActivityUpdates.WithLabelValues("error").Inc()
		a.logger.WithError(err).Warn("更新活动失败，等待重连")
		a.markDisconnected()
		return
	}
	metrics.ActivityUpdates.WithLabelValues("ok").Inc()
}

func (a *Actor) clearActivity() {
	if !a.Connected() {
		return
	}
	if err := a.client.ClearActivity(); err != nil {
		a.logger.WithError(err).Warn("清除活动失败")
	}
}

func commandName(cmd Command) string {
	switch cmd.(type) {
	case Connect:
		return "connect"
	case Disconnect:
		return "disconnect"
	case UpdateActivity:
		return "update_activity"
	case ClearActivity:
		return "clear_activity"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}
