package presence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Handle 持有当前 Actor 的槽位，由应用上下文持有
type Handle struct {
	factory Factory
	logger  *logrus.Logger

	mu    sync.Mutex
	actor *Actor
}

// NewHandle 创建空槽位
func NewHandle(factory Factory, logger *logrus.Logger) *Handle {
	return &Handle{factory: factory, logger: logger}
}

// Init 启动 Actor；已有存活的 Actor 时直接复用
func (h *Handle) Init(opts Options) *Actor {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.actor != nil {
		select {
		case <-h.actor.Done():
		default:
			return h.actor
		}
	}
	h.actor = NewActor(opts, h.factory, h.logger)
	return h.actor
}

// Send 投递指令；未初始化时丢弃
func (h *Handle) Send(cmd Command) {
	if a := h.current(); a != nil {
		a.Send(cmd)
	}
}

// Connected 当前 Actor 是否已连接
func (h *Handle) Connected() bool {
	if a := h.current(); a != nil {
		return a.Connected()
	}
	return false
}

// Active 是否存在未终止的 Actor
func (h *Handle) Active() bool {
	a := h.current()
	if a == nil {
		return false
	}
	select {
	case <-a.Done():
		return false
	default:
		return true
	}
}

// Shutdown 关闭并清空槽位，timeout 内等待 Actor 退出
func (h *Handle) Shutdown(timeout time.Duration) {
	h.mu.Lock()
	a := h.actor
	h.actor = nil
	h.mu.Unlock()

	if a == nil {
		return
	}

	// 投递和等待退出共用同一个超时，Actor 卡在阻塞调用中也能返回
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.SendContext(ctx, Shutdown{}); err != nil && !errors.Is(err, ErrStopped) {
		h.logger.WithError(err).Warn("投递关闭指令失败，放弃等待 presence Actor")
		return
	}
	select {
	case <-a.Done():
	case <-ctx.Done():
		h.logger.Warn("等待 presence Actor 退出超时")
	}
}

func (h *Handle) current() *Actor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.actor
}
