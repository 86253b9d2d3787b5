package traffic

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultSaveInterval 两次自动持久化的最小间隔
const DefaultSaveInterval = 10 * time.Second

// State 累计流量状态
// TotalUp/TotalDown 在进程生命周期内及重启后单调不减
type State struct {
	TotalUp         uint64
	TotalDown       uint64
	LastSessionUp   uint64 // 上一次观察到的内核会话计数
	LastSessionDown uint64
	LastSaveTime    time.Time
}

// Accumulator 将内核可重置的会话计数转换为累计总量
type Accumulator struct {
	store        Persister
	saveInterval time.Duration
	now          func() time.Time
	logger       *logrus.Logger

	loadOnce sync.Once
	mu       sync.Mutex
	state    State
}

// NewAccumulator 创建累加器，首次访问时从 store 加载
func NewAccumulator(store Persister, logger *logrus.Logger) *Accumulator {
	return &Accumulator{
		store:        store,
		saveInterval: DefaultSaveInterval,
		now:          time.Now,
		logger:       logger,
	}
}

func (a *Accumulator) ensureLoaded() {
	a.loadOnce.Do(func() {
		totals, err := a.store.Load()
		if err != nil {
			a.logger.WithError(err).Warn("加载累计流量失败，从零开始")
		}
		a.mu.Lock()
		a.state.TotalUp = totals.Up
		a.state.TotalDown = totals.Down
		a.state.LastSaveTime = a.now()
		a.mu.Unlock()
	})
}

// Update 以当前会话计数推进累计总量
// 计数小于上次观察值时视为内核计数已归零重新累加，当前值即为增量
func (a *Accumulator) Update(currentUp, currentDown uint64) Totals {
	a.ensureLoaded()

	a.mu.Lock()
	s := &a.state
	s.TotalUp += sessionDelta(currentUp, s.LastSessionUp)
	s.TotalDown += sessionDelta(currentDown, s.LastSessionDown)
	s.LastSessionUp = currentUp
	s.LastSessionDown = currentDown

	totals := Totals{Up: s.TotalUp, Down: s.TotalDown}
	now := a.now()
	save := now.Sub(s.LastSaveTime) > a.saveInterval
	if save {
		s.LastSaveTime = now
	}
	a.mu.Unlock()

	if save {
		a.persist(totals)
	}
	return totals
}

// sessionDelta 是已知的近似算法：
// 计数因其他原因变小（如回绕）时会重复计入；
// 守护进程重启而内核未重启时 last 从 0 开始，首次 Update 会把内核当前会话计数整体再计入一次
func sessionDelta(current, last uint64) uint64 {
	if current >= last {
		return current - last
	}
	return current
}

// Totals 返回当前累计总量
func (a *Accumulator) Totals() Totals {
	a.ensureLoaded()

	a.mu.Lock()
	defer a.mu.Unlock()
	return Totals{Up: a.state.TotalUp, Down: a.state.TotalDown}
}

// State 返回状态快照
func (a *Accumulator) State() State {
	a.ensureLoaded()

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Flush 立即持久化当前累计总量
func (a *Accumulator) Flush() error {
	a.ensureLoaded()

	a.mu.Lock()
	totals := Totals{Up: a.state.TotalUp, Down: a.state.TotalDown}
	a.state.LastSaveTime = a.now()
	a.mu.Unlock()

	return a.store.Save(totals)
}

func (a *Accumulator) persist(totals Totals) {
	if err := a.store.Save(totals); err != nil {
		a.logger.WithError(err).Warn("持久化累计流量失败")
		return
	}
	a.logger.WithFields(logrus.Fields{
		"up":   totals.Up,
		"down": totals.Down,
	}).Debug("累计流量已保存")
}
