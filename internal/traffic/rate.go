package traffic

import "sync/atomic"

// Rate 实时速率（字节/秒），上下行各自独立原子存储，后写覆盖
type Rate struct {
	up   atomic.Uint64
	down atomic.Uint64
}

// Store 写入最新速率
func (r *Rate) Store(up, down uint64) {
	r.up.Store(up)
	r.down.Store(down)
}

// Load 读取最新速率
func (r *Rate) Load() (up, down uint64) {
	return r.up.Load(), r.down.Load()
}

// Reset 清零，表示速率未知
func (r *Rate) Reset() {
	r.Store(0, 0)
}
