package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// Provider 为 presence 组件提供配置读取
type Provider interface {
	Load(ctx context.Context) (*Config, error)
	SetEnabled(enabled bool)
}

// FileProvider 基于 YAML 文件的配置提供者
// 文件修改时间变化时重新加载；SetEnabled 写入的开关覆盖文件中的值，直到文件再次变化
type FileProvider struct {
	path string

	mu       sync.Mutex
	cached   *Config
	modTime  time.Time
	override *bool
}

// NewFileProvider 创建文件配置提供者，initial 为已加载的配置
func NewFileProvider(path string, initial *Config) *FileProvider {
	p := &FileProvider{path: path, cached: initial}
	if info, err := os.Stat(path); err == nil {
		p.modTime = info.ModTime()
	}
	return p
}

// Load 返回当前配置的副本
func (p *FileProvider) Load(ctx context.Context) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	info, err := os.Stat(p.path)
	switch {
	case err != nil && p.cached == nil:
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	case err == nil && (p.cached == nil || !info.ModTime().Equal(p.modTime)):
		cfg, err := LoadConfig(p.path)
		if err != nil {
			if p.cached == nil {
				return nil, err
			}
			// 保留上一次成功加载的配置
			break
		}
		p.cached = cfg
		p.modTime = info.ModTime()
		p.override = nil
	}

	cfg := *p.cached
	if p.override != nil {
		cfg.Presence.Enabled = *p.override
	}
	return &cfg, nil
}

// SetEnabled 设置运行期开关
func (p *FileProvider) SetEnabled(enabled bool) {
	p.mu.Lock()
	p.override = &enabled
	p.mu.Unlock()
}

// StaticProvider 固定配置，用于测试和嵌入场景
type StaticProvider struct {
	mu  sync.Mutex
	cfg Config
	err error
}

// NewStaticProvider 创建固定配置提供者
func NewStaticProvider(cfg *Config) *StaticProvider {
	return &StaticProvider{cfg: *cfg}
}

// Load 返回配置副本
func (p *StaticProvider) Load(ctx context.Context) (*Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	cfg := p.cfg
	return &cfg, nil
}

// SetEnabled 修改开关
func (p *StaticProvider) SetEnabled(enabled bool) {
	p.mu.Lock()
	p.cfg.Presence.Enabled = enabled
	p.mu.Unlock()
}

// Update 以函数方式修改配置
func (p *StaticProvider) Update(fn func(*Config)) {
	p.mu.Lock()
	fn(&p.cfg)
	p.mu.Unlock()
}

// SetError 让后续 Load 返回 err，传 nil 恢复
func (p *StaticProvider) SetError(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}
