package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultAppID 默认的 Discord 应用 ID，可通过 presence.app_id 覆盖
const DefaultAppID = "1057691699440259096"

// Config 守护进程配置结构
type Config struct {
	Presence      PresenceConfig   `yaml:"presence"`
	Profile       ProfileConfig    `yaml:"profile"`
	Proxy         ProxyConfig      `yaml:"proxy"`
	Controller    ControllerConfig `yaml:"controller"`
	TrafficFile   string           `yaml:"traffic_file"`   // 累计流量持久化文件
	MetricsListen string           `yaml:"metrics_listen"` // prometheus 监听地址，空表示不启用
	Log           LogConfig        `yaml:"log"`
}

// PresenceConfig Rich Presence 配置
type PresenceConfig struct {
	Enabled    bool   `yaml:"enabled"`
	AppID      string `yaml:"app_id"`      // 自定义应用 ID，空则使用 DefaultAppID
	LargeImage string `yaml:"large_image"` // 大图资源 key
	LargeText  string `yaml:"large_text"`  // 大图悬停文字
}

// ProfileConfig 当前订阅信息
type ProfileConfig struct {
	Name string `yaml:"name"` // 当前订阅显示名称
}

// ProxyConfig 代理接管方式
type ProxyConfig struct {
	TunMode     bool `yaml:"tun_mode"`
	SystemProxy bool `yaml:"system_proxy"`
}

// ControllerConfig 内核 external-controller 配置
type ControllerConfig struct {
	Server string `yaml:"server"` // 如 "127.0.0.1:9097"
	Secret string `yaml:"secret"` // Bearer 密钥，可为空
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `yaml:"level"`     // 日志级别: debug, info, warn, error
	Format   string `yaml:"format"`    // json 或 text，默认 json
	FilePath string `yaml:"file_path"` // 日志文件路径
}

// AppID 返回生效的应用 ID
func (c *Config) AppID() string {
	if c.Presence.AppID != "" {
		return c.Presence.AppID
	}
	return DefaultAppID
}

// Default 返回带默认值的配置
func Default() *Config {
	return &Config{
		Presence: PresenceConfig{
			LargeImage: "clash_verge",
			LargeText:  "Clash Verge Rev",
		},
		Controller: ControllerConfig{
			Server: "127.0.0.1:9097",
		},
		TrafficFile: "traffic_stats.json",
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig 从 YAML 文件加载配置
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 验证配置完整性并补齐默认值
func (c *Config) Validate() error {
	if c.Controller.Server == "" {
		return fmt.Errorf("配置错误: controller.server 不能为空")
	}
	if c.TrafficFile == "" {
		c.TrafficFile = "traffic_stats.json"
	}
	if c.Presence.LargeImage == "" {
		c.Presence.LargeImage = "clash_verge"
	}
	if c.Presence.LargeText == "" {
		c.Presence.LargeText = "Clash Verge Rev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	return nil
}
