package traffic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultReconnectDelay 流中断后的重连等待
const DefaultReconnectDelay = 5 * time.Second

// Source 提供实时流量流（每行一个 {"up":N,"down":N}）
type Source interface {
	OpenTraffic(ctx context.Context) (io.ReadCloser, error)
}

type sample struct {
	Up   uint64 `json:"up"`
	Down uint64 `json:"down"`
}

// Monitor 订阅实时流量流并更新 Rate
type Monitor struct {
	source         Source
	rate           *Rate
	reconnectDelay time.Duration
	logger         *logrus.Logger
}

// NewMonitor 创建流量订阅器
func NewMonitor(source Source, rate *Rate, logger *logrus.Logger) *Monitor {
	return &Monitor{
		source:         source,
		rate:           rate,
		reconnectDelay: DefaultReconnectDelay,
		logger:         logger,
	}
}

// SetReconnectDelay 修改重连等待时间
func (m *Monitor) SetReconnectDelay(d time.Duration) {
	m.reconnectDelay = d
}

// Run 持续订阅直到 ctx 取消
func (m *Monitor) Run(ctx context.Context) {
	for {
		body, err := m.source.OpenTraffic(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.WithError(err).Debug("订阅流量流失败")
		} else {
			m.consume(ctx, body)
			body.Close()
		}

		// 连接失败或流结束：速率未知
		m.rate.Reset()

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.reconnectDelay):
		}
	}
}

func (m *Monitor) consume(ctx context.Context, body io.Reader) {
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var s sample
		if err := json.Unmarshal(line, &s); err != nil {
			m.logger.WithError(err).Debug("跳过无法解析的流量数据")
			continue
		}
		m.rate.Store(s.Up, s.Down)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		m.logger.WithError(err).Debug("流量流读取中断")
	}
}
