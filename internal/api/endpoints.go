package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"vergepresence/internal/metrics"
)

// Connections /connections 中的会话累计流量
// 内核重启或连接追踪重置时会归零
type Connections struct {
	UploadTotal   uint64 `json:"uploadTotal"`
	DownloadTotal uint64 `json:"downloadTotal"`
}

// Proxy /proxies 中的代理或代理组
// 代理组的 Now 为当前选中成员，普通节点为空
type Proxy struct {
	Name string   `json:"name"`
	Type string   `json:"type"`
	Now  string   `json:"now"`
	All  []string `json:"all"`
}

// ClashConfig /configs 中需要的字段
type ClashConfig struct {
	Mode string `json:"mode"`
}

// GetConnections 获取会话累计流量
func (c *Client) GetConnections(ctx context.Context) (*Connections, error) {
	var conns Connections
	if err := c.getJSON(ctx, "/connections", &conns); err != nil {
		return nil, fmt.Errorf("获取连接统计失败: %w", err)
	}
	return &conns, nil
}

// GetProxies 获取全部代理及代理组
func (c *Client) GetProxies(ctx context.Context) (map[string]Proxy, error) {
	var result struct {
		Proxies map[string]Proxy `json:"proxies"`
	}
	if err := c.getJSON(ctx, "/proxies", &result); err != nil {
		return nil, fmt.Errorf("获取代理列表失败: %w", err)
	}
	if result.Proxies == nil {
		result.Proxies = make(map[string]Proxy)
	}
	return result.Proxies, nil
}

// GetConfigs 获取内核运行配置
func (c *Client) GetConfigs(ctx context.Context) (*ClashConfig, error) {
	var cfg ClashConfig
	if err := c.getJSON(ctx, "/configs", &cfg); err != nil {
		return nil, fmt.Errorf("获取内核配置失败: %w", err)
	}
	return &cfg, nil
}

// OpenTraffic 打开 /traffic 实时流量流，调用方负责关闭
func (c *Client) OpenTraffic(ctx context.Context) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/traffic")
	if err != nil {
		return nil, err
	}
	resp, err := c.streamClient.Do(req)
	if err != nil {
		metrics.ControllerErrors.WithLabelValues("traffic").Inc()
		return nil, fmt.Errorf("订阅流量失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		metrics.ControllerErrors.WithLabelValues("traffic").Inc()
		return nil, fmt.Errorf("订阅流量失败, 状态码: %d", resp.StatusCode)
	}
	c.logger.Debug("已订阅实时流量")
	return resp.Body, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	resp, err := doWithRetry(ctx, func() (*http.Response, error) {
		return c.doRequest(ctx, http.MethodGet, path)
	})
	if err != nil {
		metrics.ControllerErrors.WithLabelValues(path[1:]).Inc()
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		metrics.ControllerErrors.WithLabelValues(path[1:]).Inc()
		return fmt.Errorf("状态码: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		metrics.ControllerErrors.WithLabelValues(path[1:]).Inc()
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}
