package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Client 内核 external-controller 客户端
type Client struct {
	httpClient   *http.Client // 普通请求，带超时
	streamClient *http.Client // 长连接流，不设超时，由 ctx 控制
	baseURL      string
	secret       string // Bearer 密钥，可为空
	logger       *logrus.Logger
}

// NewClient 创建 controller 客户端
// server 可以是 "127.0.0.1:9097" 或完整 URL
func NewClient(server, secret string, logger *logrus.Logger) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 5 * time.Second},
		streamClient: &http.Client{},
		baseURL:      normalizeBaseURL(server),
		secret:       secret,
		logger:       logger,
	}
}

// BaseURL 返回规范化后的地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

func normalizeBaseURL(server string) string {
	server = strings.TrimRight(strings.TrimSpace(server), "/")
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	return server
}

// newRequest 构造请求，secret 非空时附加 Authorization: Bearer
func (c *Client) newRequest(ctx context.Context, method, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	if c.secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}
	return req, nil
}

// doRequest 通用请求方法
func (c *Client) doRequest(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, path)
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}
