package api

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// 重试间隔：刷新周期为 1 秒，只做一次短暂重试
var retryDelays = []time.Duration{
	200 * time.Millisecond,
}

// doWithRetry 带退避重试的请求执行
// 仅对 5xx 和网络错误重试，4xx 不重试；ctx 取消时立即返回
func doWithRetry(ctx context.Context, fn func() (*http.Response, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		resp, err := fn()
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("服务端错误: %d", resp.StatusCode)
		default:
			return resp, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < len(retryDelays) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelays[attempt]):
			}
		}
	}

	return nil, fmt.Errorf("请求失败（已重试 %d 次）: %w", len(retryDelays), lastErr)
}
