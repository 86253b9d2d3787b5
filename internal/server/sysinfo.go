package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// 常见 Discord 客户端进程名（小写，不含 .exe）
var discordProcessNames = map[string]struct{}{
	"discord":       {},
	"discordcanary": {},
	"discordptb":    {},
	"vesktop":       {},
	"webcord":       {},
	"legcord":       {},
}

// discordRunning 检查是否有 Discord 客户端进程在运行
func discordRunning(ctx context.Context) (bool, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false, fmt.Errorf("获取进程列表失败: %w", err)
	}

	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// 进程已退出或无权限
			continue
		}
		if isDiscordProcess(name) {
			return true, nil
		}
	}
	return false, nil
}

func isDiscordProcess(name string) bool {
	name = strings.TrimSuffix(strings.ToLower(name), ".exe")
	_, ok := discordProcessNames[name]
	return ok
}
