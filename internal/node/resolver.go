// Package node 从代理组快照中解析当前选中的出站节点。
package node

import (
	"sort"
	"strings"
)

const (
	// DefaultAnchor 默认锚定组（包含所有组的伪组）
	DefaultAnchor = "GLOBAL"
	// FallbackAnchor 常见配置中的主选择组
	FallbackAnchor = "Proxy"
	// MaxHops 跟随 now 指针的最大跳数（含锚点自身的一跳），防止环形配置死循环
	MaxHops = 10
)

// Group 代理组中与解析相关的字段
type Group struct {
	Now string // 当前选中成员，空表示无选择
}

// Snapshot 组名到代理组的只读视图
type Snapshot map[string]Group

// Resolve 返回完全解引用后的节点名，无可用选择时返回空字符串
// preferred 非空时优先选择名称（不区分大小写）包含 preferred 的组作为锚点
func Resolve(groups Snapshot, preferred string) string {
	return resolveFrom(groups, Anchor(groups, preferred))
}

// Anchor 选出解析起点组名
func Anchor(groups Snapshot, preferred string) string {
	if preferred != "" {
		needle := strings.ToLower(preferred)
		for _, name := range sortedNames(groups) {
			if strings.Contains(strings.ToLower(name), needle) {
				return name
			}
		}
	}
	if _, ok := groups[FallbackAnchor]; ok {
		return FallbackAnchor
	}
	return DefaultAnchor
}

func resolveFrom(groups Snapshot, anchor string) string {
	current := groups[anchor].Now
	if current == "" {
		return ""
	}
	// 锚点到其选中成员记为第 1 跳
	for hop := 1; hop < MaxHops; hop++ {
		g, ok := groups[current]
		if !ok || g.Now == "" {
			break
		}
		current = g.Now
	}
	return current
}

func sortedNames(groups Snapshot) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
