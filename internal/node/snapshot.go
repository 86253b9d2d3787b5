package node

import "vergepresence/internal/api"

// SnapshotFromProxies 将控制器 /proxies 文档转换为解析用快照
// 非组节点的 now 为空，解析时自然成为叶子
func SnapshotFromProxies(proxies map[string]api.Proxy) Snapshot {
	snap := make(Snapshot, len(proxies))
	for name, p := range proxies {
		snap[name] = Group{Now: p.Now}
	}
	return snap
}
