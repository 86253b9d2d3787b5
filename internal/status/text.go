package status

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"vergepresence/internal/config"
	"vergepresence/internal/traffic"
)

const (
	defaultMode    = "Rule"
	defaultProfile = "No Profile"
)

// ConnMode 当前接入方式
func ConnMode(p config.ProxyConfig) string {
	switch {
	case p.TunMode:
		return "TUN"
	case p.SystemProxy:
		return "System Proxy"
	default:
		return "Clash Active"
	}
}

// ModeLabel 首字母大写的内核模式，空值为 Rule
func ModeLabel(mode string) string {
	if mode == "" {
		return defaultMode
	}
	r, size := utf8.DecodeRuneInString(mode)
	return string(unicode.ToUpper(r)) + mode[size:]
}

// Details 第一行：实时速率、累计流量和当前配置名
func Details(up, down uint64, totals traffic.Totals, profile string) string {
	if strings.TrimSpace(profile) == "" {
		profile = defaultProfile
	}
	return fmt.Sprintf("↑ %s • ↓ %s (All: ↑ %s • ↓ %s) | %s",
		FormatSpeed(up),
		FormatSpeed(down),
		FormatBytes(totals.Up),
		FormatBytes(totals.Down),
		profile,
	)
}

// StateLine 第二行：接入方式、模式和节点（节点为空时省略）
func StateLine(connMode, mode, node string) string {
	if node == "" {
		return fmt.Sprintf("%s • %s", connMode, mode)
	}
	return fmt.Sprintf("%s • %s • %s", connMode, mode, node)
}
