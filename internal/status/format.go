package status

import "fmt"

const (
	kib = 1024
	mib = 1024 * kib
	gib = 1024 * mib
)

// FormatBytes 字节数转为可读形式，1024 以下保留整数，其余保留一位小数
func FormatBytes(n uint64) string {
	switch {
	case n < kib:
		return fmt.Sprintf("%d B", n)
	case n < mib:
		return fmt.Sprintf("%.1f KB", float64(n)/kib)
	case n < gib:
		return fmt.Sprintf("%.1f MB", float64(n)/mib)
	default:
		return fmt.Sprintf("%.1f GB", float64(n)/gib)
	}
}

// FormatSpeed 速率（字节/秒）转为可读形式，最高单位 MB/s
func FormatSpeed(n uint64) string {
	switch {
	case n < kib:
		return fmt.Sprintf("%d B/s", n)
	case n < mib:
		return fmt.Sprintf("%.1f KB/s", float64(n)/kib)
	default:
		return fmt.Sprintf("%.1f MB/s", float64(n)/mib)
	}
}
