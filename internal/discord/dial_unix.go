//go:build !windows

package discord

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	E "github.com/sagernet/sing/common/exceptions"
)

// 沙箱安装的 Discord 会把 socket 放在运行目录的子目录中
var socketSubdirs = []string{
	"",
	"app/com.discordapp.Discord",
	"snap.discord",
	".flatpak/dev.vencord.Vesktop/xdg-run",
}

func socketDirs() []string {
	var bases []string
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if v := os.Getenv(env); v != "" {
			bases = append(bases, v)
		}
	}
	bases = append(bases, "/tmp")

	dirs := make([]string, 0, len(bases)*len(socketSubdirs))
	for _, base := range bases {
		for _, sub := range socketSubdirs {
			dirs = append(dirs, filepath.Join(base, sub))
		}
	}
	return dirs
}

func dialIPC() (io.ReadWriteCloser, error) {
	var errs []error
	for _, dir := range socketDirs() {
		for i := 0; i < 10; i++ {
			path := filepath.Join(dir, fmt.Sprintf("discord-ipc-%d", i))
			if _, err := os.Stat(path); err != nil {
				continue
			}
			conn, err := net.DialTimeout("unix", path, time.Second)
			if err == nil {
				return conn, nil
			}
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil, E.New("no discord ipc socket found")
	}
	return nil, E.Errors(errs...)
}
