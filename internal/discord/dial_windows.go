//go:build windows

package discord

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Microsoft/go-winio"
	E "github.com/sagernet/sing/common/exceptions"
)

// dialIPC 以重叠 I/O 打开命名管道，返回的连接支持读写截止时间
func dialIPC() (io.ReadWriteCloser, error) {
	var errs []error
	for i := 0; i < 10; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		conn, err := winio.DialPipeContext(ctx, fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i))
		cancel()
		if err == nil {
			return conn, nil
		}
		errs = append(errs, err)
	}
	return nil, E.Cause(E.Errors(errs...), "no discord ipc pipe found")
}
