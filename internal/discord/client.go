// Package discord 实现 Discord 本地 IPC 的最小子集：握手、SET_ACTIVITY、关闭。
//
// Client 不是并发安全的，调用方需要保证同一时间只有一个 goroutine 使用它。
package discord

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	E "github.com/sagernet/sing/common/exceptions"
)

// DefaultTimeout 单次 IPC 往返的超时
const DefaultTimeout = 5 * time.Second

// ErrNotConnected 在未连接时调用
var ErrNotConnected = E.New("discord: not connected")

type deadliner interface {
	SetDeadline(t time.Time) error
}

// Client Discord IPC 客户端
type Client struct {
	appID   string
	dial    func() (io.ReadWriteCloser, error)
	timeout time.Duration
	conn    io.ReadWriteCloser
}

// New 创建客户端，不会立即连接
func New(appID string) (*Client, error) {
	if appID == "" {
		return nil, E.New("discord: empty application id")
	}
	return &Client{
		appID:   appID,
		dial:    dialIPC,
		timeout: DefaultTimeout,
	}, nil
}

type handshake struct {
	Version  int    `json:"v"`
	ClientID string `json:"client_id"`
}

type closeMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type request struct {
	Cmd   string      `json:"cmd"`
	Args  interface{} `json:"args"`
	Nonce string      `json:"nonce"`
}

type activityArgs struct {
	PID      int       `json:"pid"`
	Activity *Activity `json:"activity"`
}

type response struct {
	Cmd   string          `json:"cmd"`
	Evt   string          `json:"evt"`
	Nonce string          `json:"nonce"`
	Data  json.RawMessage `json:"data"`
}

// Connect 连接本地 Discord 并完成握手
func (c *Client) Connect() error {
	if c.conn != nil {
		return nil
	}
	conn, err := c.dial()
	if err != nil {
		return E.Cause(err, "dial discord ipc")
	}
	c.conn = conn
	c.arm()

	if err := writeFrame(conn, opHandshake, handshake{Version: 1, ClientID: c.appID}); err != nil {
		c.drop()
		return err
	}

	op, payload, err := readFrame(conn)
	if err != nil {
		c.drop()
		return E.Cause(err, "discord handshake")
	}
	if op == opClose {
		var msg closeMessage
		_ = json.Unmarshal(payload, &msg)
		c.drop()
		return E.New("discord rejected handshake: ", msg.Code, " ", msg.Message)
	}

	var ready response
	if err := json.Unmarshal(payload, &ready); err != nil {
		c.drop()
		return E.Cause(err, "decode handshake response")
	}
	if ready.Evt != "READY" {
		c.drop()
		return E.New("unexpected handshake event: ", ready.Evt)
	}
	return nil
}

// SetActivity 设置当前活动
func (c *Client) SetActivity(activity *Activity) error {
	return c.command("SET_ACTIVITY", activityArgs{PID: os.Getpid(), Activity: activity})
}

// ClearActivity 清除当前活动（activity 置为 null）
func (c *Client) ClearActivity() error {
	return c.command("SET_ACTIVITY", activityArgs{PID: os.Getpid()})
}

// Close 发送关闭帧并断开
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	c.arm()
	// 关闭帧尽力发送，对端可能已断开
	_ = writeFrame(c.conn, opClose, struct{}{})
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return E.Cause(err, "close discord ipc")
	}
	return nil
}

func (c *Client) command(cmd string, args interface{}) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	nonce := uuid.NewString()
	c.arm()

	if err := writeFrame(c.conn, opFrame, request{Cmd: cmd, Args: args, Nonce: nonce}); err != nil {
		return err
	}

	for {
		op, payload, err := readFrame(c.conn)
		if err != nil {
			return err
		}
		switch op {
		case opPing:
			if err := c.writeRaw(opPong, payload); err != nil {
				return err
			}
			continue
		case opClose:
			var msg closeMessage
			_ = json.Unmarshal(payload, &msg)
			return E.New("discord closed connection: ", msg.Code, " ", msg.Message)
		case opFrame:
		default:
			continue
		}

		var resp response
		if err := json.Unmarshal(payload, &resp); err != nil {
			return E.Cause(err, "decode response")
		}
		if resp.Nonce != nonce {
			continue
		}
		if resp.Evt == "ERROR" {
			var msg closeMessage
			_ = json.Unmarshal(resp.Data, &msg)
			return E.New(cmd, " failed: ", msg.Code, " ", msg.Message)
		}
		return nil
	}
}

func (c *Client) writeRaw(op uint32, payload []byte) error {
	return writeFrame(c.conn, op, json.RawMessage(payload))
}

// arm 为支持超时的连接设置读写截止时间
func (c *Client) arm() {
	if d, ok := c.conn.(deadliner); ok {
		_ = d.SetDeadline(time.Now().Add(c.timeout))
	}
}

func (c *Client) drop() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
