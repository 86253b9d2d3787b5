package discord

import (
	"encoding/binary"
	"encoding/json"
	"io"

	E "github.com/sagernet/sing/common/exceptions"
)

// IPC 帧：小端 uint32 opcode + 小端 uint32 长度 + JSON 负载
const (
	opHandshake uint32 = 0
	opFrame     uint32 = 1
	opClose     uint32 = 2
	opPing      uint32 = 3
	opPong      uint32 = 4
)

// maxFrameSize 单帧负载上限
const maxFrameSize = 64 * 1024

func writeFrame(w io.Writer, op uint32, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return E.Cause(err, "encode frame")
	}
	buf := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], op)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[8:], payload)
	if _, err := w.Write(buf); err != nil {
		return E.Cause(err, "write frame")
	}
	return nil
}

func readFrame(r io.Reader) (uint32, []byte, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, E.Cause(err, "read frame header")
	}
	op := binary.LittleEndian.Uint32(header[0:4])
	size := binary.LittleEndian.Uint32(header[4:8])
	if size > maxFrameSize {
		return 0, nil, E.New("frame too large: ", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, E.Cause(err, "read frame payload")
	}
	return op, payload, nil
}
