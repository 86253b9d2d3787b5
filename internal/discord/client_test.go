package discord

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDiscord plays the Discord side of a net.Pipe.
type fakeDiscord struct {
	conn     net.Conn
	requests chan map[string]interface{}
}

func newPipeClient(t *testing.T) (*Client, *fakeDiscord) {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	t.Cleanup(func() {
		clientSide.Close()
		serverSide.Close()
	})
	c, err := New("1234")
	require.NoError(t, err)
	c.dial = func() (io.ReadWriteCloser, error) { return clientSide, nil }
	return c, &fakeDiscord{conn: serverSide, requests: make(chan map[string]interface{}, 8)}
}

func (f *fakeDiscord) read(t *testing.T) (uint32, map[string]interface{}) {
	op, payload, err := readFrame(f.conn)
	if err != nil {
		t.Errorf("fake read: %v", err)
		return 0, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(payload, &m); err != nil {
		t.Errorf("fake decode: %v", err)
	}
	return op, m
}

func (f *fakeDiscord) write(t *testing.T, op uint32, v interface{}) {
	if err := writeFrame(f.conn, op, v); err != nil {
		t.Errorf("fake write: %v", err)
	}
}

// serveHandshake answers the handshake with READY.
func (f *fakeDiscord) serveHandshake(t *testing.T) {
	op, m := f.read(t)
	assert.Equal(t, opHandshake, op)
	assert.Equal(t, float64(1), m["v"])
	assert.Equal(t, "1234", m["client_id"])
	f.write(t, opFrame, map[string]interface{}{"cmd": "DISPATCH", "evt": "READY"})
}

// serveCommand echoes the request nonce back with the given evt.
func (f *fakeDiscord) serveCommand(t *testing.T, evt string) {
	op, m := f.read(t)
	assert.Equal(t, opFrame, op)
	f.requests <- m
	resp := map[string]interface{}{"cmd": m["cmd"], "nonce": m["nonce"]}
	if evt != "" {
		resp["evt"] = evt
		resp["data"] = map[string]interface{}{"code": 4000, "message": "bad activity"}
	}
	f.write(t, opFrame, resp)
}

func TestNewRejectsEmptyAppID(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestFrameRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	go func() {
		_ = writeFrame(a, opFrame, map[string]string{"cmd": "X"})
	}()
	op, payload, err := readFrame(b)
	require.NoError(t, err)
	assert.Equal(t, opFrame, op)
	assert.JSONEq(t, `{"cmd":"X"}`, string(payload))
}

func TestConnectAndSetActivity(t *testing.T) {
	c, fake := newPipeClient(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		fake.serveHandshake(t)
		fake.serveCommand(t, "")
		fake.serveCommand(t, "")
	}()

	require.NoError(t, c.Connect())
	require.NoError(t, c.SetActivity(&Activity{
		Details:    "up",
		State:      "TUN • Rule",
		Timestamps: &Timestamps{Start: 100},
		Assets:     &Assets{LargeImage: "img", LargeText: "txt"},
		Party:      &Party{Size: [2]int{1, 3}},
	}))
	require.NoError(t, c.ClearActivity())
	<-done

	set := <-fake.requests
	assert.Equal(t, "SET_ACTIVITY", set["cmd"])
	assert.NotEmpty(t, set["nonce"])
	args := set["args"].(map[string]interface{})
	activity := args["activity"].(map[string]interface{})
	assert.Equal(t, "up", activity["details"])
	assert.Equal(t, "TUN • Rule", activity["state"])
	assert.Equal(t, []interface{}{float64(1), float64(3)}, activity["party"].(map[string]interface{})["size"])

	clear := <-fake.requests
	clearArgs := clear["args"].(map[string]interface{})
	v, present := clearArgs["activity"]
	assert.True(t, present)
	assert.Nil(t, v)
	assert.NotEqual(t, set["nonce"], clear["nonce"])
}

func TestConnectRejected(t *testing.T) {
	c, fake := newPipeClient(t)

	go func() {
		fake.read(t)
		fake.write(t, opClose, map[string]interface{}{"code": 4000, "message": "Invalid Client ID"})
	}()

	err := c.Connect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid Client ID")
	assert.ErrorIs(t, c.SetActivity(&Activity{}), ErrNotConnected)
}

func TestConnectDialError(t *testing.T) {
	c, err := New("1234")
	require.NoError(t, err)
	dialErr := errors.New("no socket")
	c.dial = func() (io.ReadWriteCloser, error) { return nil, dialErr }

	assert.Error(t, c.Connect())
	assert.ErrorIs(t, c.ClearActivity(), ErrNotConnected)
}

func TestSetActivityErrorEvent(t *testing.T) {
	c, fake := newPipeClient(t)

	go func() {
		fake.serveHandshake(t)
		fake.serveCommand(t, "ERROR")
	}()

	require.NoError(t, c.Connect())
	err := c.SetActivity(&Activity{Details: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad activity")
}

func TestPingAnsweredWithPong(t *testing.T) {
	c, fake := newPipeClient(t)

	go func() {
		fake.serveHandshake(t)
		op, m := fake.read(t)
		assert.Equal(t, opFrame, op)
		fake.write(t, opPing, map[string]string{"p": "1"})
		pong, _ := fake.read(t)
		assert.Equal(t, opPong, pong)
		// unrelated nonce is skipped
		fake.write(t, opFrame, map[string]interface{}{"cmd": "SET_ACTIVITY", "nonce": "other"})
		fake.write(t, opFrame, map[string]interface{}{"cmd": "SET_ACTIVITY", "nonce": m["nonce"]})
	}()

	require.NoError(t, c.Connect())
	require.NoError(t, c.SetActivity(&Activity{Details: "x"}))
}

func TestCloseSendsCloseFrame(t *testing.T) {
	c, fake := newPipeClient(t)

	got := make(chan uint32, 1)
	go func() {
		fake.serveHandshake(t)
		op, _, err := readFrame(fake.conn)
		if err == nil {
			got <- op
		}
		close(got)
	}()

	require.NoError(t, c.Connect())
	require.NoError(t, c.Close())
	assert.Equal(t, opClose, <-got)
	assert.NoError(t, c.Close())
}
