package network

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/nightfall/models"
)

type captureConn struct {
	msgID uint16
	data  []byte
}

func (c *captureConn) Send(msgID uint16, data []byte) error {
	c.msgID, c.data = msgID, data
	return nil
}
func (c *captureConn) Close() error { return nil }
func (c *captureConn) RemoteAddr() net.Addr { return &net.TCPAddr{} }
func (c *captureConn) SetHeartbeat(interval time.Duration) {}
func (c *captureConn) ReadPacket() (*Packet, error) { return nil, io.EOF }

func TestEncodeDecodePacket(t *testing.T) {
	raw, err := EncodePacket(MsgTypeVote, []byte(`{"target":"P2"}`))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 203, 0, 15}, raw[:4])

	packet, err := DecodePacket(raw)
	require.NoError(t, err)
	assert.Equal(t, MsgTypeVote, packet.MsgID)
	assert.EqualValues(t, 15, packet.Length)
	assert.Equal(t, `{"target":"P2"}`, string(packet.Data))
}

func TestDecodePacket_Short(t *testing.T) {
	_, err := DecodePacket([]byte{0, 1})
	assert.ErrorIs(t, err, io.ErrShortBuffer)

	_, err = DecodePacket([]byte{0, 1, 0, 9, 'x'})
	assert.ErrorIs(t, err, io.ErrShortBuffer)
}

func TestEncodePacket_TooLarge(t *testing.T) {
	_, err := EncodePacket(MsgTypeStateSnapshot, bytes.Repeat([]byte{'a'}, 1<<16))
	assert.ErrorIs(t, err, ErrPacketTooLarge)
}

func TestSendJSON(t *testing.T) {
	conn := &captureConn{}
	req := NightActionRequest{SessionID: "s1", Action: models.NightAction{Type: models.ActionKill, Target: "P4"}}
	require.NoError(t, SendJSON(conn, MsgTypeNightAction, req))

	assert.Equal(t, MsgTypeNightAction, conn.msgID)
	var got NightActionRequest
	require.NoError(t, json.Unmarshal(conn.data, &got))
	assert.Equal(t, req, got)
}
