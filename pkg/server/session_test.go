package server

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pzhenzhou/respd/pkg/respio"
)

func TestSession_ReplyEncodesValue(t *testing.T) {
	var buf bytes.Buffer
	session := &Session{writer: respio.NewRespWriterSize(&buf, sessionWriteBufferSize)}

	require.NoError(t, session.Reply(respio.Pong))
	require.NoError(t, session.Reply(respio.Pong))
	assert.Equal(t, 0, buf.Len())
	require.NoError(t, session.Flush())
	assert.Equal(t, "+PONG\r\n+PONG\r\n", buf.String())
	assert.Equal(t, len("+PONG\r\n"), pongSize)

	assert.ErrorIs(t, session.Reply(respio.Value{Type: respio.RespArray}), respio.ErrUnsupportedType)
}

func TestSession_InfoKeepsValueAndErrorKindsApart(t *testing.T) {
	session := &Session{Id: "s1"}
	assert.Empty(t, session.Info().LastValueKind)
	assert.Empty(t, session.Info().LastErrorKind)

	session.recordValue(respio.Integer(3))
	_, err := respio.DecodeOne([]byte("*1\r\n"))
	require.Error(t, err)
	session.recordDecodeError(err)

	info := session.Info()
	assert.Equal(t, "integer", info.LastValueKind)
	assert.Equal(t, "unsupported_type", info.LastErrorKind)
	assert.Equal(t, uint64(1), info.DecodeErrors)

	session.recordValue(respio.BulkString("x"))
	info = session.Info()
	assert.Equal(t, "bulk_string", info.LastValueKind)
	assert.Equal(t, "unsupported_type", info.LastErrorKind)
}
