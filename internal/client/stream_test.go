package client

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFrame(t *testing.T) {
	raw := ": subscribed chat-u1_u2\n\n" +
		"event:new-message\ndata:{\"event\":\"new-message\"}\n\n" +
		": ping\n\n" +
		"event: multi\r\ndata: a\r\ndata: b\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(raw))

	f, err := readFrame(r)
	require.NoError(t, err)
	assert.Empty(t, f.data)

	f, err = readFrame(r)
	require.NoError(t, err)
	assert.Equal(t, frame{event: "new-message", data: `{"event":"new-message"}`}, f)

	f, err = readFrame(r)
	require.NoError(t, err)
	assert.Empty(t, f.data)

	f, err = readFrame(r)
	require.NoError(t, err)
	assert.Equal(t, frame{event: "multi", data: "a\nb"}, f)

	_, err = readFrame(r)
	assert.ErrorIs(t, err, io.EOF)
}
