package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRecords(t *testing.T) {
	frame := []byte("{\"type\":6}\x1e{\"type\":1,\"target\":\"A\"}\x1e\x1e  {\"type\":7}")
	recs := splitRecords(frame)
	require.Len(t, recs, 3)
	assert.Equal(t, `{"type":6}`, string(recs[0]))
	assert.Equal(t, `{"type":7}`, string(recs[2]))
	assert.Empty(t, splitRecords(nil))
}

func TestEncodeRecordTerminates(t *testing.T) {
	data, err := encodeRecord(invocation{Type: msgInvocation, InvocationID: "1", Target: "DropPiece", Arguments: []any{"L1", 3}})
	require.NoError(t, err)
	assert.Equal(t, byte(recordSeparator), data[len(data)-1])
	assert.JSONEq(t, `{"type":1,"invocationId":"1","target":"DropPiece","arguments":["L1",3]}`, string(data[:len(data)-1]))
}

func TestWebsocketURL(t *testing.T) {
	u, err := websocketURL("http://localhost:5139/", "/lobbyhub", "a b")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:5139/lobbyhub?id=a+b", u)

	u, err = websocketURL("https://arcade.example", "/connect4hub", "t")
	require.NoError(t, err)
	assert.Equal(t, "wss://arcade.example/connect4hub?id=t", u)

	_, err = websocketURL("ftp://x", "/lobbyhub", "t")
	assert.Error(t, err)
}

func TestBackoffFor(t *testing.T) {
	lo, hi := time.Second, 30*time.Second
	assert.Equal(t, time.Second, backoffFor(lo, hi, 0))
	assert.Equal(t, 2*time.Second, backoffFor(lo, hi, 1))
	assert.Equal(t, 16*time.Second, backoffFor(lo, hi, 4))
	assert.Equal(t, hi, backoffFor(lo, hi, 5))
	assert.Equal(t, hi, backoffFor(lo, hi, 400))
}
