package queue

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRunRequest(t *testing.T) {
	request, err := decodeRunRequest(`{"flow_id":"flow-1","device_ids":["emulator-5554"],"requester":"ci"}`)
	require.NoError(t, err)

	assert.Equal(t, "flow-1", request.FlowID)
	assert.Equal(t, []string{"emulator-5554"}, request.DeviceIDs)
	assert.Equal(t, "ci", request.Requester)
}

func TestDecodeRunRequest_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":   "run flow-1 please",
		"no flow id": `{"device_ids":["emulator-5554"]}`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeRunRequest(payload)
			assert.Error(t, err)
		})
	}
}

func TestNewReceiver_RequiresAddr(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	_, err := NewReceiver("", nil, logger)
	assert.Error(t, err)
}

func TestNewReceiver_Options(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	receiver, err := NewReceiver("localhost:6379", nil, logger,
		WithQueue("mobiq:test"), WithCredentials("secret", 2))
	require.NoError(t, err)

	assert.Equal(t, "mobiq:test", receiver.queue)
	assert.Equal(t, 2, receiver.db)
}
