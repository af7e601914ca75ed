package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAgentConfig(t *testing.T) {
	raw := `
queue:
  addr: localhost:6379
  name: mobiq:lab-a
  db: 2
schedules:
  - id: nightly-sweep
    cron: "0 2 * * *"
    flow_id: flow-conformance
    device_ids: [emulator-5554, emulator-5556]
`
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := LoadAgentConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.Queue.Addr)
	assert.Equal(t, "mobiq:lab-a", cfg.Queue.Name)
	assert.Equal(t, 2, cfg.Queue.DB)

	require.Len(t, cfg.Schedules, 1)
	assert.Equal(t, "nightly-sweep", cfg.Schedules[0].ID)
	assert.Equal(t, "0 2 * * *", cfg.Schedules[0].CronExpr)
	assert.Equal(t, []string{"emulator-5554", "emulator-5556"}, cfg.Schedules[0].DeviceIDs)
}

func TestLoadAgentConfig_Missing(t *testing.T) {
	_, err := LoadAgentConfig("/nonexistent/agent.yaml")
	assert.Error(t, err)
}

func TestLoadAgentConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queue: [not a map"), 0o644))

	_, err := LoadAgentConfig(path)
	assert.Error(t, err)
}
