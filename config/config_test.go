package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.tatikoma.dev/corpix/keeper/process"
)

func writeConfig(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFromFile(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		path := writeConfig(t, "keeper.yaml", `
worker:
  name: /opt/swiflow/core
  mode: grouped
  deployment: desktop
  search: [/opt/swiflow/bin]
  attempts: 5
  backoff: 1s
  ready_addr: 127.0.0.1:8080
  watch: true
log:
  file: /tmp/serve.log
  level: debug
`)
		c := &Config{}
		require.NoError(t, c.FromFile(path))

		assert.Equal(t, "/opt/swiflow/core", c.Worker.Name)
		assert.Equal(t, process.ModeGrouped, c.Worker.Mode)
		assert.Equal(t, []string{"/opt/swiflow/bin"}, c.Worker.Search)
		assert.Equal(t, 5, c.Worker.Attempts)
		assert.Equal(t, time.Second, c.Worker.Backoff)
		assert.Equal(t, DefaultReadyTimeout, c.Worker.ReadyTimeout)
		assert.True(t, c.Worker.Watch)
		assert.Equal(t, "debug", c.Log.Level)

		sc := c.Supervisor()
		assert.Equal(t, []string{"-m", "serve", "-d", "desktop"}, sc.Args)
		assert.Equal(t, 5, sc.Attempts)
		assert.Equal(t, time.Second, sc.Backoff)
	})

	t.Run("json", func(t *testing.T) {
		path := writeConfig(t, "config.json", `{"worker": {"mode": "sidecar", "deployment": "ci"}}`)
		c := &Config{}
		require.NoError(t, c.FromFile(path))

		assert.Equal(t, DefaultWorkerName, c.Worker.Name)
		assert.Equal(t, process.ModeSidecar, c.Worker.Mode)
		assert.Equal(t, "ci", c.Worker.Deployment)
		assert.Equal(t, 3, c.Worker.Attempts)
		assert.Equal(t, 800*time.Millisecond, c.Worker.Backoff)
	})

	t.Run("missing file uses defaults", func(t *testing.T) {
		c := &Config{}
		require.NoError(t, c.FromFile(filepath.Join(t.TempDir(), "absent.json")))

		assert.Equal(t, DefaultReadyAddr, c.Worker.ReadyAddr)
		_, err := uuid.Parse(c.Worker.Deployment)
		assert.NoError(t, err, "deployment should be generated")
	})

	t.Run("unknown key", func(t *testing.T) {
		path := writeConfig(t, "config.yaml", "worker:\n  nmae: typo\n")
		assert.Error(t, (&Config{}).FromFile(path))
	})

	t.Run("bad mode", func(t *testing.T) {
		path := writeConfig(t, "config.yaml", "worker:\n  mode: detached\n")
		assert.ErrorContains(t, (&Config{}).FromFile(path), "detached")
	})

	t.Run("validation", func(t *testing.T) {
		path := writeConfig(t, "config.yaml", "worker:\n  attempts: 0\n  ready_addr: nowhere\n")
		err := (&Config{}).FromFile(path)
		assert.ErrorContains(t, err, "invalid config")
		assert.ErrorContains(t, err, "Attempts")
		assert.ErrorContains(t, err, "ReadyAddr")
	})
}
