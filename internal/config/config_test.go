package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1", cfg.Server.ListenAddr)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Empty(t, cfg.Server.StaticDir)

	assert.Equal(t, 1, cfg.Game.MinPlayers)
	assert.Equal(t, 16, cfg.Game.MaxPlayers)
	assert.Equal(t, 3500*time.Millisecond, cfg.Game.CountdownLead)
	assert.Equal(t, 50*time.Millisecond, cfg.Game.ClickInterval)
	assert.Equal(t, 50*time.Millisecond, cfg.Game.BroadcastInterval)
	assert.Equal(t, 5*time.Minute, cfg.Game.RaceTimeout)
	assert.Equal(t, 30*time.Second, cfg.Game.FirstFinishGrace)
	assert.Equal(t, 2*time.Hour, cfg.Game.RoomTTL)
	assert.Equal(t, 10*time.Minute, cfg.Game.SweepInterval)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `
server:
  listen_addr: 0.0.0.0
  http_port: 9000
  static_dir: /srv/clickrace/web
game:
  max_players: 8
  click_interval: 100ms
  room_ttl: 1h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.ListenAddr)
	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, "/srv/clickrace/web", cfg.Server.StaticDir)
	assert.Equal(t, 8, cfg.Game.MaxPlayers)
	assert.Equal(t, 100*time.Millisecond, cfg.Game.ClickInterval)
	assert.Equal(t, time.Hour, cfg.Game.RoomTTL)

	// Unset fields still get defaults
	assert.Equal(t, 1, cfg.Game.MinPlayers)
	assert.Equal(t, 3500*time.Millisecond, cfg.Game.CountdownLead)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
