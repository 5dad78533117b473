package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 80, c.Game.GridSize)
	assert.Equal(t, 40, c.Game.CellWidth)
	assert.Equal(t, 5, c.Game.Speed)
	assert.Equal(t, 60, c.TickRate)
	assert.Equal(t, time.Second/60, c.TickInterval())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PAPER_GRID_SIZE", "32")
	t.Setenv("PAPER_MAX_PLAYERS", "12")
	t.Setenv("PAPER_INPUT_RATE", "12.5")
	t.Setenv("PAPER_ADDR", ":9000")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 32, c.Game.GridSize)
	assert.Equal(t, 12, c.Game.MaxPlayers)
	assert.Equal(t, 12.5, c.InputRate)
	assert.Equal(t, ":9000", c.Addr)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PAPER_CELL_WIDTH=20\nPAPER_SPEED=4\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("PAPER_CELL_WIDTH")
		_ = os.Unsetenv("PAPER_SPEED")
	})

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, c.Game.CellWidth)
	assert.Equal(t, 4, c.Game.Speed)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("PAPER_TICK_RATE", "fast")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAPER_TICK_RATE")
}

func TestValidate(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	c.Game.Speed = 3
	assert.Error(t, c.Validate(), "cell width must be a multiple of speed")

	c = Default()
	c.Game.MaxPlayers = 300
	assert.Error(t, c.Validate())

	c = Default()
	c.TickRate = 0
	assert.Error(t, c.Validate())

	c = Default()
	c.InputBurst = 0
	assert.Error(t, c.Validate())
}
