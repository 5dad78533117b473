package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unitConfig 每格 1 像素、每 Tick 走 1 格，方便按格子推演
func unitConfig(size int) Config {
	return Config{GridSize: size, CellWidth: 1, Speed: 1, NewPlayerLag: 0, MaxPlayers: 16}
}

func TestPlayerRowColRounding(t *testing.T) {
	cfg := DefaultConfig()
	p := NewPlayer(cfg, PlayerState{PosX: 85, PosY: 85, Heading: Right})
	assert.Equal(t, 3, p.Col(), "ceil when moving right")
	assert.Equal(t, 2, p.Row(), "floor when not moving down")

	p = NewPlayer(cfg, PlayerState{PosX: 85, PosY: 85, Heading: Down})
	assert.Equal(t, 2, p.Col())
	assert.Equal(t, 3, p.Row())

	p = NewPlayer(cfg, PlayerState{PosX: 85, PosY: 85, Heading: Left})
	assert.Equal(t, 2, p.Col())
	assert.Equal(t, 2, p.Row())
}

func TestPlayerSpawnLag(t *testing.T) {
	cfg := unitConfig(10)
	cfg.NewPlayerLag = 2
	g := NewGrid(cfg.GridSize, nil)
	p := NewPlayer(cfg, PlayerState{Num: 0, PosX: 5, PosY: 5, Heading: Right})

	p.Move(g)
	p.Move(g)
	assert.Equal(t, 5.0, p.PosX)
	assert.Equal(t, 2, p.WaitLag)

	p.Move(g)
	assert.Equal(t, 6.0, p.PosX)
}

func TestPlayerOutOfBoundsDies(t *testing.T) {
	cfg := unitConfig(5)
	g := NewGrid(cfg.GridSize, nil)
	p := NewPlayer(cfg, PlayerState{Num: 0, PosX: 2, PosY: 0, Heading: Up})

	p.Move(g)
	assert.True(t, p.Dead())

	// 死亡后不再移动
	y := p.PosY
	p.Move(g)
	assert.Equal(t, y, p.PosY)
}

func TestPlayerTailGrowsPerCell(t *testing.T) {
	cfg := DefaultConfig()
	g := NewGrid(cfg.GridSize, nil)
	p := NewPlayer(cfg, PlayerState{Num: 3, PosX: 80, PosY: 80, Heading: Right})
	p.lag = 0
	InitPlayer(g, p)

	// 领地是第 1~3 列，走到 x=125 才进入第 4 列；尾巴落后一格，此时仍为空
	for p.PosX < 125 {
		p.Move(g)
		assert.Equal(t, 0, p.Tail().Len(), "x=%v", p.PosX)
	}
	assert.Equal(t, 4, p.Col())
	for p.PosX < 160 {
		p.Move(g)
		assert.Equal(t, 0, p.Tail().Len(), "x=%v", p.PosX)
	}
	p.Move(g)
	assert.Equal(t, 165.0, p.PosX)
	assert.Equal(t, 5, p.Col())
	require.Equal(t, 1, p.Tail().Len())
	assert.Equal(t, Run{Dir: Right, Len: 1, Row: 2, Col: 3}, p.Tail().Runs()[0])

	// 同一格内继续移动不追加
	p.Move(g)
	assert.Equal(t, 1, p.Tail().Runs()[0].Len)
}

func TestPlayerHeadingLatchesOnAlignment(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NewPlayerLag = 0
	g := NewGrid(cfg.GridSize, nil)
	p := NewPlayer(cfg, PlayerState{Num: 0, PosX: 125, PosY: 200, Heading: Right})

	require.True(t, p.ChangeHeading(Up))
	p.Move(g)
	assert.Equal(t, 130.0, p.PosX)
	assert.Equal(t, Right, p.CurrentHeading())

	for p.PosX < 160 {
		p.Move(g)
	}
	p.Move(g)
	assert.Equal(t, Up, p.CurrentHeading())
	assert.Equal(t, 160.0, p.PosX)
	assert.Equal(t, 195.0, p.PosY)
}

func TestPlayerChangeHeadingRejectsReverse(t *testing.T) {
	p := NewPlayer(unitConfig(5), PlayerState{PosX: 2, PosY: 2, Heading: Left})
	assert.False(t, p.ChangeHeading(Right))
	assert.Equal(t, Left, p.Heading)
	assert.True(t, p.ChangeHeading(Down))
	assert.Equal(t, Down, p.Heading)

	p.Die()
	assert.False(t, p.ChangeHeading(Up))
}

func TestPlayerExposure(t *testing.T) {
	cfg := DefaultConfig()
	p := NewPlayer(cfg, PlayerState{PosX: 85, PosY: 80, Heading: Right})
	assert.Equal(t, 35.0, p.Exposure())

	p = NewPlayer(cfg, PlayerState{PosX: 80, PosY: 90, Heading: Up})
	assert.Equal(t, 10.0, p.Exposure())
}

func TestPlayerStateRoundTrip(t *testing.T) {
	cfg := unitConfig(10)
	p := NewPlayer(cfg, PlayerState{Num: 4, Name: "x", PosX: 3, PosY: 3, Heading: Right, Color: 9})
	p.Tail().AddRun(Right, 2)
	p.ChangeHeading(Up)

	q := NewPlayer(cfg, p.State())
	assert.Equal(t, p.State(), q.State())
	assert.Equal(t, Up, q.Heading)
	assert.Equal(t, Right, q.CurrentHeading())
}

func TestInitPlayerClaims3x3(t *testing.T) {
	cfg := unitConfig(10)
	g := NewGrid(cfg.GridSize, nil)
	p := NewPlayer(cfg, PlayerState{Num: 2, PosX: 5, PosY: 5, Heading: Right})
	InitPlayer(g, p)

	assert.Equal(t, 9, g.Count(2))
	assert.Equal(t, PlayerID(2), g.Get(4, 4))
	assert.Equal(t, PlayerID(2), g.Get(6, 6))
	assert.Equal(t, NoOwner, g.Get(7, 5))
}
