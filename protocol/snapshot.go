package protocol

import (
	"github.com/pkg/errors"

	"paperarena/game"
)

// MaxSnapshotPlayers 网格快照每格一个字节，0 留给无主
const MaxSnapshotPlayers = 255

// EncodeGrid 序列化网格：每格一个字节，0 表示无主，否则为 players 中的下标加一
func EncodeGrid(g *game.Grid, players []*game.Player) ([]byte, error) {
	if len(players) > MaxSnapshotPlayers {
		return nil, errors.Errorf("too many players for grid snapshot: %d", len(players))
	}
	index := make(map[game.PlayerID]byte, len(players))
	for i, p := range players {
		index[p.Num] = byte(i + 1)
	}

	size := g.Size()
	out := make([]byte, size*size)
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			owner := g.Get(r, c)
			if owner == game.NoOwner {
				continue
			}
			b, ok := index[owner]
			if !ok {
				return nil, errors.Errorf("cell (%d,%d) owned by untracked player %d", r, c, owner)
			}
			out[r*size+c] = b
		}
	}
	return out, nil
}

// DecodeGrid 按 players 的顺序还原网格归属，先静默清空
func DecodeGrid(g *game.Grid, data []byte, players []game.PlayerState) error {
	size := g.Size()
	if len(data) != size*size {
		return errors.Errorf("grid snapshot has %d cells, want %d", len(data), size*size)
	}
	g.Reset()
	for i, b := range data {
		if b == 0 {
			continue
		}
		if int(b) > len(players) {
			return errors.Errorf("grid snapshot cell %d refers to player index %d of %d", i, b, len(players))
		}
		g.Set(i/size, i%size, players[b-1].Num)
	}
	return nil
}

// Snapshot 生成完整快照；num 为接收方自己的编号，观战者传 nil
func Snapshot(e *game.Engine, gameID string, num *game.PlayerID) (Game, error) {
	players := e.Players()
	grid, err := EncodeGrid(e.Grid(), players)
	if err != nil {
		return Game{}, err
	}
	states := make([]game.PlayerState, len(players))
	for i, p := range players {
		states[i] = p.State()
	}
	return Game{
		Num:     num,
		GameID:  gameID,
		Frame:   e.Frame(),
		Config:  e.Config(),
		Players: states,
		Grid:    grid,
	}, nil
}

// Restore 用快照构建一个新的引擎，玩家顺序与快照一致
func Restore(snap Game, obs game.Observer) (*game.Engine, error) {
	if err := snap.Config.Validate(); err != nil {
		return nil, errors.Wrap(err, "snapshot config")
	}
	e := game.NewEngine(snap.Config, obs)
	for _, st := range snap.Players {
		if _, added := e.AddPlayer(st); !added {
			return nil, errors.Errorf("duplicate player %d in snapshot", st.Num)
		}
	}
	if err := DecodeGrid(e.Grid(), snap.Grid, snap.Players); err != nil {
		return nil, err
	}
	e.SetFrame(snap.Frame)
	return e, nil
}
