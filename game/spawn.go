package game

import (
	"math/rand"

	"github.com/pkg/errors"
)

var (
	// ErrRoomFull 玩家数已达上限
	ErrRoomFull = errors.New("game: player limit reached")
	// ErrNoSpawn 找不到 3×3 全空的出生点
	ErrNoSpawn = errors.New("game: no empty spawn cell")
)

// FindEmpty 在内部格子中随机挑一个 3×3 邻域全部无主的位置
func FindEmpty(g *Grid, rng *rand.Rand) (row, col int, ok bool) {
	var available []cell
	for r := 1; r < g.Size()-1; r++ {
		for c := 1; c < g.Size()-1; c++ {
			if clear3x3(g, r, c) {
				available = append(available, cell{r, c})
			}
		}
	}
	if len(available) == 0 {
		return 0, 0, false
	}
	pick := available[rng.Intn(len(available))]
	return pick.row, pick.col, true
}

func clear3x3(g *Grid, row, col int) bool {
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if g.Get(row+dr, col+dc) != NoOwner {
				return false
			}
		}
	}
	return true
}
