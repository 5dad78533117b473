package server

import (
	"sort"
	"sync"

	"paperarena/game"
)

// Score 排行榜条目
type Score struct {
	Num   game.PlayerID `json:"num"`
	Name  string        `json:"name"`
	Cells int           `json:"cells"`
}

// Territory 挂在引擎上的观察者：按格子变化维护每个玩家的领地数。
// 回调只在 Tick 协程里发生，读取方（管理接口）走锁。
type Territory struct {
	game.NopObserver

	roomID string
	total  int

	mu     sync.Mutex
	counts map[game.PlayerID]int
	names  map[game.PlayerID]string
	filled int
	full   bool
}

func NewTerritory(roomID string, gridSize int) *Territory {
	return &Territory{
		roomID: roomID,
		total:  gridSize * gridSize,
		counts: make(map[game.PlayerID]int),
		names:  make(map[game.PlayerID]string),
	}
}

func (t *Territory) AddPlayer(p *game.Player) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.names[p.Num] = p.Name
}

func (t *Territory) RemovePlayer(p *game.Player) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counts, p.Num)
	delete(t.names, p.Num)
}

func (t *Territory) UpdateGrid(_, _ int, before, after game.PlayerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if before != game.NoOwner {
		t.counts[before]--
		t.filled--
	}
	if after != game.NoOwner {
		t.counts[after]++
		t.filled++
	}
	if t.filled == t.total && !t.full {
		t.full = true
		Log.Infow("FULL GAME", "room", t.roomID, "leader", t.leaderLocked())
	} else if t.filled < t.total {
		t.full = false
	}
}

func (t *Territory) leaderLocked() game.PlayerID {
	best, bestCells := game.NoOwner, -1
	for num, n := range t.counts {
		if n > bestCells || (n == bestCells && num < best) {
			best, bestCells = num, n
		}
	}
	return best
}

// Filled 已被占领的格子数
func (t *Territory) Filled() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filled
}

// Cells 某玩家的领地数
func (t *Territory) Cells(num game.PlayerID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[num]
}

// Leaderboard 按领地数降序，最多 n 条；n <= 0 返回全部
func (t *Territory) Leaderboard(n int) []Score {
	t.mu.Lock()
	out := make([]Score, 0, len(t.names))
	for num, name := range t.names {
		out = append(out, Score{Num: num, Name: name, Cells: t.counts[num]})
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Cells != out[j].Cells {
			return out[i].Cells > out[j].Cells
		}
		return out[i].Num < out[j].Num
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
