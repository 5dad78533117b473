package game

import "math/rand"

// Engine 持有一局游戏的全部模拟状态：网格、按加入顺序排列的玩家表、帧号。
// 非并发安全，只能由一个 goroutine（服务端 Tick 或客户端事件循环）驱动。
type Engine struct {
	cfg      Config
	grid     *Grid
	players  []*Player
	byNum    map[PlayerID]*Player
	observer Observer
	frame    int
}

// NewEngine 创建引擎，obs 为 nil 时使用 NopObserver
func NewEngine(cfg Config, obs Observer) *Engine {
	e := &Engine{
		cfg:   cfg,
		byNum: make(map[PlayerID]*Player),
	}
	e.SetObserver(obs)
	e.grid = NewGrid(cfg.GridSize, func(row, col int, before, after PlayerID) {
		e.observer.UpdateGrid(row, col, before, after)
	})
	return e
}

func (e *Engine) SetObserver(obs Observer) {
	if obs == nil {
		obs = NopObserver{}
	}
	e.observer = obs
}

func (e *Engine) Observer() Observer { return e.observer }

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Grid() *Grid { return e.grid }

func (e *Engine) Frame() int { return e.frame }

func (e *Engine) SetFrame(frame int) { e.frame = frame }

// Players 返回玩家表副本，顺序即结算顺序
func (e *Engine) Players() []*Player {
	out := make([]*Player, len(e.players))
	copy(out, e.players)
	return out
}

func (e *Engine) Len() int { return len(e.players) }

func (e *Engine) Player(num PlayerID) (*Player, bool) {
	p, ok := e.byNum[num]
	return p, ok
}

// AddPlayer 按快照加入玩家但不占领土地；编号已存在时返回已有玩家和 false
func (e *Engine) AddPlayer(st PlayerState) (*Player, bool) {
	if p, ok := e.byNum[st.Num]; ok {
		return p, false
	}
	p := NewPlayer(e.cfg, st)
	e.players = append(e.players, p)
	e.byNum[p.Num] = p
	e.observer.AddPlayer(p)
	return p, true
}

// Spawn 加入新玩家并占领出生点周围 3×3
func (e *Engine) Spawn(st PlayerState) (*Player, bool) {
	p, added := e.AddPlayer(st)
	if added {
		InitPlayer(e.grid, p)
	}
	return p, added
}

// Admit 服务端入口：检查人数上限、挑出生点，然后 Spawn。
// 失败时不产生任何状态变化。
func (e *Engine) Admit(rng *rand.Rand, st PlayerState, maxPlayers int) (*Player, error) {
	if maxPlayers <= 0 || maxPlayers > e.cfg.MaxPlayers {
		maxPlayers = e.cfg.MaxPlayers
	}
	if len(e.players) >= maxPlayers {
		return nil, ErrRoomFull
	}
	row, col, ok := FindEmpty(e.grid, rng)
	if !ok {
		return nil, ErrNoSpawn
	}
	st.PosX = float64(col * e.cfg.CellWidth)
	st.PosY = float64(row * e.cfg.CellWidth)
	st.Tail = nil
	p, _ := e.Spawn(st)
	return p, nil
}

// Step 推进一帧：移动、碰撞结算、清理死亡玩家，帧号加一
func (e *Engine) Step() FrameResult {
	res := UpdateFrame(e.grid, e.players)
	if len(res.Dead) > 0 {
		e.players = e.players[:0]
		for _, p := range res.Alive {
			e.players = append(e.players, p)
		}
		for _, p := range res.Dead {
			delete(e.byNum, p.Num)
			e.observer.RemovePlayer(p)
		}
	}
	e.frame++
	e.observer.Update(e.frame)
	return res
}

// Reset 清空网格与玩家，帧号归零
func (e *Engine) Reset() {
	e.grid.Reset()
	e.players = nil
	e.byNum = make(map[PlayerID]*Player)
	e.frame = 0
}
