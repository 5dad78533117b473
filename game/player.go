package game

import "math"

// PlayerState 玩家的可序列化快照，也是线上的 PlayerRecord
type PlayerState struct {
	Num     PlayerID   `json:"num"`
	Name    string     `json:"name"`
	PosX    float64    `json:"posX"`
	PosY    float64    `json:"posY"`
	Heading Heading    `json:"heading"`           // 当前实际方向
	Pending *Heading   `json:"pending,omitempty"` // 已请求但尚未在格点生效的方向
	WaitLag int        `json:"waitLag"`
	Color   int        `json:"color"`
	Dead    bool       `json:"dead,omitempty"`
	Tail    *TailState `json:"tail,omitempty"`
}

// Player 模拟中的玩家
type Player struct {
	Num     PlayerID
	Name    string
	PosX    float64
	PosY    float64
	Heading Heading // 请求方向，下一次对齐格点时生效
	WaitLag int
	Color   int

	currentHeading Heading
	dead           bool
	tail           Tail
	cellWidth      float64
	speed          float64
	lag            int
}

// NewPlayer 按配置和快照创建玩家；快照不带尾巴时以当前格为锚点
func NewPlayer(cfg Config, st PlayerState) *Player {
	p := &Player{
		Num:            st.Num,
		Name:           st.Name,
		PosX:           st.PosX,
		PosY:           st.PosY,
		Heading:        st.Heading,
		WaitLag:        st.WaitLag,
		Color:          st.Color,
		currentHeading: st.Heading,
		dead:           st.Dead,
		cellWidth:      float64(cfg.CellWidth),
		speed:          float64(cfg.Speed),
		lag:            cfg.NewPlayerLag,
	}
	if st.Pending != nil {
		p.Heading = *st.Pending
	}
	if st.Tail != nil {
		p.tail.Restore(st.Tail)
	} else {
		p.tail.Reposition(p.Row(), p.Col())
	}
	return p
}

// State 导出快照
func (p *Player) State() PlayerState {
	st := PlayerState{
		Num:     p.Num,
		Name:    p.Name,
		PosX:    p.PosX,
		PosY:    p.PosY,
		Heading: p.currentHeading,
		WaitLag: p.WaitLag,
		Color:   p.Color,
		Dead:    p.dead,
		Tail:    p.tail.State(),
	}
	if p.Heading != p.currentHeading {
		h := p.Heading
		st.Pending = &h
	}
	return st
}

func (p *Player) CurrentHeading() Heading { return p.currentHeading }

func (p *Player) Dead() bool { return p.dead }

// Die 死亡是单向的
func (p *Player) Die() { p.dead = true }

func (p *Player) Tail() *Tail { return &p.tail }

// nearest 朝运动方向取整：正向用 ceil，否则 floor，保证越界判定一致
func nearest(positive bool, v float64) int {
	if positive {
		return int(math.Ceil(v))
	}
	return int(math.Floor(v))
}

func (p *Player) Row() int {
	return nearest(p.currentHeading == Down, p.PosY/p.cellWidth)
}

func (p *Player) Col() int {
	return nearest(p.currentHeading == Right, p.PosX/p.cellWidth)
}

func (p *Player) aligned() bool {
	return math.Mod(p.PosX, p.cellWidth) == 0 && math.Mod(p.PosY, p.cellWidth) == 0
}

// ChangeHeading 按转向规则请求新方向，被拒绝时返回 false
func (p *Player) ChangeHeading(h Heading) bool {
	if p.dead || !CanTurn(p.currentHeading, h) {
		return false
	}
	p.Heading = h
	return true
}

// Exposure 当前运动轴上偏离格点的距离
func (p *Player) Exposure() float64 {
	xDest := float64(p.Col()) * p.cellWidth
	yDest := float64(p.Row()) * p.cellWidth
	if p.PosX == xDest {
		return math.Abs(p.PosY - yDest)
	}
	return math.Abs(p.PosX - xDest)
}

// Move 推进一个 Tick，返回本次围地新占领的格子数。
// 出界即死亡；进入新格子时把上一格接到尾巴上，所以玩家当前所在格不在尾巴里，
// 走回自己走过的尾巴会被碰撞检测判为撞上自己。
// 回到自己领地时若尾巴非空则先围地再清空尾巴。
func (p *Player) Move(g *Grid) int {
	if p.dead {
		return 0
	}
	if p.WaitLag < p.lag {
		p.WaitLag++
		return 0
	}
	if p.aligned() {
		p.currentHeading = p.Heading
	}
	prevRow, prevCol := p.Row(), p.Col()
	switch p.currentHeading {
	case Up:
		p.PosY -= p.speed
	case Right:
		p.PosX += p.speed
	case Down:
		p.PosY += p.speed
	case Left:
		p.PosX -= p.speed
	default:
		return 0
	}

	row, col := p.Row(), p.Col()
	if g.IsOutOfBounds(row, col) {
		p.dead = true
		return 0
	}
	if row == prevRow && col == prevCol {
		return 0
	}

	p.tail.Extend(prevRow, prevCol)
	if g.Get(row, col) != p.Num {
		return 0
	}
	claimed := 0
	if p.tail.Len() > 0 {
		claimed = p.tail.Enclose(g, p.Num)
	}
	p.tail.Reposition(row, col)
	return claimed
}

// InitPlayer 出生时占领以玩家为中心的 3×3
func InitPlayer(g *Grid, p *Player) {
	row, col := p.Row(), p.Col()
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			g.Set(row+dr, col+dc, p.Num)
		}
	}
}
