package game

// PlayerID 玩家编号，由服务端分配，房间内唯一
type PlayerID int32

// NoOwner 表示格子无人占领
const NoOwner PlayerID = -1

// ChangeFunc 格子归属变化回调：(行, 列, 原归属, 新归属)
type ChangeFunc func(row, col int, before, after PlayerID)

// Grid size×size 的领地归属表，格子只保存玩家编号，不保存玩家引用
type Grid struct {
	size     int
	cells    []PlayerID
	filled   int
	onChange ChangeFunc
}

// NewGrid 创建空网格，onChange 可为 nil
func NewGrid(size int, onChange ChangeFunc) *Grid {
	g := &Grid{
		size:     size,
		cells:    make([]PlayerID, size*size),
		onChange: onChange,
	}
	g.Reset()
	return g
}

func (g *Grid) Size() int { return g.size }

// Filled 已被占领的格子数
func (g *Grid) Filled() int { return g.filled }

func (g *Grid) IsOutOfBounds(row, col int) bool {
	return row < 0 || col < 0 || row >= g.size || col >= g.size
}

// Get 越界返回 NoOwner
func (g *Grid) Get(row, col int) PlayerID {
	if g.IsOutOfBounds(row, col) {
		return NoOwner
	}
	return g.cells[row*g.size+col]
}

// Set 覆盖归属；只有归属真正变化时才触发回调
func (g *Grid) Set(row, col int, owner PlayerID) {
	if g.IsOutOfBounds(row, col) {
		return
	}
	idx := row*g.size + col
	before := g.cells[idx]
	if before == owner {
		return
	}
	g.cells[idx] = owner
	if (before == NoOwner) != (owner == NoOwner) {
		if owner == NoOwner {
			g.filled--
		} else {
			g.filled++
		}
	}
	if g.onChange != nil {
		g.onChange(row, col, before, owner)
	}
}

// Reset 清空全部格子与计数，不触发回调
func (g *Grid) Reset() {
	for i := range g.cells {
		g.cells[i] = NoOwner
	}
	g.filled = 0
}

// SetOnChange 替换变化回调
func (g *Grid) SetOnChange(fn ChangeFunc) {
	g.onChange = fn
}

// Count 统计某玩家拥有的格子数
func (g *Grid) Count(owner PlayerID) int {
	n := 0
	for _, c := range g.cells {
		if c == owner {
			n++
		}
	}
	return n
}

// ClearOwners 将属于 owners 的所有格子置为无主
func (g *Grid) ClearOwners(owners map[PlayerID]bool) {
	if len(owners) == 0 {
		return
	}
	for r := 0; r < g.size; r++ {
		for c := 0; c < g.size; c++ {
			if owner := g.cells[r*g.size+c]; owner != NoOwner && owners[owner] {
				g.Set(r, c, NoOwner)
			}
		}
	}
}
