package game

type cell struct {
	row, col int
}

func (c cell) neighbors() [4]cell {
	return [4]cell{
		{c.row + 1, c.col},
		{c.row - 1, c.col},
		{c.row, c.col + 1},
		{c.row, c.col - 1},
	}
}

// Enclose 把尾巴本身以及尾巴围住的区域划给 owner，返回新占领的格子数。
// 从锚点出发沿尾巴 BFS，对每个尾巴格的四邻域做 floodFrom。
func (t *Tail) Enclose(g *Grid, owner PlayerID) int {
	if len(t.runs) == 0 {
		return 0
	}
	size := g.Size()
	visited := make([]bool, size*size)
	claimed := 0

	queue := []cell{{t.anchorRow, t.anchorCol}}
	for head := 0; head < len(queue); head++ {
		c := queue[head]
		if g.IsOutOfBounds(c.row, c.col) || visited[c.row*size+c.col] {
			continue
		}
		if !t.OnTail(c.row, c.col) {
			continue
		}
		visited[c.row*size+c.col] = true
		if g.Get(c.row, c.col) != owner {
			g.Set(c.row, c.col, owner)
			claimed++
		}
		for _, n := range c.neighbors() {
			claimed += t.floodFrom(g, owner, n.row, n.col, visited)
		}
		nb := c.neighbors()
		queue = append(queue, nb[:]...)
	}
	return claimed
}

// floodFrom 从 (row, col) 开始 BFS，遇到边界外、已访问、尾巴、自己的领地即停。
// 只要有一条路径走出网格，整片区域就不算被包围，不占领。
func (t *Tail) floodFrom(g *Grid, owner PlayerID, row, col int, visited []bool) int {
	size := g.Size()
	if g.IsOutOfBounds(row, col) || visited[row*size+col] || t.OnTail(row, col) || g.Get(row, col) == owner {
		return 0
	}

	surrounded := true
	var filled []cell
	queue := []cell{{row, col}}
	for head := 0; head < len(queue); head++ {
		c := queue[head]
		if g.IsOutOfBounds(c.row, c.col) {
			surrounded = false
			continue
		}
		idx := c.row*size + c.col
		if visited[idx] || t.OnTail(c.row, c.col) || g.Get(c.row, c.col) == owner {
			continue
		}
		visited[idx] = true
		if surrounded {
			filled = append(filled, c)
		}
		nb := c.neighbors()
		queue = append(queue, nb[:]...)
	}
	if !surrounded {
		return 0
	}
	for _, c := range filled {
		g.Set(c.row, c.col, owner)
	}
	return len(filled)
}
