package game

// Run 尾巴中的一段直线：从 (Row, Col) 沿 Dir 走 Len 格，两端都算在尾巴上
type Run struct {
	Dir Heading `json:"dir"`
	Len int     `json:"len"`
	Row int     `json:"row"`
	Col int     `json:"col"`
}

func (r Run) covers(row, col int) bool {
	switch r.Dir {
	case Up:
		return col == r.Col && row <= r.Row && row >= r.Row-r.Len
	case Down:
		return col == r.Col && row >= r.Row && row <= r.Row+r.Len
	case Right:
		return row == r.Row && col >= r.Col && col <= r.Col+r.Len
	case Left:
		return row == r.Row && col <= r.Col && col >= r.Col-r.Len
	}
	return false
}

// TailState 尾巴的可序列化形式
type TailState struct {
	AnchorRow int   `json:"anchorRow"`
	AnchorCol int   `json:"anchorCol"`
	HeadRow   int   `json:"headRow"`
	HeadCol   int   `json:"headCol"`
	Runs      []Run `json:"runs,omitempty"`
}

// Tail 玩家离开领地后走过的路径（游程编码）
// anchor 为最后一次离开领地的格子，head 为玩家上一个所在的格子，始终落后玩家一格
type Tail struct {
	runs      []Run
	anchorRow int
	anchorCol int
	headRow   int
	headCol   int
}

// Len 游程段数
func (t *Tail) Len() int { return len(t.runs) }

// Runs 返回游程副本
func (t *Tail) Runs() []Run {
	out := make([]Run, len(t.runs))
	copy(out, t.runs)
	return out
}

func (t *Tail) Anchor() (row, col int) { return t.anchorRow, t.anchorCol }

func (t *Tail) Head() (row, col int) { return t.headRow, t.headCol }

// AddRun 追加 count 格；与上一段同向时合并，count <= 0 忽略
func (t *Tail) AddRun(dir Heading, count int) {
	if count <= 0 || !dir.Valid() {
		return
	}
	if n := len(t.runs); n > 0 && t.runs[n-1].Dir == dir {
		t.runs[n-1].Len += count
	} else {
		t.runs = append(t.runs, Run{Dir: dir, Len: count, Row: t.headRow, Col: t.headCol})
	}
	t.headRow, t.headCol = walk(t.headRow, t.headCol, dir, count)
}

// Extend 把 (row, col) 接到尾巴末端，该格必须与头部同行或同列；与头部重合时忽略
func (t *Tail) Extend(row, col int) {
	switch {
	case row == t.headRow && col > t.headCol:
		t.AddRun(Right, col-t.headCol)
	case row == t.headRow && col < t.headCol:
		t.AddRun(Left, t.headCol-col)
	case col == t.headCol && row > t.headRow:
		t.AddRun(Down, row-t.headRow)
	case col == t.headCol && row < t.headRow:
		t.AddRun(Up, t.headRow-row)
	}
}

// Reposition 把锚点和头部移到 (row, col)，并取走已有的游程
func (t *Tail) Reposition(row, col int) []Run {
	t.anchorRow, t.anchorCol = row, col
	t.headRow, t.headCol = row, col
	ret := t.runs
	t.runs = nil
	return ret
}

// OnTail 点是否落在任一游程上（不排除锚点和头部）
func (t *Tail) OnTail(row, col int) bool {
	for _, r := range t.runs {
		if r.covers(row, col) {
			return true
		}
	}
	return false
}

// Hits 碰撞检测：当前头部和锚点不算撞上
func (t *Tail) Hits(row, col int) bool {
	if row == t.headRow && col == t.headCol {
		return false
	}
	if row == t.anchorRow && col == t.anchorCol {
		return false
	}
	return t.OnTail(row, col)
}

// State 导出尾巴状态
func (t *Tail) State() *TailState {
	return &TailState{
		AnchorRow: t.anchorRow,
		AnchorCol: t.anchorCol,
		HeadRow:   t.headRow,
		HeadCol:   t.headCol,
		Runs:      t.Runs(),
	}
}

// Restore 从 TailState 恢复
func (t *Tail) Restore(s *TailState) {
	t.anchorRow, t.anchorCol = s.AnchorRow, s.AnchorCol
	t.headRow, t.headCol = s.HeadRow, s.HeadCol
	t.runs = nil
	if len(s.Runs) > 0 {
		t.runs = make([]Run, len(s.Runs))
		copy(t.runs, s.Runs)
	}
}
