package game

// Heading 移动方向，数值与线上协议一致
type Heading int

const (
	Up Heading = iota
	Right
	Down
	Left
	Still
)

// Valid 是否为客户端可请求的方向，范围 [0, 4)
func (h Heading) Valid() bool {
	return h >= Up && h <= Left
}

func (h Heading) vertical() bool {
	return h == Up || h == Down
}

// Opposite 返回反方向，Still 的反方向仍为 Still
func (h Heading) Opposite() Heading {
	switch h {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	}
	return Still
}

func (h Heading) String() string {
	switch h {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	case Still:
		return "still"
	}
	return "invalid"
}

// CanTurn 转向规则：同向或垂直方向允许，沿同一轴反向一律拒绝
func CanTurn(cur, next Heading) bool {
	if !next.Valid() {
		return false
	}
	if cur == Still || next == cur {
		return true
	}
	return next.vertical() != cur.vertical()
}

// walk 从 (row, col) 沿 h 走 dist 格
func walk(row, col int, h Heading, dist int) (int, int) {
	switch h {
	case Up:
		row -= dist
	case Right:
		col += dist
	case Down:
		row += dist
	case Left:
		col -= dist
	}
	return row, col
}
