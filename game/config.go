package game

import "github.com/pkg/errors"

// Config 模拟参数；所有参与方必须使用同一份，否则回放会分叉
type Config struct {
	GridSize     int `json:"gridSize"`
	CellWidth    int `json:"cellWidth"`    // 每格像素
	Speed        int `json:"speed"`        // 每 Tick 移动像素
	NewPlayerLag int `json:"newPlayerLag"` // 出生保护 Tick 数
	MaxPlayers   int `json:"maxPlayers"`
}

func DefaultConfig() Config {
	return Config{
		GridSize:     80,
		CellWidth:    40,
		Speed:        5,
		NewPlayerLag: 60,
		MaxPlayers:   81,
	}
}

// Validate 检查参数组合是否可用
func (c Config) Validate() error {
	switch {
	case c.GridSize < 3:
		return errors.Errorf("grid size must be at least 3, got %d", c.GridSize)
	case c.CellWidth <= 0:
		return errors.Errorf("cell width must be positive, got %d", c.CellWidth)
	case c.Speed <= 0:
		return errors.Errorf("speed must be positive, got %d", c.Speed)
	case c.CellWidth%c.Speed != 0:
		// 转向只在格子对齐时生效
		return errors.Errorf("cell width %d must be a multiple of speed %d", c.CellWidth, c.Speed)
	case c.NewPlayerLag < 0:
		return errors.Errorf("new player lag must not be negative, got %d", c.NewPlayerLag)
	case c.MaxPlayers <= 0 || c.MaxPlayers > 255:
		// 网格快照每格一个字节
		return errors.Errorf("max players must be in [1, 255], got %d", c.MaxPlayers)
	}
	return nil
}
