package config

import (
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"paperarena/game"
)

// Config 服务端运行参数
type Config struct {
	Addr          string
	Game          game.Config
	TickRate      int // Hz
	HistoryFrames int // 位置校验保留的帧数
	InputRate     float64
	InputBurst    int
	LogFile       string // 为空时输出到 stderr
	LogLevel      string
}

// Default 默认参数
func Default() Config {
	return Config{
		Addr:          ":8080",
		Game:          game.DefaultConfig(),
		TickRate:      60,
		HistoryFrames: 300,
		InputRate:     30,
		InputBurst:    10,
		LogFile:       "app.log",
		LogLevel:      "info",
	}
}

// TickInterval 每个 Tick 的时长
func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// Load 读取可选的 .env 文件，再用进程环境变量覆盖默认值。
// envFile 为空或不存在时忽略；已存在的环境变量不会被 .env 覆盖。
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, errors.Wrapf(err, "load %s", envFile)
		}
	}

	c := Default()
	if v, ok := os.LookupEnv("PAPER_ADDR"); ok {
		c.Addr = v
	}
	if v, ok := os.LookupEnv("LOG_FILE"); ok {
		c.LogFile = v
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		c.LogLevel = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PAPER_GRID_SIZE", &c.Game.GridSize},
		{"PAPER_CELL_WIDTH", &c.Game.CellWidth},
		{"PAPER_SPEED", &c.Game.Speed},
		{"PAPER_NEW_PLAYER_LAG", &c.Game.NewPlayerLag},
		{"PAPER_MAX_PLAYERS", &c.Game.MaxPlayers},
		{"PAPER_TICK_RATE", &c.TickRate},
		{"PAPER_HISTORY_FRAMES", &c.HistoryFrames},
		{"PAPER_INPUT_BURST", &c.InputBurst},
	}
	for _, it := range ints {
		v, ok := os.LookupEnv(it.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, errors.Wrapf(err, "parse %s", it.key)
		}
		*it.dst = n
	}
	if v, ok := os.LookupEnv("PAPER_INPUT_RATE"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, errors.Wrap(err, "parse PAPER_INPUT_RATE")
		}
		c.InputRate = f
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate 检查组合是否可用
func (c Config) Validate() error {
	if err := c.Game.Validate(); err != nil {
		return errors.Wrap(err, "game config")
	}
	switch {
	case c.Addr == "":
		return errors.New("listen address is empty")
	case c.TickRate <= 0 || c.TickRate > 1000:
		return errors.Errorf("tick rate must be in [1, 1000], got %d", c.TickRate)
	case c.HistoryFrames <= 0:
		return errors.Errorf("history frames must be positive, got %d", c.HistoryFrames)
	case c.InputRate <= 0:
		return errors.Errorf("input rate must be positive, got %v", c.InputRate)
	case c.InputBurst <= 0:
		return errors.Errorf("input burst must be positive, got %d", c.InputBurst)
	}
	return nil
}
