package protocol

import (
	"github.com/pkg/errors"

	"paperarena/game"
)

// 客户端 → 服务端
const (
	EventHello        = "hello"
	EventFrame        = "frame"
	EventRequestFrame = "requestFrame"
	EventVerify       = "verify"
)

// 服务端 → 客户端
const (
	EventGame        = "game"
	EventNotifyFrame = "notifyFrame"
	EventAck         = "ack"
	EventVerified    = "verified"
	EventDead        = "dead"
	EventError       = "error"
)

var (
	ErrInvalidHeading = errors.New("protocol: heading must be an integer in [0, 4)")
	ErrInvalidFrame   = errors.New("protocol: frame must be a non-negative integer not after the current frame")
)

// Hello 加入房间；God 为 true 时以观战者身份加入
type Hello struct {
	Name string `json:"name,omitempty"`
	God  bool   `json:"god,omitempty"`
}

// Game 加入响应，也是重同步时下发的完整快照
type Game struct {
	Num     *game.PlayerID     `json:"num,omitempty"` // 观战者为空
	GameID  string             `json:"gameid"`
	Frame   int                `json:"frame"`
	Config  game.Config        `json:"config"`
	Players []game.PlayerState `json:"players"`
	Grid    []byte             `json:"grid"`
}

// Move 一帧内某个玩家的方向，Left 表示该玩家已断线
type Move struct {
	Num     game.PlayerID `json:"num"`
	Heading game.Heading  `json:"heading"`
	Left    bool          `json:"left,omitempty"`
}

// Frame 每 Tick 广播的增量
type Frame struct {
	Frame      int                `json:"frame"`
	Moves      []Move             `json:"moves"`
	NewPlayers []game.PlayerState `json:"newPlayers,omitempty"`
}

// HeadingRequest 客户端的转向请求；字段用指针以区分缺失和零值
type HeadingRequest struct {
	Frame   *int `json:"frame"`
	Heading *int `json:"heading"`
}

// Validate 校验请求，current 为服务端当前帧号
func (r HeadingRequest) Validate(current int) (game.Heading, error) {
	if r.Frame == nil || *r.Frame < 0 || *r.Frame > current {
		return game.Still, ErrInvalidFrame
	}
	if r.Heading == nil {
		return game.Still, ErrInvalidHeading
	}
	h := game.Heading(*r.Heading)
	if !h.Valid() {
		return game.Still, ErrInvalidHeading
	}
	return h, nil
}

// MsgResyncRetry 重同步请求本帧无法满足时 Ack 携带的消息，客户端应重新请求
const MsgResyncRetry = "resync retry"

type Ack struct {
	OK  bool   `json:"ok"`
	Msg string `json:"msg,omitempty"`
}

// Location 校验用的位置记录：[posX, posY, waitLag]
type Location [3]float64

// Verify 客户端请求核对某一帧所有玩家的位置
type Verify struct {
	Frame   int                        `json:"frame"`
	Players map[game.PlayerID]Location `json:"players"`
}

type Verified struct {
	OK     bool   `json:"ok"`
	Desync bool   `json:"desync"`
	Msg    string `json:"msg,omitempty"`
}

// Dead 玩家死亡通知，Killer 为空表示出界或断线
type Dead struct {
	Killer *game.PlayerID `json:"killer,omitempty"`
}

type Error struct {
	Msg string `json:"msg"`
}
