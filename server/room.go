package server

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"paperarena/config"
	"paperarena/game"
	"paperarena/protocol"
)

// Room 房间世界：权威状态维护在内存，单线程 Tick 推进。
// 除通道和原子字段外，所有字段只由 Tick 协程读写。
type Room struct {
	ID string

	engine    *game.Engine
	territory *Territory
	history   *History
	metrics   *RoomMetrics
	rng       *rand.Rand
	interval  time.Duration

	inputChan chan Input
	leaveChan chan Conn
	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool

	clients    map[string]*Client
	byNum      map[game.PlayerID]*Client
	pending    map[game.PlayerID]game.Heading // 本 Tick 内最后一次转向请求
	newPlayers []game.PlayerState
	moves      []protocol.Move
	result     game.FrameResult
	colors     []int
	nextNum    game.PlayerID

	maxPlayers atomic.Int32
	frame      atomic.Int64
	players    atomic.Int32
	sessions   atomic.Int32
}

// NewRoom 创建房间，初始化数据结构
func NewRoom(id string, cfg config.Config, seed int64) *Room {
	r := &Room{
		ID:        id,
		territory: NewTerritory(id, cfg.Game.GridSize),
		history:   NewHistory(cfg.HistoryFrames),
		metrics:   &RoomMetrics{},
		rng:       rand.New(rand.NewSource(seed)),
		interval:  cfg.TickInterval(),
		inputChan: make(chan Input, 256), // 足够缓冲，避免网络读阻塞影响 Tick
		leaveChan: make(chan Conn, 64),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		clients:   make(map[string]*Client),
		byNum:     make(map[game.PlayerID]*Client),
		pending:   make(map[game.PlayerID]game.Heading),
	}
	r.engine = game.NewEngine(cfg.Game, r.territory)
	r.maxPlayers.Store(int32(cfg.Game.MaxPlayers))
	r.colors = r.rng.Perm(cfg.Game.MaxPlayers)
	r.history.Push(0, nil)
	return r
}

// RequestJoin 请求加入；在 Tick 线程中处理，房间停止后直接丢弃
func (r *Room) RequestJoin(c Conn, hello protocol.Hello) {
	select {
	case r.inputChan <- Input{Kind: InputJoin, Conn: c, Hello: hello}:
	case <-r.stop:
	}
}

// OnInput 入站输入（不立即改变状态），仅记录意图，等下一次 Tick 处理
func (r *Room) OnInput(in Input) {
	// 不阻塞：输入拥塞时丢弃，保证 Tick 准时
	select {
	case r.inputChan <- in:
	default:
		r.metrics.IncChanFullDiscarded()
	}
}

// RequestLeave 请求在 Tick 线程中移除连接，避免并发改动房间状态
func (r *Room) RequestLeave(c Conn) {
	// 为保证移除一定生效，这里采用阻塞式写入；房间已停止则无需处理
	select {
	case r.leaveChan <- c:
	case <-r.stop:
	}
}

// ProcessInputs 处理当前帧的所有请求（非阻塞 drain），先处理输入再处理离开
func (r *Room) ProcessInputs() {
	for {
		select {
		case in := <-r.inputChan:
			r.handleInput(in)
			continue
		default:
		}
		break
	}
	for {
		select {
		case c := <-r.leaveChan:
			r.handleLeave(c)
		default:
			return
		}
	}
}

func (r *Room) handleInput(in Input) {
	switch in.Kind {
	case InputJoin:
		r.handleJoin(in.Conn, in.Hello)
	case InputHeading:
		r.handleHeading(in.Conn, in.Heading)
	case InputResync:
		r.handleResync(in.Conn)
	case InputVerify:
		r.handleVerify(in.Conn, in.Verify)
	}
}

func (r *Room) handleJoin(c Conn, hello protocol.Hello) {
	if _, ok := r.clients[c.ID()]; ok {
		sendTo(c, protocol.EventAck, protocol.Ack{Msg: "already joined"})
		return
	}
	client := &Client{Conn: c, Name: hello.Name, lastResync: -1}

	if hello.God {
		if !r.sendSnapshot(client) {
			return
		}
		r.clients[c.ID()] = client
		r.sessions.Store(int32(len(r.clients)))
		r.metrics.IncSpectator()
		Log.Infow("spectator joined", "room", r.ID, "conn", c.ID(), "frame", r.engine.Frame())
		return
	}

	num := r.nextNum
	name := hello.Name
	if name == "" {
		name = fmt.Sprintf("Player %d", num+1)
	}
	color, pooled := r.takeColor()
	p, err := r.engine.Admit(r.rng, game.PlayerState{
		Num:     num,
		Name:    name,
		Heading: game.Heading(r.rng.Intn(4)),
		Color:   color,
	}, int(r.maxPlayers.Load()))
	if err != nil {
		if pooled {
			r.colors = append(r.colors, color)
		}
		r.metrics.IncJoinRejected()
		Log.Warnw("join rejected", "room", r.ID, "conn", c.ID(), "err", err)
		sendTo(c, protocol.EventError, protocol.Error{Msg: err.Error()})
		c.Close()
		return
	}
	r.nextNum++
	client.Name = name
	client.Num = &num
	r.newPlayers = append(r.newPlayers, p.State())
	r.clients[c.ID()] = client
	r.byNum[num] = client
	r.sessions.Store(int32(len(r.clients)))
	r.players.Store(int32(r.engine.Len()))
	r.metrics.IncJoin()
	r.sendSnapshot(client)
	Log.Infow("player joined", "room", r.ID, "conn", c.ID(), "num", num, "name", name,
		"row", p.Row(), "col", p.Col(), "frame", r.engine.Frame())
}

// sendSnapshot 下发完整快照；同一帧内对同一连接最多一次，被丢弃的不计
func (r *Room) sendSnapshot(client *Client) bool {
	frame := r.engine.Frame()
	if client.lastResync == frame {
		return false
	}
	var num *game.PlayerID
	if client.Num != nil {
		if _, alive := r.engine.Player(*client.Num); alive {
			num = client.Num
		}
	}
	snap, err := protocol.Snapshot(r.engine, r.ID, num)
	if err != nil {
		Log.Errorw("snapshot failed", "room", r.ID, "err", err)
		sendTo(client.Conn, protocol.EventError, protocol.Error{Msg: "snapshot unavailable"})
		return false
	}
	if !sendTo(client.Conn, protocol.EventGame, snap) {
		return false
	}
	client.lastResync = frame
	return true
}

func (r *Room) handleHeading(c Conn, req protocol.HeadingRequest) {
	client, ok := r.clients[c.ID()]
	if !ok || !client.Playing() {
		r.metrics.IncRejected()
		sendTo(c, protocol.EventAck, protocol.Ack{Msg: "not playing"})
		return
	}
	h, err := req.Validate(r.engine.Frame())
	if err != nil {
		r.metrics.IncRejected()
		sendTo(c, protocol.EventAck, protocol.Ack{Msg: err.Error()})
		return
	}
	r.pending[*client.Num] = h
	r.metrics.IncAccepted()
	sendTo(c, protocol.EventAck, protocol.Ack{OK: true})
}

func (r *Room) handleResync(c Conn) {
	client, ok := r.clients[c.ID()]
	if !ok {
		return
	}
	if r.sendSnapshot(client) {
		r.metrics.IncResync()
		Log.Debugw("resync served", "room", r.ID, "conn", c.ID(), "frame", r.engine.Frame())
		return
	}
	// 本帧已发过或快照被丢弃，让客户端稍后重试
	sendTo(c, protocol.EventAck, protocol.Ack{Msg: protocol.MsgResyncRetry})
}

func (r *Room) handleVerify(c Conn, v protocol.Verify) {
	if _, ok := r.clients[c.ID()]; !ok {
		return
	}
	res := r.history.Verify(v)
	r.metrics.IncVerify(res.Desync)
	if res.Desync {
		Log.Warnw("client desync", "room", r.ID, "conn", c.ID(), "msg", res.Msg)
	}
	sendTo(c, protocol.EventVerified, res)
}

// handleLeave 断线：玩家立即标记死亡，在本 Tick 的结算中移除
func (r *Room) handleLeave(c Conn) {
	client, ok := r.clients[c.ID()]
	if !ok {
		return
	}
	delete(r.clients, c.ID())
	r.sessions.Store(int32(len(r.clients)))
	c.Close()
	if client.Num == nil {
		Log.Infow("spectator left", "room", r.ID, "conn", c.ID())
		return
	}
	delete(r.byNum, *client.Num)
	delete(r.pending, *client.Num)
	if p, ok := r.engine.Player(*client.Num); ok {
		p.Die()
	}
	Log.Infow("player left", "room", r.ID, "num", *client.Num, "name", client.Name)
}

// UpdateWorld 应用转向、推进一帧、记录位置历史
func (r *Room) UpdateWorld() {
	players := r.engine.Players()
	r.moves = r.moves[:0]
	for _, p := range players {
		if h, ok := r.pending[p.Num]; ok {
			// 反向请求静默忽略，保持原方向
			p.ChangeHeading(h)
		}
		r.moves = append(r.moves, protocol.Move{Num: p.Num, Heading: p.Heading, Left: p.Dead()})
	}
	clear(r.pending)

	r.result = r.engine.Step()
	r.frame.Store(int64(r.engine.Frame()))
	r.players.Store(int32(r.engine.Len()))
	r.history.Push(r.engine.Frame(), r.engine.Players())
}

// BroadcastDelta 广播本帧增量（每种编码只编码一次），然后通知并断开死亡玩家
func (r *Room) BroadcastDelta() {
	delta := protocol.Frame{
		Frame:      r.engine.Frame(),
		Moves:      r.moves,
		NewPlayers: r.newPlayers,
	}
	encoded := make(map[string][]byte, 2)
	for _, client := range r.clients {
		codec := client.Conn.Codec()
		b, ok := encoded[codec.Name()]
		if !ok {
			var err error
			b, err = codec.Encode(protocol.EventNotifyFrame, delta)
			if err != nil {
				Log.Errorw("encode frame", "room", r.ID, "codec", codec.Name(), "err", err)
				continue
			}
			encoded[codec.Name()] = b
		}
		if !client.Conn.Enqueue(b) {
			Log.Debugw("frame dropped for slow client", "room", r.ID, "conn", client.Conn.ID(), "frame", delta.Frame)
		}
	}
	r.reapDead()
}

// reapDead 回收颜色，向仍在线的死亡玩家发送 dead 并断开
func (r *Room) reapDead() {
	if len(r.result.Dead) == 0 {
		return
	}
	kills := 0
	for _, k := range r.result.Kills {
		if k.Killer != k.Victim {
			kills++
		}
	}
	r.metrics.AddDeaths(len(r.result.Dead), kills)

	for _, p := range r.result.Dead {
		r.colors = append(r.colors, p.Color)
		killer, killed := r.result.KillerOf(p.Num)
		Log.Infow("player died", "room", r.ID, "num", p.Num, "name", p.Name,
			"killed", killed, "killer", killer, "frame", r.engine.Frame())

		client, ok := r.byNum[p.Num]
		if !ok {
			continue
		}
		delete(r.byNum, p.Num)
		delete(r.clients, client.Conn.ID())
		dead := protocol.Dead{}
		if killed {
			dead.Killer = &killer
		}
		sendTo(client.Conn, protocol.EventDead, dead)
		client.Conn.Close()
	}
	r.sessions.Store(int32(len(r.clients)))
}

// takeColor 从颜色池取一个；池空时返回 0, false
func (r *Room) takeColor() (int, bool) {
	if len(r.colors) == 0 {
		return 0, false
	}
	c := r.colors[0]
	r.colors = r.colors[1:]
	return c, true
}

// SetMaxPlayers 热更新人数上限，不超过引擎配置
func (r *Room) SetMaxPlayers(n int) error {
	limit := r.engine.Config().MaxPlayers
	if n <= 0 || n > limit {
		return errors.Errorf("maxPlayers must be in [1, %d], got %d", limit, n)
	}
	r.maxPlayers.Store(int32(n))
	Log.Infow("config updated", "room", r.ID, "maxPlayers", n)
	return nil
}

// RoomInfo 管理接口用的房间概况
type RoomInfo struct {
	ID         string  `json:"id"`
	Frame      int64   `json:"frame"`
	Players    int32   `json:"players"`
	Sessions   int32   `json:"sessions"`
	MaxPlayers int32   `json:"maxPlayers"`
	Filled     int     `json:"filled"`
	Leaders    []Score `json:"leaders"`
}

func (r *Room) Info() RoomInfo {
	return RoomInfo{
		ID:         r.ID,
		Frame:      r.frame.Load(),
		Players:    r.players.Load(),
		Sessions:   r.sessions.Load(),
		MaxPlayers: r.maxPlayers.Load(),
		Filled:     r.territory.Filled(),
		Leaders:    r.territory.Leaderboard(5),
	}
}

// GameConfig 房间的物理参数，运行期间不变
func (r *Room) GameConfig() game.Config {
	cfg := r.engine.Config()
	cfg.MaxPlayers = int(r.maxPlayers.Load())
	return cfg
}

func (r *Room) Metrics() *RoomMetrics { return r.metrics }
