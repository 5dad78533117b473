package replica

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"paperarena/game"
	"paperarena/protocol"
)

// State 连接状态：Disconnected → Joining → Active → (Dead | Disconnected)
type State int

const (
	Disconnected State = iota
	Joining
	Active
	Dead
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Joining:
		return "joining"
	case Active:
		return "active"
	case Dead:
		return "dead"
	}
	return "unknown"
}

var (
	// ErrDesync 收到的帧与本地帧号不连续，已请求重同步
	ErrDesync = errors.New("replica: frame gap, resync requested")
	// ErrJoinRejected 服务端拒绝加入
	ErrJoinRejected = errors.New("replica: join rejected")
	ErrNotConnected = errors.New("replica: not connected")
)

const (
	// resyncRetryFrames 请求快照后又收到这么多帧仍未得到快照，则重新请求
	resyncRetryFrames = 30
	// maxCachedFrames 等待快照期间最多缓存的帧数，超出时丢弃最旧的
	maxCachedFrames = 120
)

// Transport 事件通道，由 WSTransport 或测试桩实现
type Transport interface {
	Send(event string, payload any) error
	Close() error
}

// Replica 非权威的参与方：按服务端下发的增量严格按序重放模拟。
// 方法可并发调用，内部一把锁串行化。
type Replica struct {
	mu sync.Mutex

	transport Transport
	observer  game.Observer
	log       *zap.SugaredLogger

	state      State
	god        bool
	gameID     string
	engine     *game.Engine
	user       *game.Player
	kills      int
	killer     *game.PlayerID
	requesting int // 正在请求快照时的本地帧号，-1 表示没有
	waited     int // 上次请求快照后收到的帧数
	cache      map[int]protocol.Frame
}

// New 创建副本；obs、log 可为 nil。
// 观察者回调在锁内执行，回调里不要再调用 Replica 的方法。
func New(t Transport, obs game.Observer, log *zap.SugaredLogger) *Replica {
	if obs == nil {
		obs = game.NopObserver{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Replica{
		transport:  t,
		observer:   obs,
		log:        log,
		requesting: -1,
		cache:      make(map[int]protocol.Frame),
	}
}

// Join 发送 hello；god 为 true 时只观战
func (r *Replica) Join(name string, god bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Disconnected {
		return errors.Errorf("replica: join while %s", r.state)
	}
	if err := r.transport.Send(protocol.EventHello, protocol.Hello{Name: name, God: god}); err != nil {
		return errors.Wrap(err, "send hello")
	}
	r.god = god
	r.state = Joining
	return nil
}

// HandleEvent 分发一个收到的信封
func (r *Replica) HandleEvent(env protocol.Envelope) error {
	switch env.T {
	case protocol.EventGame:
		g, err := protocol.DecodePayload[protocol.Game](env)
		if err != nil {
			return err
		}
		return r.HandleGame(g)
	case protocol.EventNotifyFrame:
		f, err := protocol.DecodePayload[protocol.Frame](env)
		if err != nil {
			return err
		}
		return r.HandleFrame(f)
	case protocol.EventDead:
		d, err := protocol.DecodePayload[protocol.Dead](env)
		if err != nil {
			return err
		}
		r.handleDead(d)
		return nil
	case protocol.EventAck:
		a, err := protocol.DecodePayload[protocol.Ack](env)
		if err != nil {
			return err
		}
		if !a.OK && a.Msg == protocol.MsgResyncRetry {
			r.mu.Lock()
			// 下一个不连续的帧会重新请求
			r.requesting = -1
			r.mu.Unlock()
			r.log.Debugw("resync deferred by server")
			return nil
		}
		if !a.OK {
			r.log.Warnw("heading rejected", "msg", a.Msg)
		}
		return nil
	case protocol.EventVerified:
		v, err := protocol.DecodePayload[protocol.Verified](env)
		if err != nil {
			return err
		}
		return r.handleVerified(v)
	case protocol.EventError:
		e, err := protocol.DecodePayload[protocol.Error](env)
		if err != nil {
			return err
		}
		r.mu.Lock()
		joining := r.state == Joining
		if joining {
			r.state = Disconnected
		}
		r.mu.Unlock()
		if joining {
			return errors.Wrap(ErrJoinRejected, e.Msg)
		}
		r.log.Warnw("server error", "msg", e.Msg)
		return nil
	}
	r.log.Debugw("ignoring event", "event", env.T)
	return nil
}

// HandleGame 用完整快照重建本地状态，然后重放缓存中更新的帧
func (r *Replica) HandleGame(g protocol.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Disconnected {
		return ErrNotConnected
	}

	engine, err := protocol.Restore(g, r.observer)
	if err != nil {
		return errors.Wrap(err, "restore snapshot")
	}
	r.engine = engine
	r.gameID = g.GameID
	r.user = nil
	if g.Num != nil {
		if p, ok := engine.Player(*g.Num); ok {
			r.user = p
		}
	}
	if r.user != nil {
		r.observer.SetUser(r.user)
	}
	if r.state == Joining {
		r.state = Active
	}
	r.requesting = -1
	r.waited = 0
	r.observer.Paint()
	r.log.Infow("snapshot loaded", "game", g.GameID, "frame", g.Frame, "players", len(g.Players), "god", r.god)
	return r.drainCache()
}

// HandleFrame 严格按序应用增量：
// 早于本地帧的丢弃；超前的缓存并请求重同步；连续的立即应用并继续消化缓存。
// 等待快照期间缓存有上限，迟迟等不到快照会重新请求。
func (r *Replica) HandleFrame(f protocol.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.engine == nil || r.requesting != -1 {
		r.cacheFrame(f)
		r.waited++
		if r.waited < resyncRetryFrames || r.state == Disconnected {
			return nil
		}
		r.log.Warnw("snapshot overdue, requesting again", "waited", r.waited, "cached", len(r.cache))
		r.requesting = -1
		return r.requestResync()
	}
	frame := r.engine.Frame()
	switch {
	case f.Frame-1 < frame:
		r.log.Debugw("stale frame dropped", "frame", f.Frame, "local", frame)
		return nil
	case f.Frame-1 > frame:
		r.cacheFrame(f)
		if err := r.requestResync(); err != nil {
			return err
		}
		return errors.Wrapf(ErrDesync, "got frame %d, expecting %d", f.Frame, frame+1)
	}
	r.apply(f)
	return r.drainCache()
}

// cacheFrame 缓存一帧，超出上限时丢弃帧号最小的；快照总是比它们新
func (r *Replica) cacheFrame(f protocol.Frame) {
	r.cache[f.Frame] = f
	for len(r.cache) > maxCachedFrames {
		oldest := f.Frame
		for n := range r.cache {
			if n < oldest {
				oldest = n
			}
		}
		delete(r.cache, oldest)
	}
}

func (r *Replica) drainCache() error {
	if r.engine == nil {
		return nil
	}
	for n := range r.cache {
		if n <= r.engine.Frame() {
			delete(r.cache, n)
		}
	}
	for {
		f, ok := r.cache[r.engine.Frame()+1]
		if !ok {
			break
		}
		delete(r.cache, f.Frame)
		r.apply(f)
	}
	if len(r.cache) > 0 {
		// 仍有空洞，只能再要一次快照
		return r.requestResync()
	}
	return nil
}

func (r *Replica) apply(f protocol.Frame) {
	for _, st := range f.NewPlayers {
		if _, ok := r.engine.Player(st.Num); ok {
			continue
		}
		r.engine.Spawn(st)
	}
	for _, m := range f.Moves {
		p, ok := r.engine.Player(m.Num)
		if !ok {
			continue
		}
		if m.Left {
			p.Die()
		}
		p.Heading = m.Heading
	}

	res := r.engine.Step()
	for _, k := range res.Kills {
		if r.user != nil && k.Killer == r.user.Num && k.Victim != k.Killer {
			r.kills++
		}
	}
	if r.user != nil && r.user.Dead() && r.state == Active {
		r.state = Dead
		if killer, ok := res.KillerOf(r.user.Num); ok {
			r.killer = &killer
		}
		r.log.Infow("user died", "frame", r.engine.Frame(), "kills", r.kills)
	}
	r.observer.Paint()
}

func (r *Replica) handleDead(d protocol.Dead) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Active || r.state == Joining {
		r.state = Dead
	}
	if d.Killer != nil {
		r.killer = d.Killer
	}
}

func (r *Replica) handleVerified(v protocol.Verified) error {
	if v.OK {
		return nil
	}
	r.log.Warnw("verify failed", "desync", v.Desync, "msg", v.Msg)
	if !v.Desync {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requestResync()
}

// ChangeHeading 按转向规则向服务端请求新方向，本地不直接修改，等待增量回放。
// 没有玩家、已死亡或请求反向时返回 false。
func (r *Replica) ChangeHeading(h game.Heading) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.user == nil || r.user.Dead() || r.state != Active {
		return false, nil
	}
	if !game.CanTurn(r.user.CurrentHeading(), h) {
		return false, nil
	}
	frame, heading := r.engine.Frame(), int(h)
	err := r.transport.Send(protocol.EventFrame, protocol.HeadingRequest{Frame: &frame, Heading: &heading})
	if err != nil {
		return false, errors.Wrap(err, "send heading")
	}
	return true, nil
}

// RequestResync 请求完整快照，同一时间只发一次
func (r *Replica) RequestResync() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requestResync()
}

func (r *Replica) requestResync() error {
	if r.requesting != -1 {
		return nil
	}
	frame := 0
	if r.engine != nil {
		frame = r.engine.Frame()
	}
	if err := r.transport.Send(protocol.EventRequestFrame, struct{}{}); err != nil {
		return errors.Wrap(err, "request frame")
	}
	r.requesting = frame
	r.waited = 0
	r.log.Infow("resync requested", "frame", frame)
	return nil
}

// SendVerify 把本地所有玩家当前帧的位置发给服务端核对
func (r *Replica) SendVerify() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine == nil {
		return ErrNotConnected
	}
	locs := make(map[game.PlayerID]protocol.Location, r.engine.Len())
	for _, p := range r.engine.Players() {
		locs[p.Num] = protocol.Location{p.PosX, p.PosY, float64(p.WaitLag)}
	}
	return r.transport.Send(protocol.EventVerify, protocol.Verify{Frame: r.engine.Frame(), Players: locs})
}

// Disconnect 关闭连接；自己的玩家视为死亡
func (r *Replica) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Disconnected {
		return nil
	}
	r.state = Disconnected
	if r.user != nil {
		r.user.Die()
	}
	return r.transport.Close()
}

func (r *Replica) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Frame 本地已应用的帧号，未加载快照时为 -1
func (r *Replica) Frame() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine == nil {
		return -1
	}
	return r.engine.Frame()
}

// Kills 自己玩家的击杀数，不含自杀
func (r *Replica) Kills() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.kills
}

// Killer 击杀自己的玩家
func (r *Replica) Killer() (game.PlayerID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.killer == nil {
		return game.NoOwner, false
	}
	return *r.killer, true
}

func (r *Replica) GameID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gameID
}

// Pending 缓存中等待应用的帧号，升序
func (r *Replica) Pending() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.cache))
	for n := range r.cache {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// View 在锁内访问本地引擎，engine 可能为 nil；user 为自己的玩家，观战者为 nil
func (r *Replica) View(fn func(engine *game.Engine, user *game.Player)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.engine, r.user)
}
