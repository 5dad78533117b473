package replica

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperarena/game"
	"paperarena/protocol"
)

type sent struct {
	event   string
	payload any
}

type fakeTransport struct {
	sent   []sent
	closed bool
}

func (f *fakeTransport) Send(event string, payload any) error {
	f.sent = append(f.sent, sent{event, payload})
	return nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func (f *fakeTransport) count(event string) int {
	n := 0
	for _, s := range f.sent {
		if s.event == event {
			n++
		}
	}
	return n
}

func testConfig() game.Config {
	return game.Config{GridSize: 16, CellWidth: 2, Speed: 1, NewPlayerLag: 2, MaxPlayers: 8}
}

// authority 按服务端的顺序推进权威引擎并产出增量
type authority struct {
	t      *testing.T
	engine *game.Engine
	rng    *rand.Rand
	joined []game.PlayerState
}

func newAuthority(t *testing.T, cfg game.Config) *authority {
	return &authority{t: t, engine: game.NewEngine(cfg, nil), rng: rand.New(rand.NewSource(3))}
}

func (a *authority) join(num game.PlayerID, heading game.Heading) {
	p, err := a.engine.Admit(a.rng, game.PlayerState{Num: num, Heading: heading}, 0)
	require.NoError(a.t, err)
	a.joined = append(a.joined, p.State())
}

func (a *authority) snapshot(num *game.PlayerID) protocol.Game {
	snap, err := protocol.Snapshot(a.engine, "room-1", num)
	require.NoError(a.t, err)
	return snap
}

func (a *authority) tick() protocol.Frame {
	f := protocol.Frame{NewPlayers: a.joined}
	a.joined = nil
	for _, p := range a.engine.Players() {
		if a.rng.Intn(6) == 0 {
			p.ChangeHeading(game.Heading(a.rng.Intn(4)))
		}
		f.Moves = append(f.Moves, protocol.Move{Num: p.Num, Heading: p.Heading, Left: p.Dead()})
	}
	a.engine.Step()
	f.Frame = a.engine.Frame()
	return f
}

func sameGrid(t *testing.T, want *game.Engine, r *Replica) {
	t.Helper()
	r.View(func(got *game.Engine, _ *game.Player) {
		require.NotNil(t, got)
		require.Equal(t, want.Frame(), got.Frame())
		require.Equal(t, want.Len(), got.Len())
		for i, p := range want.Players() {
			assert.Equal(t, p.State(), got.Players()[i].State())
		}
		size := want.Grid().Size()
		for row := 0; row < size; row++ {
			for col := 0; col < size; col++ {
				require.Equal(t, want.Grid().Get(row, col), got.Grid().Get(row, col), "cell (%d,%d)", row, col)
			}
		}
	})
}

func joined(t *testing.T, a *authority, num *game.PlayerID) (*Replica, *fakeTransport) {
	tr := &fakeTransport{}
	r := New(tr, nil, nil)
	require.NoError(t, r.Join("tester", num == nil))
	assert.Equal(t, Joining, r.State())
	require.Equal(t, protocol.EventHello, tr.sent[0].event)
	require.NoError(t, r.HandleGame(a.snapshot(num)))
	assert.Equal(t, Active, r.State())
	return r, tr
}

func TestReplicaFollowsAuthority(t *testing.T) {
	a := newAuthority(t, testConfig())
	a.join(0, game.Right)
	a.join(1, game.Up)
	a.tick()
	num := game.PlayerID(1)
	r, tr := joined(t, a, &num)

	for i := 0; i < 200; i++ {
		if i == 50 {
			a.join(2, game.Left)
		}
		require.NoError(t, r.HandleFrame(a.tick()))
	}
	sameGrid(t, a.engine, r)
	assert.Zero(t, tr.count(protocol.EventRequestFrame))
	assert.Empty(t, r.Pending())
}

func TestReplicaSkipsKnownNewPlayers(t *testing.T) {
	a := newAuthority(t, testConfig())
	a.join(0, game.Right)
	// 快照在本帧加入之后、推进之前生成，随后的增量里又带着同一个新玩家
	num := game.PlayerID(0)
	r, _ := joined(t, a, &num)
	require.NoError(t, r.HandleFrame(a.tick()))
	sameGrid(t, a.engine, r)
}

func TestReplicaDropsStaleFrames(t *testing.T) {
	a := newAuthority(t, testConfig())
	a.join(0, game.Down)
	old := a.tick()
	r, tr := joined(t, a, nil)

	require.NoError(t, r.HandleFrame(old))
	assert.Equal(t, a.engine.Frame(), r.Frame())
	assert.Empty(t, tr.sent[1:])
}

func TestReplicaGapRequestsResyncOnce(t *testing.T) {
	a := newAuthority(t, testConfig())
	a.join(0, game.Right)
	r, tr := joined(t, a, nil)
	start := r.Frame()

	lost := a.tick()
	// 服务端在 lost 之后给出的快照
	snap := a.snapshot(nil)
	f2 := a.tick()
	f3 := a.tick()

	err := r.HandleFrame(f2)
	assert.True(t, errors.Is(err, ErrDesync))
	require.NoError(t, r.HandleFrame(f3))
	assert.Equal(t, 1, tr.count(protocol.EventRequestFrame))
	assert.Equal(t, start, r.Frame())
	assert.Equal(t, []int{f2.Frame, f3.Frame}, r.Pending())

	require.NoError(t, r.HandleGame(snap))
	assert.Equal(t, lost.Frame+2, r.Frame())
	assert.Equal(t, f3.Frame, r.Frame())
	assert.Empty(t, r.Pending())
	sameGrid(t, a.engine, r)
}

func TestReplicaResyncRetriedWhenUnanswered(t *testing.T) {
	a := newAuthority(t, testConfig())
	a.join(0, game.Right)
	r, tr := joined(t, a, nil)

	a.tick()
	err := r.HandleFrame(a.tick())
	require.True(t, errors.Is(err, ErrDesync))
	require.Equal(t, 1, tr.count(protocol.EventRequestFrame))

	// 快照一直没来：每 resyncRetryFrames 帧重发一次，缓存不超过上限
	for i := 0; i < resyncRetryFrames; i++ {
		require.NoError(t, r.HandleFrame(a.tick()))
	}
	assert.Equal(t, 2, tr.count(protocol.EventRequestFrame))
	var last protocol.Frame
	for i := 0; i < maxCachedFrames; i++ {
		last = a.tick()
		require.NoError(t, r.HandleFrame(last))
	}
	pending := r.Pending()
	require.Len(t, pending, maxCachedFrames)
	assert.Equal(t, last.Frame, pending[len(pending)-1])
	assert.Equal(t, 2+maxCachedFrames/resyncRetryFrames, tr.count(protocol.EventRequestFrame))

	require.NoError(t, r.HandleGame(a.snapshot(nil)))
	assert.Empty(t, r.Pending())
	sameGrid(t, a.engine, r)
	require.NoError(t, r.HandleFrame(a.tick()))
	sameGrid(t, a.engine, r)
}

func TestReplicaRetryAckReissuesRequest(t *testing.T) {
	a := newAuthority(t, testConfig())
	a.join(0, game.Right)
	r, tr := joined(t, a, nil)

	a.tick()
	require.Error(t, r.HandleFrame(a.tick()))
	require.Equal(t, 1, tr.count(protocol.EventRequestFrame))

	data, err := protocol.JSON.Encode(protocol.EventAck, protocol.Ack{Msg: protocol.MsgResyncRetry})
	require.NoError(t, err)
	env, err := protocol.JSON.Decode(data)
	require.NoError(t, err)
	require.NoError(t, r.HandleEvent(env))
	assert.Equal(t, 1, tr.count(protocol.EventRequestFrame))

	// 下一帧仍然不连续，立刻重新请求
	err = r.HandleFrame(a.tick())
	assert.True(t, errors.Is(err, ErrDesync))
	assert.Equal(t, 2, tr.count(protocol.EventRequestFrame))

	require.NoError(t, r.HandleGame(a.snapshot(nil)))
	assert.Empty(t, r.Pending())
	sameGrid(t, a.engine, r)
}

func TestReplicaChangeHeading(t *testing.T) {
	a := newAuthority(t, testConfig())
	a.join(0, game.Right)
	num := game.PlayerID(0)
	r, tr := joined(t, a, &num)

	ok, err := r.ChangeHeading(game.Left)
	require.NoError(t, err)
	assert.False(t, ok, "reverse is rejected locally")
	assert.Zero(t, tr.count(protocol.EventFrame))

	ok, err = r.ChangeHeading(game.Up)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Equal(t, 1, tr.count(protocol.EventFrame))
	req := tr.sent[len(tr.sent)-1].payload.(protocol.HeadingRequest)
	assert.Equal(t, r.Frame(), *req.Frame)
	assert.Equal(t, int(game.Up), *req.Heading)

	// 本地方向不变，等服务端增量
	r.View(func(_ *game.Engine, user *game.Player) {
		assert.Equal(t, game.Right, user.Heading)
	})
}

func TestReplicaSpectatorCannotSteer(t *testing.T) {
	a := newAuthority(t, testConfig())
	a.join(0, game.Right)
	r, tr := joined(t, a, nil)

	ok, err := r.ChangeHeading(game.Up)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, tr.count(protocol.EventFrame))
}

// tailTrap 玩家 0 的尾巴横在 (2,2)..(2,5)，玩家 1 这一帧向上踩到 (2,3)
func tailTrap(t *testing.T, user game.PlayerID) (*Replica, protocol.Frame) {
	cfg := game.Config{GridSize: 10, CellWidth: 1, Speed: 1, MaxPlayers: 8}
	e := game.NewEngine(cfg, nil)
	trap, _ := e.AddPlayer(game.PlayerState{Num: 0, PosX: 5, PosY: 2, Heading: game.Still})
	trap.Tail().Reposition(2, 2)
	trap.Tail().AddRun(game.Right, 3)
	e.AddPlayer(game.PlayerState{Num: 1, PosX: 3, PosY: 3, Heading: game.Up})

	snap, err := protocol.Snapshot(e, "room-1", &user)
	require.NoError(t, err)
	r := New(&fakeTransport{}, nil, nil)
	require.NoError(t, r.Join("x", false))
	require.NoError(t, r.HandleGame(snap))

	return r, protocol.Frame{Frame: 1, Moves: []protocol.Move{
		{Num: 0, Heading: game.Still},
		{Num: 1, Heading: game.Up},
	}}
}

func TestReplicaCountsKills(t *testing.T) {
	r, f := tailTrap(t, 0)
	require.NoError(t, r.HandleFrame(f))
	assert.Equal(t, 1, r.Kills())
	assert.Equal(t, Active, r.State())
}

func TestReplicaUserDeath(t *testing.T) {
	r, f := tailTrap(t, 1)
	require.NoError(t, r.HandleFrame(f))
	assert.Equal(t, Dead, r.State())
	killer, ok := r.Killer()
	require.True(t, ok)
	assert.Equal(t, game.PlayerID(0), killer)
	assert.Zero(t, r.Kills())
}

// 自己的玩家绕回来踩上自己的尾巴：死亡，但不计入击杀
func TestReplicaSelfCrossingNotCounted(t *testing.T) {
	cfg := game.Config{GridSize: 12, CellWidth: 1, Speed: 1, MaxPlayers: 8}
	e := game.NewEngine(cfg, nil)
	_, ok := e.Spawn(game.PlayerState{Num: 0, PosX: 2, PosY: 2, Heading: game.Right})
	require.True(t, ok)
	user := game.PlayerID(0)
	snap, err := protocol.Snapshot(e, "room-1", &user)
	require.NoError(t, err)

	r := New(&fakeTransport{}, nil, nil)
	require.NoError(t, r.Join("loop", false))
	require.NoError(t, r.HandleGame(snap))

	var headings []game.Heading
	for _, s := range []struct {
		h game.Heading
		n int
	}{{game.Right, 5}, {game.Down, 2}, {game.Left, 2}, {game.Up, 2}} {
		for i := 0; i < s.n; i++ {
			headings = append(headings, s.h)
		}
	}
	for i, h := range headings {
		require.Equal(t, Active, r.State(), "frame %d", i+1)
		require.NoError(t, r.HandleFrame(protocol.Frame{Frame: i + 1, Moves: []protocol.Move{{Num: user, Heading: h}}}))
	}

	assert.Equal(t, 11, r.Frame())
	assert.Equal(t, Dead, r.State())
	assert.Zero(t, r.Kills())
	killer, ok := r.Killer()
	require.True(t, ok)
	assert.Equal(t, user, killer)
}

func TestReplicaLeftMoveKills(t *testing.T) {
	a := newAuthority(t, testConfig())
	a.join(0, game.Right)
	a.join(1, game.Down)
	r, _ := joined(t, a, nil)

	f := protocol.Frame{Frame: r.Frame() + 1, Moves: []protocol.Move{
		{Num: 0, Heading: game.Right, Left: true},
		{Num: 1, Heading: game.Down},
	}}
	require.NoError(t, r.HandleFrame(f))
	r.View(func(e *game.Engine, _ *game.Player) {
		assert.Equal(t, 1, e.Len())
		assert.Zero(t, e.Grid().Count(0))
	})
}

func TestReplicaJoinRejected(t *testing.T) {
	tr := &fakeTransport{}
	r := New(tr, nil, nil)
	require.NoError(t, r.Join("x", false))

	data, err := protocol.JSON.Encode(protocol.EventError, protocol.Error{Msg: "room full"})
	require.NoError(t, err)
	env, err := protocol.JSON.Decode(data)
	require.NoError(t, err)

	err = r.HandleEvent(env)
	assert.True(t, errors.Is(err, ErrJoinRejected))
	assert.Equal(t, Disconnected, r.State())
}

func TestReplicaVerifyDesyncTriggersResync(t *testing.T) {
	a := newAuthority(t, testConfig())
	a.join(0, game.Right)
	r, tr := joined(t, a, nil)

	require.NoError(t, r.SendVerify())
	v := tr.sent[len(tr.sent)-1].payload.(protocol.Verify)
	assert.Equal(t, r.Frame(), v.Frame)
	assert.Len(t, v.Players, 1)

	data, err := protocol.Msgpack.Encode(protocol.EventVerified, protocol.Verified{OK: false, Desync: true, Msg: "player 0"})
	require.NoError(t, err)
	env, err := protocol.Msgpack.Decode(data)
	require.NoError(t, err)
	require.NoError(t, r.HandleEvent(env))
	assert.Equal(t, 1, tr.count(protocol.EventRequestFrame))
}

func TestReplicaDisconnect(t *testing.T) {
	a := newAuthority(t, testConfig())
	a.join(0, game.Right)
	num := game.PlayerID(0)
	r, tr := joined(t, a, &num)

	require.NoError(t, r.Disconnect())
	assert.True(t, tr.closed)
	assert.Equal(t, Disconnected, r.State())
	r.View(func(_ *game.Engine, user *game.Player) {
		assert.True(t, user.Dead())
	})
}
