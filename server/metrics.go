package server

import (
	"sync/atomic"
)

// RoomMetrics 记录房间运行期的关键指标（用于监控与调试）
type RoomMetrics struct {
	TickCount         int64 // 统计的 Tick 次数
	TotalTickNs       int64 // Tick 累计耗时（纳秒）
	Joins             int64 // 成功加入的玩家数
	JoinsRejected     int64 // 因满员或无出生点被拒绝的加入
	Spectators        int64 // 观战加入次数
	HeadingsAccepted  int64 // 被接受的转向请求
	HeadingsRejected  int64 // 校验失败的转向请求
	RateLimited       int64 // 因限流被拒绝的输入数
	ChanFullDiscarded int64 // 因通道满被丢弃的输入数
	Resyncs           int64 // 下发的完整快照（不含加入）
	Verifies          int64 // 处理的位置校验请求
	Desyncs           int64 // 校验发现的不一致
	Deaths            int64
	Kills             int64 // 不含撞自己
}

func (m *RoomMetrics) IncJoin() { atomic.AddInt64(&m.Joins, 1) }
func (m *RoomMetrics) IncJoinRejected() { atomic.AddInt64(&m.JoinsRejected, 1) }
func (m *RoomMetrics) IncSpectator() { atomic.AddInt64(&m.Spectators, 1) }
func (m *RoomMetrics) IncAccepted() { atomic.AddInt64(&m.HeadingsAccepted, 1) }
func (m *RoomMetrics) IncRejected() { atomic.AddInt64(&m.HeadingsRejected, 1) }
func (m *RoomMetrics) IncRateLimited() { atomic.AddInt64(&m.RateLimited, 1) }
func (m *RoomMetrics) IncChanFullDiscarded() { atomic.AddInt64(&m.ChanFullDiscarded, 1) }
func (m *RoomMetrics) IncResync() { atomic.AddInt64(&m.Resyncs, 1) }
func (m *RoomMetrics) IncVerify(desync bool) {
	atomic.AddInt64(&m.Verifies, 1)
	if desync {
		atomic.AddInt64(&m.Desyncs, 1)
	}
}
func (m *RoomMetrics) AddDeaths(deaths, kills int) {
	atomic.AddInt64(&m.Deaths, int64(deaths))
	atomic.AddInt64(&m.Kills, int64(kills))
}
func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// AvgTickMs 平均每 Tick 耗时（毫秒）
func (m *RoomMetrics) AvgTickMs() float64 {
	tick := atomic.LoadInt64(&m.TickCount)
	if tick == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&m.TotalTickNs)) / float64(tick) / 1e6
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	return map[string]any{
		"tick_count":          atomic.LoadInt64(&m.TickCount),
		"avg_tick_ms":         m.AvgTickMs(),
		"joins":               atomic.LoadInt64(&m.Joins),
		"joins_rejected":      atomic.LoadInt64(&m.JoinsRejected),
		"spectators":          atomic.LoadInt64(&m.Spectators),
		"headings_accepted":   atomic.LoadInt64(&m.HeadingsAccepted),
		"headings_rejected":   atomic.LoadInt64(&m.HeadingsRejected),
		"rate_limited":        atomic.LoadInt64(&m.RateLimited),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
		"resyncs":             atomic.LoadInt64(&m.Resyncs),
		"verifies":            atomic.LoadInt64(&m.Verifies),
		"desyncs":             atomic.LoadInt64(&m.Desyncs),
		"deaths":              atomic.LoadInt64(&m.Deaths),
		"kills":               atomic.LoadInt64(&m.Kills),
	}
}
