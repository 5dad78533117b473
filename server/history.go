package server

import (
	"fmt"
	"sort"

	"paperarena/game"
	"paperarena/protocol"
)

type frameLocations struct {
	frame   int
	players map[game.PlayerID]protocol.Location
}

// History 最近若干帧所有玩家位置的环形缓冲，用于响应客户端的位置校验。
// 只在 Tick 协程中使用。
type History struct {
	ring []frameLocations
	next int
	size int
}

func NewHistory(frames int) *History {
	return &History{ring: make([]frameLocations, frames)}
}

// Push 记录某一帧推进后的位置
func (h *History) Push(frame int, players []*game.Player) {
	locs := make(map[game.PlayerID]protocol.Location, len(players))
	for _, p := range players {
		locs[p.Num] = protocol.Location{p.PosX, p.PosY, float64(p.WaitLag)}
	}
	h.ring[h.next] = frameLocations{frame: frame, players: locs}
	h.next = (h.next + 1) % len(h.ring)
	if h.size < len(h.ring) {
		h.size++
	}
}

func (h *History) lookup(frame int) (frameLocations, bool) {
	for i := 0; i < h.size; i++ {
		idx := (h.next - 1 - i + len(h.ring)) % len(h.ring)
		if h.ring[idx].frame == frame {
			return h.ring[idx], true
		}
	}
	return frameLocations{}, false
}

// Verify 比对客户端上报的位置：
// 帧不在缓冲内返回 ok=false、desync=false；有不一致返回第一个不一致的玩家
func (h *History) Verify(v protocol.Verify) protocol.Verified {
	rec, ok := h.lookup(v.Frame)
	if !ok {
		return protocol.Verified{Msg: fmt.Sprintf("frame %d is not in history", v.Frame)}
	}

	nums := make([]game.PlayerID, 0, len(rec.players))
	for num := range rec.players {
		nums = append(nums, num)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	for _, num := range nums {
		got, ok := v.Players[num]
		if !ok {
			return protocol.Verified{Desync: true, Msg: fmt.Sprintf("player %d missing at frame %d", num, v.Frame)}
		}
		if want := rec.players[num]; got != want {
			return protocol.Verified{Desync: true, Msg: fmt.Sprintf("player %d at frame %d: got %v, want %v", num, v.Frame, got, want)}
		}
	}
	if len(v.Players) != len(rec.players) {
		return protocol.Verified{Desync: true, Msg: fmt.Sprintf("frame %d has %d players, got %d", v.Frame, len(rec.players), len(v.Players))}
	}
	return protocol.Verified{OK: true}
}
