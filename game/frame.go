package game

// Kill 一次击杀；Killer == Victim 表示撞上自己的尾巴
type Kill struct {
	Killer PlayerID `json:"killer"`
	Victim PlayerID `json:"victim"`
}

// FrameResult 一个 Tick 的结算结果
type FrameResult struct {
	Alive   []*Player
	Dead    []*Player
	Kills   []Kill
	Claimed map[PlayerID]int // 本 Tick 围地新增格子数
}

// KillerOf 返回击杀 victim 的玩家
func (r FrameResult) KillerOf(victim PlayerID) (PlayerID, bool) {
	for _, k := range r.Kills {
		if k.Victim == victim {
			return k.Killer, true
		}
	}
	return NoOwner, false
}

// squaresIntersect 一维区间 [a, a+w) 与 [b, b+w) 是否重叠
func squaresIntersect(a, b, w float64) bool {
	if a < b {
		return b < a+w
	}
	return a < b+w
}

// UpdateFrame 推进所有玩家一个 Tick 并结算碰撞。
// 已死亡（如断线）的玩家不再移动，直接进入死亡列表；
// 碰撞结算期间不修改网格，安全区判定对所有玩家对看到的是同一份网格；
// 最后清除所有死亡玩家的领地。
func UpdateFrame(g *Grid, players []*Player) FrameResult {
	res := FrameResult{Claimed: make(map[PlayerID]int)}

	movers := make([]*Player, 0, len(players))
	for _, p := range players {
		if p.Dead() {
			res.Dead = append(res.Dead, p)
			continue
		}
		if n := p.Move(g); n > 0 {
			res.Claimed[p.Num] += n
		}
		if p.Dead() {
			res.Dead = append(res.Dead, p)
			continue
		}
		movers = append(movers, p)
	}

	removing := make([]bool, len(movers))
	// 同一 Tick 内一个玩家只记一次击杀（先检测到的为准）
	kill := func(killer, victim int) {
		if removing[victim] {
			return
		}
		removing[victim] = true
		res.Kills = append(res.Kills, Kill{Killer: movers[killer].Num, Victim: movers[victim].Num})
	}

	for i := 0; i < len(movers); i++ {
		for j := i; j < len(movers); j++ {
			a, b := movers[i], movers[j]

			if a.tail.Hits(b.Row(), b.Col()) {
				kill(i, j)
			}
			if i == j {
				continue
			}
			if b.tail.Hits(a.Row(), a.Col()) {
				kill(j, i)
			}

			w := a.cellWidth
			if !squaresIntersect(a.PosX, b.PosX, w) || !squaresIntersect(a.PosY, b.PosY, w) {
				continue
			}
			aSafe := g.Get(a.Row(), a.Col()) == a.Num
			bSafe := g.Get(b.Row(), b.Col()) == b.Num
			switch {
			case aSafe && !bSafe:
				kill(i, j)
			case bSafe && !aSafe:
				kill(j, i)
			default:
				ea, eb := a.Exposure(), b.Exposure()
				switch {
				case ea == eb:
					kill(i, j)
					kill(j, i)
				case ea > eb:
					kill(j, i)
				default:
					kill(i, j)
				}
			}
		}
	}

	for i, p := range movers {
		if removing[i] {
			p.Die()
			res.Dead = append(res.Dead, p)
			continue
		}
		res.Alive = append(res.Alive, p)
	}

	if len(res.Dead) > 0 {
		gone := make(map[PlayerID]bool, len(res.Dead))
		for _, p := range res.Dead {
			gone[p.Num] = true
		}
		g.ClearOwners(gone)
	}
	return res
}
