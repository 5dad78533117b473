package game

// Observer 引擎的副作用出口（渲染、计数等），引擎不使用任何返回值
type Observer interface {
	AddPlayer(p *Player)
	RemovePlayer(p *Player)
	SetUser(p *Player)
	UpdateGrid(row, col int, before, after PlayerID)
	Update(frame int)
	Paint()
}

// NopObserver 空实现，可嵌入只关心部分回调的观察者
type NopObserver struct{}

func (NopObserver) AddPlayer(*Player) {}
func (NopObserver) RemovePlayer(*Player) {}
func (NopObserver) SetUser(*Player) {}
func (NopObserver) UpdateGrid(int, int, PlayerID, PlayerID) {}
func (NopObserver) Update(int) {}
func (NopObserver) Paint() {}
