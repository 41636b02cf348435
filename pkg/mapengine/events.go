package mapengine

// Listener receives the engine's outbound notifications. Callbacks run
// synchronously on the engine tick, in subscription order, and never
// re-enter the engine's caches — consumers read only the station datum
// handed to them.
type Listener interface {
	// HoverChanged fires when the hovered station changes; st is nil when the
	// pointer leaves all stations.
	HoverChanged(st *Station)
	// SelectionLocked fires when a click or LockToNearest locks a station.
	SelectionLocked(st *Station)
	// SelectionUnlocked fires when the lock is released.
	SelectionUnlocked()
	// DataReady fires once the station set and features are loaded and the
	// first full frame can be produced.
	DataReady()
}

// ListenerFuncs adapts plain functions to Listener; nil fields are skipped.
type ListenerFuncs struct {
	OnHoverChanged    func(st *Station)
	OnSelectionLocked func(st *Station)
	OnSelectionUnlock func()
	OnDataReady       func()
}

func (l ListenerFuncs) HoverChanged(st *Station) {
	if l.OnHoverChanged != nil {
		l.OnHoverChanged(st)
	}
}

func (l ListenerFuncs) SelectionLocked(st *Station) {
	if l.OnSelectionLocked != nil {
		l.OnSelectionLocked(st)
	}
}

func (l ListenerFuncs) SelectionUnlocked() {
	if l.OnSelectionUnlock != nil {
		l.OnSelectionUnlock()
	}
}

func (l ListenerFuncs) DataReady() {
	if l.OnDataReady != nil {
		l.OnDataReady()
	}
}

// Subscribe registers a notification listener. Not safe to call while the
// engine is dispatching; subscribe before RunGame.
func (e *Engine) Subscribe(l Listener) {
	e.listeners = append(e.listeners, l)
}

func (e *Engine) emitHoverChanged(st *Station) {
	for _, l := range e.listeners {
		l.HoverChanged(st)
	}
}

func (e *Engine) emitSelectionLocked(st *Station) {
	for _, l := range e.listeners {
		l.SelectionLocked(st)
	}
}

func (e *Engine) emitSelectionUnlocked() {
	for _, l := range e.listeners {
		l.SelectionUnlocked()
	}
}

func (e *Engine) emitDataReady() {
	for _, l := range e.listeners {
		l.DataReady()
	}
}
