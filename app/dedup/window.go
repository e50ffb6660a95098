package dedup

import "github.com/lysyi3m/chat-comb/app/feed"

// Window suppresses identities seen in the previous generation. Every
// observed identity goes into the building generation; Rotate promotes it to
// current and starts a fresh one. An identity absent for a whole generation
// is forgotten, so memory stays bounded to two generations.
//
// Window is not safe for concurrent use; it belongs to the parse stage.
type Window struct {
	current  map[feed.Identity]struct{}
	building map[feed.Identity]struct{}
}

func NewWindow() *Window {
	return &Window{
		current:  make(map[feed.Identity]struct{}),
		building: make(map[feed.Identity]struct{}),
	}
}

// Observe records id into the building generation and reports whether it
// was already present in the current one.
func (w *Window) Observe(id feed.Identity) bool {
	w.building[id] = struct{}{}
	_, seen := w.current[id]
	return seen
}

func (w *Window) Rotate() {
	w.current, w.building = w.building, w.current
	clear(w.building)
}

// Len returns the number of identities held in both generations.
func (w *Window) Len() (current, building int) {
	return len(w.current), len(w.building)
}
