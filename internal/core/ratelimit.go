package core

import "time"

// RateWindow captures admission timestamps for one client inside the
// trailing window, oldest first.
type RateWindow struct {
	Stamps []time.Time
}

// Prune drops every stamp at or before cutoff and returns the remaining count.
func (w *RateWindow) Prune(cutoff time.Time) int {
	if w == nil {
		return 0
	}
	idx := 0
	for idx < len(w.Stamps) && !w.Stamps[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		w.Stamps = append(w.Stamps[:0], w.Stamps[idx:]...)
	}
	return len(w.Stamps)
}

// Oldest returns the earliest stamp still in the window.
func (w *RateWindow) Oldest() (time.Time, bool) {
	if w == nil || len(w.Stamps) == 0 {
		return time.Time{}, false
	}
	return w.Stamps[0], true
}
