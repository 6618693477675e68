package carousel

import "sync"

// Track is an in-memory Viewport: a row of equally wide items behind a
// window of ClientWidth pixels. Scroll positions are clamped like a
// browser clamps scrollLeft.
type Track struct {
	mu          sync.Mutex
	itemWidth   float64
	clientWidth float64
	count       int
	left        float64
}

func NewTrack(itemWidth, clientWidth float64) *Track {
	return &Track{itemWidth: itemWidth, clientWidth: clientWidth}
}

func (t *Track) SetItemCount(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count = n
	t.left = t.clampLocked(t.left)
}

func (t *Track) SetClientWidth(w float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clientWidth = w
	t.left = t.clampLocked(t.left)
}

func (t *Track) ScrollLeft() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.left
}

func (t *Track) ScrollWidth() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scrollWidthLocked()
}

func (t *Track) ClientWidth() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clientWidth
}

func (t *Track) FirstItemWidth() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count == 0 {
		return 0
	}
	return t.itemWidth
}

func (t *Track) ScrollTo(left float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.left = t.clampLocked(left)
}

func (t *Track) scrollWidthLocked() float64 {
	w := float64(t.count) * t.itemWidth
	if w < t.clientWidth {
		return t.clientWidth
	}
	return w
}

func (t *Track) clampLocked(left float64) float64 {
	maxLeft := t.scrollWidthLocked() - t.clientWidth
	if maxLeft < 0 {
		maxLeft = 0
	}
	if left < 0 {
		return 0
	}
	if left > maxLeft {
		return maxLeft
	}
	return left
}
