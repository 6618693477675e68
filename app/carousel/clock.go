package carousel

import (
	"sync"
	"time"
)

// FrameDelay approximates one paint frame.
const FrameDelay = 16 * time.Millisecond

type TimerFrames struct{}

func (TimerFrames) Request(fn func()) func() {
	t := time.AfterFunc(FrameDelay, fn)
	return func() { t.Stop() }
}

type SystemClock struct{}

func (SystemClock) Every(d time.Duration, fn func()) func() {
	ticker := time.NewTicker(d)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
