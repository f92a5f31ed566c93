package output

import (
	"sync"
	"time"
)

// DefaultWaitDelay is how long Wait holds back its message
const DefaultWaitDelay = 300 * time.Millisecond

// Wait shows msg after delay unless the returned stop function is called
// first. Calling stop after the message was shown erases it. stop is safe to
// call more than once.
func (o *Output) Wait(msg string, delay time.Duration) (stop func()) {
	var (
		mu      sync.Mutex
		shown   bool
		stopped bool
	)

	timer := time.AfterFunc(delay, func() {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		o.Log("%s", msg)
		shown = true
	})

	return func() {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		stopped = true
		timer.Stop()
		if shown {
			o.EraseLines(1)
			shown = false
		}
	}
}
