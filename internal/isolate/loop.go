package isolate

// completionBuffer bounds how many finished async ops can queue up before
// their goroutines wait for the loop to catch up.
const completionBuffer = 64

// completion runs on the isolate's goroutine to hand an op result back to
// the script.
type completion func()

// eventLoop is the single-task scheduler of one isolate. Async work runs on
// its own goroutine; its completion is queued here and executed on the
// owning goroutine, so the runtime is never entered concurrently.
//
// Suspension points are exactly: a call to spawn (the script gets a pending
// promise back) and the receive in drain.
type eventLoop struct {
	completions chan completion
	pending     int
}

func newEventLoop() *eventLoop {
	return &eventLoop{completions: make(chan completion, completionBuffer)}
}

// spawn starts work on a new goroutine. The completion it returns is run
// later by drain.
func (l *eventLoop) spawn(work func() completion) {
	l.pending++
	go func() {
		l.completions <- work()
	}()
}

// drain runs completions until no async work is pending. checkpoint runs
// after every completion; its first error stops the loop.
func (l *eventLoop) drain(checkpoint func() error) error {
	for l.pending > 0 {
		c := <-l.completions
		l.pending--
		c()
		if err := checkpoint(); err != nil {
			l.abandon()
			return err
		}
	}
	return nil
}

// abandon discards the completions of work still in flight so its
// goroutines can exit.
func (l *eventLoop) abandon() {
	n := l.pending
	l.pending = 0
	if n == 0 {
		return
	}
	go func() {
		for i := 0; i < n; i++ {
			<-l.completions
		}
	}()
}
