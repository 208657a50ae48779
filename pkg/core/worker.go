package core

import (
	"time"
)

type Worker struct {
	timer  *time.Timer
	done   chan struct{}
	exited chan struct{}
}

// NewWorker run f after d, reschedule while f returns positive duration
func NewWorker(d time.Duration, f func() time.Duration) *Worker {
	timer := time.NewTimer(d)
	done := make(chan struct{}, 1)
	exited := make(chan struct{})

	go func() {
		defer close(exited)

		for {
			select {
			case <-timer.C:
				if d = f(); d > 0 {
					timer.Reset(d)
					continue
				}
			case <-done:
				timer.Stop()
			}
			break
		}
	}()

	return &Worker{timer: timer, done: done, exited: exited}
}

// Stop - cancel and wait for the task goroutine to exit.
// An in-flight callback runs to completion first, so after Stop
// returns the task can't fire again.
func (w *Worker) Stop() {
	if w == nil {
		return
	}

	select {
	case w.done <- struct{}{}:
	default:
	}
	<-w.exited
}
