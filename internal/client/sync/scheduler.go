package sync

import "time"

// Task is a scheduled callback that can be canceled before it fires.
type Task interface {
	// Cancel stops the task if it has not fired yet.
	Cancel()
}

// Scheduler produces cancellable delayed tasks. The session owns exactly
// one outstanding flush task at a time; tests inject a manual scheduler to
// advance time deterministically.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) Task
}

// TimerScheduler schedules tasks on real timers.
type TimerScheduler struct{}

type timerTask struct {
	t *time.Timer
}

func (t timerTask) Cancel() {
	t.t.Stop()
}

// Schedule runs fn after d on its own goroutine.
func (TimerScheduler) Schedule(d time.Duration, fn func()) Task {
	return timerTask{t: time.AfterFunc(d, fn)}
}
