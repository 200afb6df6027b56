package corridor

import "time"

type Timer interface {
	Stop() bool
}

// Scheduler runs a callback once after a delay
type Scheduler interface {
	AfterFunc(delay time.Duration, callback func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(delay time.Duration, callback func()) Timer {
	return time.AfterFunc(delay, callback)
}
