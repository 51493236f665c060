package scheduler

import "time"

type Scheduler interface {
	Start() error
	Stop()
}

const (
	DefaultUpdateInterval  = 30 * time.Second
	DefaultRequestInterval = 250 * time.Millisecond
)
