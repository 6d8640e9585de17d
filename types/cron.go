package types

import (
	"time"

	"github.com/robfig/cron/v3"
)

type CronManager interface {
	LifecycleManager
	Add(jobName, spec string, job func()) error
	Remove(jobName string) error
}

type JobEntry struct {
	ID       cron.EntryID
	Name     string
	Spec     string
	Job      func()
	AddedAt  time.Time
	LastRun  time.Time
	RunCount int64
	Error    error
}
