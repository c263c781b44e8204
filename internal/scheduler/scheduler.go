// Package scheduler wraps robfig/cron/v3 to run the engine's three
// background loops: the 1-second expiration sweep, the 2-second tombstone
// clear, and the save_after-second periodic snapshot. The original server
// ran each of these as a tokio::spawn task with its own interval timer;
// cron.Cron's "@every" entries are the idiomatic Go equivalent used
// elsewhere in the retrieval pack.
package scheduler

import (
	"strconv"

	"github.com/robfig/cron/v3"
)

// Scheduler owns the three background jobs and their cron.Cron runner.
type Scheduler struct {
	c *cron.Cron
}

// New creates a Scheduler with no jobs registered yet.
func New() *Scheduler {
	return &Scheduler{c: cron.New(cron.WithSeconds())}
}

// RegisterExpirySweep registers fn to run every second.
func (s *Scheduler) RegisterExpirySweep(fn func()) error {
	_, err := s.c.AddFunc("@every 1s", fn)
	return err
}

// RegisterTombstoneClear registers fn to run every two seconds.
func (s *Scheduler) RegisterTombstoneClear(fn func()) error {
	_, err := s.c.AddFunc("@every 2s", fn)
	return err
}

// RegisterSnapshot registers fn to run every saveAfter seconds. A
// saveAfter of zero disables periodic snapshotting.
func (s *Scheduler) RegisterSnapshot(saveAfter int, fn func()) error {
	if saveAfter <= 0 {
		return nil
	}
	_, err := s.c.AddFunc(everySpec(saveAfter), fn)
	return err
}

func everySpec(seconds int) string {
	return "@every " + strconv.Itoa(seconds) + "s"
}

// Start begins running every registered job in its own goroutine.
func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop halts the scheduler and blocks until any running jobs finish.
func (s *Scheduler) Stop() {
	ctx := s.c.Stop()
	<-ctx.Done()
}
