package task

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type Runner interface {
	Run() error
}

type funcRunner struct {
	run func() error
}

func (r funcRunner) Run() error {
	return r.run()
}

func NewTickerTaskFromFunc(clk clock.Clock, interval time.Duration, runner func() error) *TickerTask {
	return NewTickerTask(clk, interval, funcRunner{run: runner})
}

// TickerTask runs a Runner periodically until stopped. The clock is injected
// so tests can drive ticks deterministically. Errors from the runner are
// ignored here; the runner owns its own reporting.
type TickerTask struct {
	clock    clock.Clock
	interval time.Duration
	runner   Runner
	done     chan struct{}
	stopOnce sync.Once
}

func NewTickerTask(clk clock.Clock, interval time.Duration, runner Runner) *TickerTask {
	return &TickerTask{
		clock:    clk,
		interval: interval,
		runner:   runner,
		done:     make(chan struct{}),
	}
}

// Start runs the task once immediately and then schedules it to run
// periodically if a positive interval has been specified.
func (t *TickerTask) Start() {
	t.runner.Run()

	if t.interval > 0 {
		go t.runRecurring()
	}
}

// Stop stops the periodic task but the task runner maintains state. Safe to
// call more than once.
func (t *TickerTask) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
	})
}

// Done exports the readonly done channel.
func (t *TickerTask) Done() <-chan struct{} {
	return t.done
}

func (t *TickerTask) runRecurring() {
	ticker := t.clock.Ticker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.runner.Run()
		case <-t.done:
			return
		}
	}
}
