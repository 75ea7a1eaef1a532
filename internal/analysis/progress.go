package analysis

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// ProgressConfig shapes the simulated progress shown while a scene is being
// analyzed. The numbers carry no information about the real request.
type ProgressConfig struct {
	Seed     int
	Interval time.Duration
	MinStep  int
	MaxStep  int
	Ceiling  int
}

// DefaultProgress returns the stock simulation settings.
func DefaultProgress() ProgressConfig {
	return ProgressConfig{Seed: 5, Interval: 400 * time.Millisecond, MinStep: 1, MaxStep: 8, Ceiling: 95}
}

func (c ProgressConfig) normalized() ProgressConfig {
	def := DefaultProgress()
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.Ceiling == 0 {
		c.Ceiling = def.Ceiling
	}
	c.Ceiling = min(max(c.Ceiling, 15), 99)
	if c.Seed == 0 {
		c.Seed = def.Seed
	}
	c.Seed = min(max(c.Seed, 1), 14)
	if c.MinStep <= 0 {
		c.MinStep = def.MinStep
	}
	if c.MaxStep < c.MinStep {
		c.MaxStep = max(def.MaxStep, c.MinStep)
	}
	return c
}

func (c ProgressConfig) step() int {
	return c.MinStep + rand.IntN(c.MaxStep-c.MinStep+1)
}

// startProgress ticks the scene's progress until the returned stop function
// is called. stop is idempotent and returns only after the ticker goroutine
// has exited, so no tick lands after it.
func (o *Orchestrator) startProgress(id string, attempt int) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(o.progress.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, ok := o.store.AdvanceProgress(id, attempt, o.stepFn(), o.progress.Ceiling); !ok {
					return
				}
			}
		}
	}()

	return sync.OnceFunc(func() {
		cancel()
		<-done
	})
}
