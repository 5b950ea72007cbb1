/*
scheduler.go - In-process sweep scheduler

PURPOSE:
  Periodically runs the settlement sweep over all elapsed-but-active
  challenges, so challenges settle even when no user or external
  scheduler triggers them.

DESIGN:
  - Background goroutine with a configurable check interval
  - Same Executor.Sweep as the HTTP surface; running both concurrently
    is safe because all coordination is in the store's guarded updates
  - Per-challenge failures are collected in the report, never abort the
    pass

USAGE:
  scheduler := NewSweepScheduler(executor, time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - settlement/sweep.go: The sweep itself
  - handlers.go: The HTTP sweep surface
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/kinen-app/challenge-engine/settlement"
)

// SweepScheduler drives periodic settlement sweeps.
type SweepScheduler struct {
	Executor      *settlement.Executor
	CheckInterval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewSweepScheduler(executor *settlement.Executor, interval time.Duration) *SweepScheduler {
	return &SweepScheduler{
		Executor:      executor,
		CheckInterval: interval,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *SweepScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()

	log.Printf("[Scheduler] started with check interval %v", s.CheckInterval)
}

// Stop stops the scheduler and waits for an in-flight pass to finish.
func (s *SweepScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		log.Println("[Scheduler] stopped")
	}
}

func (s *SweepScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.sweep()

	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *SweepScheduler) sweep() {
	report, err := s.Executor.Sweep(context.Background(), time.Now())
	if err != nil {
		log.Printf("[Scheduler] sweep failed: %v", err)
		return
	}
	if report.Processed > 0 {
		log.Printf("[Scheduler] sweep: %d processed, %d refunded, %d errors",
			report.Processed, report.Refunded, report.Errors)
		for _, msg := range report.Messages {
			log.Printf("[Scheduler] sweep error: %s", msg)
		}
	}
}
