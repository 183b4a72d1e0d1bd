package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"birdwatch/internal/logging"
	"birdwatch/internal/metrics"
	"birdwatch/internal/models"
	"birdwatch/internal/retry"
)

// Cycle is one independently scheduled, recurring unit of work.
type Cycle interface {
	Name() string
	Run(ctx context.Context) error
}

// State of a cycle between and during ticks.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// CycleStatus is a snapshot of one cycle, served by the status endpoint.
type CycleStatus struct {
	Name      string    `json:"name"`
	State     State     `json:"state"`
	Paused    bool      `json:"paused"`
	Ticks     int64     `json:"ticks"`
	Skipped   int64     `json:"skipped"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

type cycleEntry struct {
	cycle   Cycle
	state   State
	paused  bool
	ticks   int64
	skipped int64
	lastRun time.Time
	lastErr error
}

// Scheduler runs the agent's cycles concurrently on independent intervals.
//
// Per-cycle discipline: a tick firing while the previous run of the same
// cycle is still in flight is dropped and logged, never queued. A run that
// fails with a retryable error is retried with bounded backoff; exhausting
// the retries pauses that cycle's future ticks while the others keep going.
// An auth expiry halts every cycle, since none can survive a dead session.
type Scheduler struct {
	scheduler  gocron.Scheduler
	instanceID string

	mu      sync.Mutex
	entries map[string]*cycleEntry
	halted  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	retryPolicy retry.Policy
}

// NewScheduler creates a stopped scheduler.
func NewScheduler() (*Scheduler, error) {
	gs, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler:  gs,
		instanceID: uuid.New().String(),
		entries:    make(map[string]*cycleEntry),
		ctx:        ctx,
		cancel:     cancel,
		retryPolicy: retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
		},
	}, nil
}

// Register schedules cycle to run every interval.
func (s *Scheduler) Register(cycle Cycle, interval time.Duration) error {
	return s.register(cycle, gocron.DurationJob(interval))
}

// RegisterCron schedules cycle on a standard cron expression instead of a
// fixed interval.
func (s *Scheduler) RegisterCron(cycle Cycle, expression string) error {
	return s.register(cycle, gocron.CronJob(expression, false))
}

func (s *Scheduler) register(cycle Cycle, definition gocron.JobDefinition) error {
	name := cycle.Name()

	s.mu.Lock()
	if _, exists := s.entries[name]; exists {
		s.mu.Unlock()
		return fmt.Errorf("cycle %q already registered", name)
	}
	s.entries[name] = &cycleEntry{cycle: cycle, state: StateIdle}
	s.mu.Unlock()

	_, err := s.scheduler.NewJob(
		definition,
		gocron.NewTask(func() { s.tick(name) }),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule cycle %q: %w", name, err)
	}

	log.Printf("✅ [SCHEDULER] Registered cycle: %s", name)
	return nil
}

// Start begins issuing ticks.
func (s *Scheduler) Start() {
	s.scheduler.Start()
	log.Printf("🚀 [SCHEDULER] Started with %d cycles (instance %s)", len(s.entries), s.instanceID)
}

// Stop shuts the scheduler down gracefully: no new ticks are issued, and
// in-flight runs finish their current item before the call returns.
func (s *Scheduler) Stop() error {
	log.Println("🛑 [SCHEDULER] Stopping...")
	err := s.scheduler.Shutdown()
	s.cancel() // in-flight runs see cancellation at their next item boundary
	s.wg.Wait()
	log.Println("✅ [SCHEDULER] Stopped")
	return err
}

// tick runs one scheduled firing of the named cycle.
func (s *Scheduler) tick(name string) {
	s.mu.Lock()
	entry, ok := s.entries[name]
	if !ok || s.halted {
		s.mu.Unlock()
		return
	}
	if entry.paused {
		s.mu.Unlock()
		log.Printf("⏭️  [SCHEDULER] Cycle '%s' is paused, tick dropped", name)
		return
	}
	if entry.state == StateRunning {
		entry.skipped++
		s.mu.Unlock()
		metrics.TicksSkipped.WithLabelValues(name).Inc()
		log.Printf("⏭️  [SCHEDULER] Cycle '%s' still running, tick dropped", name)
		return
	}
	entry.state = StateRunning
	entry.ticks++
	tickN := entry.ticks
	entry.lastRun = time.Now()
	s.mu.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()

	logging.WithCycle(name, tickN).Debug("tick started")

	startTime := time.Now()
	err := retry.Do(s.ctx, name, s.retryPolicy, entry.cycle.Run)
	s.finish(name, entry, err, time.Since(startTime))
}

func (s *Scheduler) finish(name string, entry *cycleEntry, err error, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.lastErr = err
	if err == nil {
		entry.state = StateSucceeded
		metrics.CycleRuns.WithLabelValues(name, "succeeded").Inc()
		log.Printf("✅ [SCHEDULER] Cycle '%s' completed in %v", name, elapsed)
		return
	}

	entry.state = StateFailed
	metrics.CycleRuns.WithLabelValues(name, "failed").Inc()

	switch {
	case models.IsFatal(err):
		// A dead session starves every cycle, not just this one.
		s.halted = true
		s.scheduler.StopJobs()
		log.Printf("🛑 [SCHEDULER] Cycle '%s' hit fatal error, halting all cycles: %v", name, err)
	case errors.Is(err, context.Canceled):
		log.Printf("⏹️  [SCHEDULER] Cycle '%s' cancelled during shutdown", name)
	case models.IsRetryable(err):
		entry.paused = true
		log.Printf("⚠️  [SCHEDULER] Cycle '%s' exhausted retries, pausing future ticks: %v", name, err)
	default:
		log.Printf("❌ [SCHEDULER] Cycle '%s' failed in %v: %v", name, elapsed, err)
	}
}

// Resume lifts a pause set after exhausted retries.
func (s *Scheduler) Resume(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[name]; ok && entry.paused {
		entry.paused = false
		log.Printf("▶️  [SCHEDULER] Cycle '%s' resumed", name)
	}
}

// Halted reports whether a fatal error stopped all cycles.
func (s *Scheduler) Halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// Status returns a snapshot of every cycle, keyed by name.
func (s *Scheduler) Status() map[string]CycleStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := make(map[string]CycleStatus, len(s.entries))
	for name, entry := range s.entries {
		cs := CycleStatus{
			Name:    name,
			State:   entry.state,
			Paused:  entry.paused,
			Ticks:   entry.ticks,
			Skipped: entry.skipped,
			LastRun: entry.lastRun,
		}
		if entry.lastErr != nil {
			cs.LastError = entry.lastErr.Error()
		}
		status[name] = cs
	}
	return status
}

// RunNow fires one tick of the named cycle immediately, outside its schedule.
func (s *Scheduler) RunNow(name string) {
	s.tick(name)
}
