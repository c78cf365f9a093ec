package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/semmidev/filevault/internal/domain"
	"github.com/semmidev/filevault/internal/infrastructure/events"
)

type Logger interface {
	Infof(template string, args ...interface{})
}

type Publisher interface {
	Publish(eventType string, data any)
}

// Trigger starts a backup. The scheduler fires it on its own goroutine and
// never waits for it.
type Trigger func(ctx context.Context)

// Scheduler keeps the recurring backup interval and the next due time, and
// polls them on a short fixed tick. All reads and writes of the schedule go
// through one mutex.
type Scheduler struct {
	cron    *cron.Cron
	trigger Trigger
	logger  Logger
	events  Publisher
	tick    time.Duration
	now     func() time.Time

	mu    sync.Mutex
	state domain.ScheduleState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Scheduler) { s.events = p }
}

func New(trigger Trigger, logger Logger, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		trigger: trigger,
		logger:  logger,
		tick:    time.Second,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the tick job and starts the cron runner.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.tick), s.Tick); err != nil {
		return fmt.Errorf("failed to schedule tick: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the tick loop. Backups already triggered keep running; Stop
// waits for their trigger calls to return.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cancel()
	s.wg.Wait()
}

// SetInterval rearms the schedule from the current time. A zero interval
// disarms it.
func (s *Scheduler) SetInterval(interval time.Duration) error {
	if interval != 0 {
		if err := ValidateInterval(interval); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.state.Interval = interval
	if interval == 0 {
		s.state.NextDueAt = time.Time{}
	} else {
		s.state.NextDueAt = s.now().Add(interval)
	}
	state := s.state
	s.mu.Unlock()

	if interval == 0 {
		s.logger.Infof("Auto backup disabled")
	} else {
		s.logger.Infof("Auto backup every %s, next at %s", FormatInterval(interval), state.NextDueAt.Format(time.DateTime))
	}
	s.publish(events.ScheduleChanged, state)
	return nil
}

// State returns a copy of the schedule.
func (s *Scheduler) State() domain.ScheduleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Countdown returns the time left until the next run. The bool is false when
// no schedule is armed. The duration is zero once the deadline has passed and
// the tick has not fired yet.
func (s *Scheduler) Countdown() (time.Duration, bool) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	if !state.Armed() {
		return 0, false
	}
	remaining := state.NextDueAt.Sub(s.now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Tick checks the deadline once. When due, the next deadline is computed from
// this trigger time before the backup is started.
func (s *Scheduler) Tick() {
	now := s.now()

	s.mu.Lock()
	if !s.state.Armed() || now.Before(s.state.NextDueAt) {
		s.mu.Unlock()
		return
	}
	s.state.NextDueAt = now.Add(s.state.Interval)
	state := s.state
	s.mu.Unlock()

	s.logger.Infof("=== Triggered scheduled backup, next at %s ===", state.NextDueAt.Format(time.DateTime))
	s.publish(events.ScheduleTriggered, state)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.trigger(s.ctx)
	}()
}

func (s *Scheduler) publish(eventType string, state domain.ScheduleState) {
	if s.events == nil {
		return
	}
	remaining, _ := s.Countdown()
	s.events.Publish(eventType, map[string]any{
		"interval":    state.Interval.String(),
		"next_due_at": state.NextDueAt,
		"remaining":   remaining.String(),
	})
}
