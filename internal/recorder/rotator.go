package recorder

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Rotator signals when the output files are due for renewal. The signal is
// coalesced: a tick that arrives while one is pending is dropped.
type Rotator struct {
	scheduler gocron.Scheduler
	c         chan struct{}
	log       *slog.Logger
}

func NewRotator(interval time.Duration, logger *slog.Logger) (*Rotator, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("recorder: rotation interval must be > 0")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	r := &Rotator{scheduler: s, c: make(chan struct{}, 1), log: logger}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(r.signal),
		gocron.WithName("file-rotation"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create rotation job: %w", err)
	}
	return r, nil
}

func (r *Rotator) signal() {
	select {
	case r.c <- struct{}{}:
	default:
		r.log.Debug("rotation already pending")
	}
}

// C delivers rotation requests.
func (r *Rotator) C() <-chan struct{} { return r.c }

func (r *Rotator) Start() { r.scheduler.Start() }

func (r *Rotator) Stop() error { return r.scheduler.Shutdown() }
