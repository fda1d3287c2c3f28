package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/chime-bot/chime/pkg/logger"
)

// Job is a named housekeeping task with a cron schedule.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Scheduler fires registered jobs on their cron schedule, checking once per
// minute. Jobs run sequentially on the scheduler goroutine; housekeeping
// tasks are short and must not overlap each other.
type Scheduler struct {
	mu   sync.Mutex
	gron *gronx.Gronx
	jobs []Job
}

func NewScheduler() *Scheduler {
	return &Scheduler{gron: gronx.New()}
}

// Add registers a job. The schedule must be a valid cron expression.
func (s *Scheduler) Add(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("job %q has no run function", job.Name)
	}
	if !s.gron.IsValid(job.Schedule) {
		return fmt.Errorf("job %q has invalid schedule %q", job.Name, job.Schedule)
	}
	s.mu.Lock()
	s.jobs = append(s.jobs, job)
	s.mu.Unlock()
	return nil
}

// Start runs the scheduler until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	logger.InfoCF("maintenance", "Scheduler started", map[string]interface{}{
		"jobs": len(s.snapshot()),
	})

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoC("maintenance", "Scheduler stopped")
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *Scheduler) snapshot() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, len(s.jobs))
	copy(out, s.jobs)
	return out
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	for _, job := range s.snapshot() {
		due, err := s.gron.IsDue(job.Schedule, now)
		if err != nil {
			logger.WarnCF("maintenance", "Schedule check failed", map[string]interface{}{
				"job":   job.Name,
				"error": err.Error(),
			})
			continue
		}
		if !due {
			continue
		}

		start := time.Now()
		if err := job.Run(ctx); err != nil {
			logger.ErrorCF("maintenance", "Job failed", map[string]interface{}{
				"job":   job.Name,
				"error": err.Error(),
			})
			continue
		}
		logger.DebugCF("maintenance", "Job completed", map[string]interface{}{
			"job":      job.Name,
			"duration": time.Since(start).String(),
		})
	}
}
