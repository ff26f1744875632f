// Package scheduler runs the periodic background jobs (reminder dispatch,
// subscription expiry). When a Redis client is configured each run takes a
// redsync mutex so only one instance executes a given job.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	lockPrefix = "tasktrack:job:"
	jobTimeout = 5 * time.Minute
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler wraps cron with optional distributed job locks.
type Scheduler struct {
	cron *cron.Cron
	rs   *redsync.Redsync
	log  logrus.FieldLogger
}

// New creates a Scheduler evaluating specs in loc. rs may be nil.
func New(loc *time.Location, rs *redsync.Redsync, log logrus.FieldLogger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		rs:   rs,
		log:  log,
	}
}

// NewRedsync builds a redsync instance over a go-redis client.
func NewRedsync(rdb *redis.Client) *redsync.Redsync {
	return redsync.New(goredis.NewPool(rdb))
}

// Add registers job under name with a standard cron spec or descriptor
// such as "@every 1m".
func (s *Scheduler) Add(name, spec string, job Job) error {
	if _, err := s.cron.AddFunc(spec, func() { s.Run(context.Background(), name, job) }); err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	s.log.WithFields(logrus.Fields{"job": name, "schedule": spec}).Info("job scheduled")
	return nil
}

// Run executes job once, under the job lock when one is configured.
// A run that cannot take the lock is skipped.
func (s *Scheduler) Run(ctx context.Context, name string, job Job) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	log := s.log.WithField("job", name)

	if s.rs != nil {
		mutex := s.rs.NewMutex(lockPrefix+name,
			redsync.WithExpiry(jobTimeout),
			redsync.WithTries(1),
		)
		if err := mutex.LockContext(ctx); err != nil {
			log.WithError(err).Debug("job lock busy, skipping run")
			return
		}
		defer func() {
			if _, err := mutex.UnlockContext(context.Background()); err != nil {
				log.WithError(err).Warn("failed to release job lock")
			}
		}()
	}

	start := time.Now()
	if err := job(ctx); err != nil {
		log.WithError(err).Error("job failed")
		return
	}
	log.WithField("duration", time.Since(start)).Debug("job finished")
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs or ctx expiry.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
