package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tasktrack/backend/internal/domain"
	"github.com/tasktrack/backend/internal/entitlement"
)

// Notifier delivers a reminder for one task.
type Notifier interface {
	Notify(ctx context.Context, user *domain.User, task *domain.Task) error
}

// LogNotifier writes reminders to the log. Delivery channels plug in as
// other Notifier implementations.
type LogNotifier struct {
	log logrus.FieldLogger
}

func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, user *domain.User, task *domain.Task) error {
	n.log.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"email":       user.Email,
		"task_id":     task.ID,
		"title":       task.Title,
		"reminder_at": task.ReminderAt,
	}).Info("task reminder")
	return nil
}

// ReminderService dispatches reminders that fell due since its last run.
type ReminderService struct {
	tasks    TaskStore
	users    UserStore
	notifier Notifier
	now      Clock
	log      logrus.FieldLogger

	mu      sync.Mutex
	lastRun time.Time
}

// NewReminderService creates a ReminderService. The first Dispatch covers
// reminders due after construction.
func NewReminderService(tasks TaskStore, users UserStore, notifier Notifier, clock Clock, log logrus.FieldLogger) *ReminderService {
	now := clockOrNow(clock)
	return &ReminderService{
		tasks:    tasks,
		users:    users,
		notifier: notifier,
		now:      now,
		log:      log,
		lastRun:  now(),
	}
}

// Dispatch notifies owners of tasks whose reminder_at is in (lastRun, now].
// Owners who no longer hold the reminders entitlement are skipped. It
// returns the number of reminders sent.
func (s *ReminderService) Dispatch(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, to := s.lastRun, s.now()
	due, err := s.tasks.ListReminders(ctx, from, to)
	if err != nil {
		return 0, domain.ErrInternal("failed to list reminders", err)
	}

	owners := map[string]*domain.User{}
	sent := 0
	for _, task := range due {
		owner, ok := owners[task.OwnerID]
		if !ok {
			owner, err = s.users.FindByID(ctx, task.OwnerID)
			if err != nil {
				return sent, domain.ErrInternal("failed to load task owner", err)
			}
			owners[task.OwnerID] = owner
		}
		if owner == nil || !entitlement.CanUseFeature(owner, domain.FeatureReminders, to) {
			continue
		}
		if err := s.notifier.Notify(ctx, owner, task); err != nil {
			s.log.WithError(err).WithField("task_id", task.ID).Warn("failed to send reminder")
			continue
		}
		sent++
	}

	s.lastRun = to
	if sent > 0 {
		s.log.WithField("count", sent).Info("reminders dispatched")
	}
	return sent, nil
}
