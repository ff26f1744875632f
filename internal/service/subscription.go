package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tasktrack/backend/internal/domain"
	"github.com/tasktrack/backend/internal/entitlement"
)

// SubscriptionService flips plan state and projects current entitlements.
// Upgrades are direct state changes; there is no payment step.
type SubscriptionService struct {
	tx      Transactor
	users   UserStore
	tasks   TaskStore
	history PlanChangeLog
	notes   noteCipher
	now     Clock
	log     logrus.FieldLogger
}

// NewSubscriptionService creates a new SubscriptionService. sealer may be
// nil when notes are stored in plaintext.
func NewSubscriptionService(tx Transactor, users UserStore, tasks TaskStore, history PlanChangeLog, sealer NoteSealer, clock Clock, log logrus.FieldLogger) *SubscriptionService {
	return &SubscriptionService{
		tx:      tx,
		users:   users,
		tasks:   tasks,
		history: history,
		notes:   noteCipher{sealer: sealer},
		now:     clockOrNow(clock),
		log:     log,
	}
}

// GetStatus projects the user's plan, usage and effective feature flags.
func (s *SubscriptionService) GetStatus(ctx context.Context, u *domain.User) (*domain.SubscriptionStatus, error) {
	count, err := s.tasks.CountByOwner(ctx, u.ID)
	if err != nil {
		return nil, domain.ErrInternal("failed to count tasks", err)
	}
	status := project(u, count, s.now())
	return &status, nil
}

func project(u *domain.User, count int, now time.Time) domain.SubscriptionStatus {
	premium := entitlement.IsPremium(u, now)
	status := domain.SubscriptionStatus{
		Plan:             u.Plan,
		ExpiresAt:        u.PlanExpiresAt,
		CurrentTaskCount: count,
		Remaining:        entitlement.Remaining(u, count, now),
		CanSetReminders:  entitlement.CanUseFeature(u, domain.FeatureReminders, now),
		CanUseCategories: entitlement.CanUseFeature(u, domain.FeatureCategories, now),
		CanExportData:    entitlement.CanUseFeature(u, domain.FeatureExport, now),
		IsPremium:        premium,
	}
	if !premium {
		limit := u.TaskLimit
		status.TaskLimit = &limit
	}
	return status
}

// Upgrade moves the user to premium for one term and records the change.
func (s *SubscriptionService) Upgrade(ctx context.Context, u *domain.User) (*domain.UpgradeResponse, error) {
	now := s.now()
	if entitlement.IsPremium(u, now) {
		return nil, domain.ErrAlreadyPremium()
	}

	var upgraded domain.User
	var count int
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		fresh, err := s.users.LockForUpdate(ctx, u.ID)
		if err != nil {
			return domain.ErrInternal("failed to load user", err)
		}
		if fresh == nil {
			return domain.ErrNotFound("user not found")
		}
		if entitlement.IsPremium(fresh, now) {
			return domain.ErrAlreadyPremium()
		}

		from := fresh.Plan
		expires := now.Add(domain.PremiumTerm)
		upgraded = *fresh
		upgraded.Plan = domain.PlanPremium
		upgraded.PlanExpiresAt = &expires
		upgraded.TaskLimit = domain.UnlimitedTaskLimit
		upgraded.CanSetReminders = true
		upgraded.CanUseCategories = true
		upgraded.CanExportData = true
		upgraded.UpdatedAt = now

		if err := s.users.UpdateSubscription(ctx, &upgraded); err != nil {
			return storeErr("failed to update subscription", err)
		}
		change := domain.NewPlanChange(upgraded.ID, from, domain.PlanPremium, domain.PlanActionUpgrade, &expires, now)
		if err := s.history.Record(ctx, change); err != nil {
			return domain.ErrInternal("failed to record plan change", err)
		}
		if count, err = s.tasks.CountByOwner(ctx, upgraded.ID); err != nil {
			return domain.ErrInternal("failed to count tasks", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": u.ID, "expires_at": upgraded.PlanExpiresAt}).Info("subscription upgraded")
	*u = upgraded
	return &domain.UpgradeResponse{
		Message:      "Successfully upgraded to Premium!",
		Subscription: project(&upgraded, count, now),
	}, nil
}

// ExportData returns a serializable snapshot of the user's tasks.
func (s *SubscriptionService) ExportData(ctx context.Context, u *domain.User) (*domain.Export, error) {
	now := s.now()
	if !entitlement.CanUseFeature(u, domain.FeatureExport, now) {
		return nil, domain.ErrFeatureGated(domain.FeatureExport)
	}

	tasks, err := s.tasks.ListByOwner(ctx, u.ID, nil)
	if err != nil {
		return nil, domain.ErrInternal("failed to list tasks", err)
	}
	if err := s.notes.open(tasks...); err != nil {
		return nil, err
	}

	return &domain.Export{
		User: domain.ExportUser{
			ID:    u.ID,
			Name:  u.Name,
			Email: u.Email,
			Plan:  u.Plan,
		},
		Tasks:      tasks,
		ExportedAt: now,
	}, nil
}

// History lists the user's plan changes, newest first.
func (s *SubscriptionService) History(ctx context.Context, u *domain.User) ([]*domain.PlanChange, error) {
	changes, err := s.history.ListByUser(ctx, u.ID)
	if err != nil {
		return nil, domain.ErrInternal("failed to list plan changes", err)
	}
	return changes, nil
}

// ExpireLapsed reverts premium users whose term has ended to the basic
// defaults and returns how many were reverted.
func (s *SubscriptionService) ExpireLapsed(ctx context.Context) (int, error) {
	now := s.now()
	lapsed, err := s.users.ListLapsedPremium(ctx, now)
	if err != nil {
		return 0, domain.ErrInternal("failed to list lapsed subscriptions", err)
	}

	expired := 0
	for _, u := range lapsed {
		reverted := false
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			fresh, err := s.users.LockForUpdate(ctx, u.ID)
			if err != nil {
				return err
			}
			if fresh == nil || fresh.Plan != domain.PlanPremium || entitlement.IsPremium(fresh, now) {
				return nil
			}

			lapsedAt := fresh.PlanExpiresAt
			fresh.Plan = domain.PlanBasic
			fresh.PlanExpiresAt = nil
			fresh.TaskLimit = domain.DefaultTaskLimit
			fresh.CanSetReminders = false
			fresh.CanUseCategories = false
			fresh.CanExportData = false
			fresh.UpdatedAt = now
			if err := s.users.UpdateSubscription(ctx, fresh); err != nil {
				return err
			}
			change := domain.NewPlanChange(fresh.ID, domain.PlanPremium, domain.PlanBasic, domain.PlanActionExpired, lapsedAt, now)
			if err := s.history.Record(ctx, change); err != nil {
				return err
			}
			reverted = true
			return nil
		})
		if err != nil {
			s.log.WithError(err).WithField("user_id", u.ID).Warn("failed to expire subscription")
			continue
		}
		if reverted {
			expired++
		}
	}

	if expired > 0 {
		s.log.WithField("count", expired).Info("expired lapsed subscriptions")
	}
	return expired, nil
}
