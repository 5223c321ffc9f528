package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/factory"
	"github.com/vibast-solutions/ms-go-billing/app/notify"
	"github.com/vibast-solutions/ms-go-billing/config"
)

const (
	dispatchTimeout = 5 * time.Second
	maxRetryBackoff = 24 * time.Hour
)

type userDirectory interface {
	FindByID(ctx context.Context, id string) (*entity.User, error)
}

type outboxRepository interface {
	Create(ctx context.Context, n *entity.OutboxNotification) error
	Update(ctx context.Context, n *entity.OutboxNotification) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]*entity.OutboxNotification, error)
}

// SubscriptionNotice describes a committed ledger change worth telling the user about.
type SubscriptionNotice struct {
	Kind         string
	Subscription *entity.Subscription
	Plan         *entity.Plan
	Amount       *decimal.Decimal
	Currency     string
	Reference    string
}

type notificationPayload struct {
	UserID         string     `json:"user_id"`
	DisplayName    string     `json:"display_name,omitempty"`
	Email          string     `json:"email,omitempty"`
	SubscriptionID uint64     `json:"subscription_id"`
	PlanCode       string     `json:"plan_code,omitempty"`
	PlanName       string     `json:"plan_name,omitempty"`
	Amount         string     `json:"amount,omitempty"`
	Currency       string     `json:"currency,omitempty"`
	Reference      string     `json:"reference,omitempty"`
	Status         string     `json:"status"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

// NotificationService delivers ledger notices after commit. Delivery failures
// land in the outbox and never reach the caller.
type NotificationService struct {
	dispatcher notify.Dispatcher
	users      userDirectory
	outbox     outboxRepository
	cfg        config.JobsConfig
	logger     logrus.FieldLogger
	now        func() time.Time
}

func NewNotificationService(dispatcher notify.Dispatcher, users userDirectory, outbox outboxRepository, cfg config.JobsConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		users:      users,
		outbox:     outbox,
		cfg:        cfg,
		logger:     factory.NewModuleLogger("notification-service"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *NotificationService) NotifySubscription(ctx context.Context, notice SubscriptionNotice) {
	if notice.Subscription == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	userID := notice.Subscription.UserID
	logger := s.logger.WithFields(logrus.Fields{
		"user_id":         userID,
		"kind":            notice.Kind,
		"subscription_id": notice.Subscription.ID,
	})

	payload, err := json.Marshal(s.buildPayload(ctx, notice))
	if err != nil {
		logger.WithError(err).Error("failed to encode notification")
		return
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	err = s.dispatcher.Notify(dispatchCtx, userID, notice.Kind, payload)
	cancel()
	if err == nil {
		return
	}

	logger.WithError(err).Warn("notification dispatch failed, queued for retry")
	now := s.now()
	lastError := err.Error()
	row := &entity.OutboxNotification{
		UserID:        userID,
		Kind:          notice.Kind,
		Payload:       payload,
		Status:        entity.NotificationStatusPending,
		Attempts:      1,
		LastError:     &lastError,
		NextAttemptAt: now.Add(s.backoff(1)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.outbox.Create(ctx, row); err != nil {
		logger.WithError(err).WithField("payload", string(payload)).Error("failed to persist notification to outbox")
	}
}

// RunRetryBatch re-dispatches due outbox rows and reports how many were sent.
func (s *NotificationService) RunRetryBatch(ctx context.Context) (int, error) {
	now := s.now()
	items, err := s.outbox.ListDue(ctx, now, s.batchSize())
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, item := range items {
		dispatchCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
		dispatchErr := s.dispatcher.Notify(dispatchCtx, item.UserID, item.Kind, item.Payload)
		cancel()

		item.Attempts++
		item.UpdatedAt = s.now()
		if dispatchErr == nil {
			item.Status = entity.NotificationStatusSent
			item.LastError = nil
			sent++
		} else {
			msg := dispatchErr.Error()
			item.LastError = &msg
			if s.cfg.NotificationMaxAttempts > 0 && item.Attempts >= s.cfg.NotificationMaxAttempts {
				item.Status = entity.NotificationStatusFailed
				s.logger.WithFields(logrus.Fields{
					"notification_id": item.ID,
					"attempts":        item.Attempts,
				}).Error("notification permanently failed")
			} else {
				item.NextAttemptAt = item.UpdatedAt.Add(s.backoff(item.Attempts))
			}
		}

		if err := s.outbox.Update(ctx, item); err != nil {
			s.logger.WithError(err).WithField("notification_id", item.ID).Warn("failed to update outbox row")
		}
	}

	return sent, nil
}

func (s *NotificationService) buildPayload(ctx context.Context, notice SubscriptionNotice) notificationPayload {
	sub := notice.Subscription
	payload := notificationPayload{
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		Currency:       notice.Currency,
		Reference:      notice.Reference,
		Status:         entity.SubscriptionStatusName(sub.Status),
		ExpiresAt:      sub.EndAt,
	}
	if notice.Plan != nil {
		payload.PlanCode = notice.Plan.Code
		payload.PlanName = notice.Plan.DisplayName
	}
	if notice.Amount != nil {
		payload.Amount = notice.Amount.String()
	}

	user, err := s.users.FindByID(ctx, sub.UserID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", sub.UserID).Warn("user lookup failed for notification")
	} else if user != nil {
		payload.DisplayName = user.DisplayName
		payload.Email = user.Email
	}

	return payload
}

func (s *NotificationService) backoff(attempts int) time.Duration {
	base := s.cfg.NotificationRetryEvery
	if base <= 0 {
		base = 5 * time.Minute
	}
	delay := base
	for i := 1; i < attempts && delay < maxRetryBackoff; i++ {
		delay *= 2
	}
	if delay > maxRetryBackoff {
		delay = maxRetryBackoff
	}
	return delay
}

func (s *NotificationService) batchSize() int {
	if s.cfg.NotificationBatchSize <= 0 {
		return 100
	}
	return s.cfg.NotificationBatchSize
}
