package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/notify"
	"github.com/vibast-solutions/ms-go-billing/config"
)

type mockDispatcher struct {
	notifyFn func(ctx context.Context, userID, kind string, payload []byte) error
	payloads [][]byte
}

func (m *mockDispatcher) Notify(ctx context.Context, userID, kind string, payload []byte) error {
	m.payloads = append(m.payloads, payload)
	if m.notifyFn != nil {
		return m.notifyFn(ctx, userID, kind, payload)
	}
	return nil
}

type mockUserDirectory struct {
	findByIDFn func(ctx context.Context, id string) (*entity.User, error)
}

func (m *mockUserDirectory) FindByID(ctx context.Context, id string) (*entity.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return &entity.User{ID: id, DisplayName: "Ana", Email: "ana@example.com"}, nil
}

type mockOutbox struct {
	created   []*entity.OutboxNotification
	updated   []*entity.OutboxNotification
	due       []*entity.OutboxNotification
	createErr error
}

func (m *mockOutbox) Create(_ context.Context, n *entity.OutboxNotification) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, n)
	return nil
}

func (m *mockOutbox) Update(_ context.Context, n *entity.OutboxNotification) error {
	m.updated = append(m.updated, n)
	return nil
}

func (m *mockOutbox) ListDue(context.Context, time.Time, int) ([]*entity.OutboxNotification, error) {
	return m.due, nil
}

func testJobsConfig() config.JobsConfig {
	return config.JobsConfig{
		NotificationRetryEvery:  time.Minute,
		NotificationMaxAttempts: 3,
		NotificationBatchSize:   10,
	}
}

func testNotice() SubscriptionNotice {
	end := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("9.99")
	return SubscriptionNotice{
		Kind:         notify.KindSubscriptionActivated,
		Subscription: &entity.Subscription{ID: 5, UserID: "u1", PlanID: 1, Status: entity.SubscriptionStatusActive, EndAt: &end},
		Plan:         basicPlan(),
		Amount:       &amount,
		Currency:     "EUR",
		Reference:    "SUB_u1_100",
	}
}

func TestNotifySubscriptionDispatches(t *testing.T) {
	dispatcher := &mockDispatcher{}
	outbox := &mockOutbox{}
	svc := NewNotificationService(dispatcher, &mockUserDirectory{}, outbox, testJobsConfig())

	svc.NotifySubscription(context.Background(), testNotice())

	if len(dispatcher.payloads) != 1 || len(outbox.created) != 0 {
		t.Fatalf("expected one dispatch and no outbox rows, got %d/%d", len(dispatcher.payloads), len(outbox.created))
	}
	var payload notificationPayload
	if err := json.Unmarshal(dispatcher.payloads[0], &payload); err != nil {
		t.Fatalf("expected json payload, got %v", err)
	}
	if payload.PlanName != "Basic" || payload.Amount != "9.99" || payload.Email != "ana@example.com" || payload.ExpiresAt == nil {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestNotifySubscriptionQueuesOnFailure(t *testing.T) {
	dispatcher := &mockDispatcher{notifyFn: func(context.Context, string, string, []byte) error {
		return errors.New("broker unavailable")
	}}
	outbox := &mockOutbox{}
	svc := NewNotificationService(dispatcher, &mockUserDirectory{findByIDFn: func(context.Context, string) (*entity.User, error) {
		return nil, errors.New("users db down")
	}}, outbox, testJobsConfig())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	svc.NotifySubscription(context.Background(), testNotice())

	if len(outbox.created) != 1 {
		t.Fatalf("expected one outbox row, got %d", len(outbox.created))
	}
	row := outbox.created[0]
	if row.Status != entity.NotificationStatusPending || row.Attempts != 1 || row.LastError == nil {
		t.Fatalf("unexpected outbox row: %+v", row)
	}
	if !row.NextAttemptAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected next attempt: %v", row.NextAttemptAt)
	}
}

func TestRunRetryBatch(t *testing.T) {
	failing := map[uint64]bool{2: true, 3: true}
	dispatcher := &mockDispatcher{}
	outbox := &mockOutbox{due: []*entity.OutboxNotification{
		{ID: 1, UserID: "u1", Kind: notify.KindSubscriptionActivated, Attempts: 1, Status: entity.NotificationStatusPending},
		{ID: 2, UserID: "u2", Kind: notify.KindSubscriptionRenewed, Attempts: 1, Status: entity.NotificationStatusPending},
		{ID: 3, UserID: "u3", Kind: notify.KindSubscriptionRenewed, Attempts: 2, Status: entity.NotificationStatusPending},
	}}
	svc := NewNotificationService(dispatcher, &mockUserDirectory{}, outbox, testJobsConfig())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	current := uint64(0)
	dispatcher.notifyFn = func(context.Context, string, string, []byte) error {
		current++
		if failing[current] {
			return errors.New("still down")
		}
		return nil
	}

	sent, err := svc.RunRetryBatch(context.Background())
	if err != nil || sent != 1 {
		t.Fatalf("expected one sent, got %d (%v)", sent, err)
	}
	if len(outbox.updated) != 3 {
		t.Fatalf("expected all rows updated, got %d", len(outbox.updated))
	}

	first, second, third := outbox.updated[0], outbox.updated[1], outbox.updated[2]
	if first.Status != entity.NotificationStatusSent || first.LastError != nil {
		t.Fatalf("expected first sent, got %+v", first)
	}
	if second.Status != entity.NotificationStatusPending || second.Attempts != 2 || !second.NextAttemptAt.Equal(now.Add(2*time.Minute)) {
		t.Fatalf("expected second rescheduled with backoff, got %+v", second)
	}
	if third.Status != entity.NotificationStatusFailed || third.Attempts != 3 {
		t.Fatalf("expected third permanently failed, got %+v", third)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	svc := NewNotificationService(&mockDispatcher{}, &mockUserDirectory{}, &mockOutbox{}, testJobsConfig())
	if got := svc.backoff(40); got != maxRetryBackoff {
		t.Fatalf("expected capped backoff, got %v", got)
	}
}
