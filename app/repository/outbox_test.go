package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

func TestOutboxCreateAssignsID(t *testing.T) {
	repo := NewOutboxRepository(&fakeDB{execFn: func(_ context.Context, _ string, _ ...interface{}) (sql.Result, error) {
		return fakeResult{lastInsertID: 7}, nil
	}})

	n := &entity.OutboxNotification{UserID: "u1", Kind: "subscription.activated", Status: entity.NotificationStatusPending}
	if err := repo.Create(context.Background(), n); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n.ID != 7 {
		t.Fatalf("expected id=7, got %d", n.ID)
	}
}

func TestOutboxUpdateNotFound(t *testing.T) {
	repo := NewOutboxRepository(&fakeDB{execFn: func(_ context.Context, _ string, _ ...interface{}) (sql.Result, error) {
		return fakeResult{rowsAffected: 0}, nil
	}})

	err := repo.Update(context.Background(), &entity.OutboxNotification{ID: 1})
	if !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}
}

func TestScanOutboxNotification(t *testing.T) {
	now := time.Now().UTC()
	item := &entity.OutboxNotification{}
	err := scanOutboxNotification(fakeRowScanner{values: []interface{}{
		uint64(3), "u1", "subscription.renewed", []byte(`{"a":1}`), entity.NotificationStatusPending, 2,
		sql.NullString{String: "broker down", Valid: true}, now, now, now,
	}}, item)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if item.Attempts != 2 || item.LastError == nil || *item.LastError != "broker down" {
		t.Fatalf("unexpected outbox row: %+v", item)
	}
}
