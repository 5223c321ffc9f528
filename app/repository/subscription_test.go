package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

type fakeDB struct {
	execFn func(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (f *fakeDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if f.execFn != nil {
		return f.execFn(ctx, query, args...)
	}
	return fakeResult{lastInsertID: 1, rowsAffected: 1}, nil
}

func (f *fakeDB) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}

type fakeResult struct {
	lastInsertID int64
	rowsAffected int64
	lastErr      error
	rowsErr      error
}

func (r fakeResult) LastInsertId() (int64, error) {
	return r.lastInsertID, r.lastErr
}

func (r fakeResult) RowsAffected() (int64, error) {
	return r.rowsAffected, r.rowsErr
}

func TestCreateSuccess(t *testing.T) {
	var gotArgs []interface{}
	repo := NewSubscriptionRepository(&fakeDB{execFn: func(_ context.Context, _ string, args ...interface{}) (sql.Result, error) {
		gotArgs = args
		return fakeResult{lastInsertID: 22}, nil
	}})

	now := time.Now().UTC()
	ref := "SUB_u1_100"
	s := &entity.Subscription{
		UserID:        "u1",
		PlanID:        2,
		Status:        entity.SubscriptionStatusActive,
		StartAt:       now,
		TransactionID: &ref,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if s.ID != 22 {
		t.Fatalf("expected id=22, got %d", s.ID)
	}
	if gotArgs[4] != nil {
		t.Fatalf("expected NULL end_at for non-expiring row, got %#v", gotArgs[4])
	}
	if gotArgs[6] != ref {
		t.Fatalf("expected transaction id arg, got %#v", gotArgs[6])
	}
}

func TestCreateMapsDuplicate(t *testing.T) {
	repo := NewSubscriptionRepository(&fakeDB{execFn: func(_ context.Context, _ string, _ ...interface{}) (sql.Result, error) {
		return nil, &mysqlDriver.MySQLError{Number: 1062, Message: "duplicate"}
	}})

	err := repo.Create(context.Background(), &entity.Subscription{})
	if !errors.Is(err, ErrSubscriptionAlreadyExists) {
		t.Fatalf("expected ErrSubscriptionAlreadyExists, got %v", err)
	}
}

func TestUpdateNoRowsAffected(t *testing.T) {
	repo := NewSubscriptionRepository(&fakeDB{execFn: func(_ context.Context, _ string, _ ...interface{}) (sql.Result, error) {
		return fakeResult{rowsAffected: 0}, nil
	}})

	err := repo.Update(context.Background(), &entity.Subscription{ID: 1})
	if !errors.Is(err, ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
}

func TestMarkExpiredGuardsStatus(t *testing.T) {
	var gotQuery string
	repo := NewSubscriptionRepository(&fakeDB{execFn: func(_ context.Context, query string, _ ...interface{}) (sql.Result, error) {
		gotQuery = query
		return fakeResult{rowsAffected: 0}, nil
	}})

	flipped, err := repo.MarkExpired(context.Background(), 5, time.Now().UTC())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if flipped {
		t.Fatal("expected no flip when no rows affected")
	}
	if !strings.Contains(gotQuery, "status = ?") || !strings.Contains(gotQuery, "end_at <= ?") {
		t.Fatalf("expected guarded update, got %s", gotQuery)
	}
}

func TestIsDuplicateEntryError(t *testing.T) {
	if !isDuplicateEntryError(&mysqlDriver.MySQLError{Number: 1062}) {
		t.Fatal("expected true for mysql duplicate error")
	}
	if isDuplicateEntryError(errors.New("boom")) {
		t.Fatal("expected false for generic error")
	}
}

func TestNullableHelpers(t *testing.T) {
	if nullableStringValue(nil) != nil {
		t.Fatal("expected nil for nil string")
	}
	s := "  card  "
	if got := nullableStringValue(&s); got != "card" {
		t.Fatalf("expected trimmed value, got %#v", got)
	}
	tm := time.Now().UTC()
	if nullableTimeValue(nil) != nil {
		t.Fatal("expected nil for nil time")
	}
	if got := nullableTimeValue(&tm); got == nil {
		t.Fatal("expected non-nil for time value")
	}
	if stringPtrFromNull(sql.NullString{}) != nil || timePtrFromNull(sql.NullTime{}) != nil {
		t.Fatal("expected nil pointers for invalid nulls")
	}
}

type fakeRowScanner struct {
	values []interface{}
	err    error
}

func (f fakeRowScanner) Scan(dest ...interface{}) error {
	if f.err != nil {
		return f.err
	}
	for i, v := range f.values {
		switch d := dest[i].(type) {
		case *uint64:
			*d = v.(uint64)
		case *int32:
			*d = v.(int32)
		case *int:
			*d = v.(int)
		case *string:
			*d = v.(string)
		case *bool:
			*d = v.(bool)
		case *[]byte:
			*d = v.([]byte)
		case *time.Time:
			*d = v.(time.Time)
		case *sql.NullString:
			*d = v.(sql.NullString)
		case *sql.NullTime:
			*d = v.(sql.NullTime)
		case sql.Scanner:
			if err := d.Scan(v); err != nil {
				return err
			}
		default:
			return errors.New("unsupported scan destination")
		}
	}
	return nil
}

func TestScanSubscription(t *testing.T) {
	now := time.Now().UTC()
	end := now.Add(time.Hour)

	item := &entity.Subscription{}
	err := scanSubscription(fakeRowScanner{values: []interface{}{
		uint64(9),
		"u-1",
		uint64(2),
		entity.SubscriptionStatusActive,
		now.Add(-time.Hour),
		sql.NullTime{Time: end, Valid: true},
		sql.NullString{String: "card", Valid: true},
		sql.NullString{String: "SUB_u-1_100", Valid: true},
		false,
		sql.NullTime{},
		now,
		now,
	}}, item)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if item.ID != 9 || item.UserID != "u-1" || item.PlanID != 2 {
		t.Fatalf("unexpected scan result: %+v", item)
	}
	if item.EndAt == nil || !item.EndAt.Equal(end) || item.TransactionID == nil || *item.TransactionID != "SUB_u-1_100" {
		t.Fatalf("expected nullable columns populated: %+v", item)
	}
	if item.CancelledAt != nil {
		t.Fatalf("expected nil cancelled_at, got %v", item.CancelledAt)
	}
}

func TestScanSubscriptionError(t *testing.T) {
	if err := scanSubscription(fakeRowScanner{err: sql.ErrNoRows}, &entity.Subscription{}); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}
