package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

var (
	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("subscription already exists")
)

const subscriptionColumns = `
	id, user_id, plan_id, status,
	start_at, end_at, payment_method, transaction_id,
	auto_renew, cancelled_at, created_at, updated_at
`

type SubscriptionRepository struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, subscription *entity.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			user_id, plan_id, status,
			start_at, end_at, payment_method, transaction_id,
			auto_renew, cancelled_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		subscription.UserID,
		subscription.PlanID,
		subscription.Status,
		subscription.StartAt,
		nullableTimeValue(subscription.EndAt),
		nullableStringValue(subscription.PaymentMethod),
		nullableStringValue(subscription.TransactionID),
		subscription.AutoRenew,
		nullableTimeValue(subscription.CancelledAt),
		subscription.CreatedAt,
		subscription.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrSubscriptionAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	subscription.ID = uint64(id)
	return nil
}

func (r *SubscriptionRepository) Update(ctx context.Context, subscription *entity.Subscription) error {
	query := `
		UPDATE subscriptions
		SET status = ?, end_at = ?, payment_method = ?, transaction_id = ?,
		    auto_renew = ?, cancelled_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		subscription.Status,
		nullableTimeValue(subscription.EndAt),
		nullableStringValue(subscription.PaymentMethod),
		nullableStringValue(subscription.TransactionID),
		subscription.AutoRenew,
		nullableTimeValue(subscription.CancelledAt),
		subscription.UpdatedAt,
		subscription.ID,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrSubscriptionAlreadyExists
		}
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSubscriptionNotFound
	}

	return nil
}

func (r *SubscriptionRepository) FindByID(ctx context.Context, id uint64) (*entity.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = ?`
	return r.findOne(ctx, query, id)
}

func (r *SubscriptionRepository) FindByTransactionID(ctx context.Context, transactionID string) (*entity.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE transaction_id = ? LIMIT 1`
	return r.findOne(ctx, query, transactionID)
}

// FindActiveByUser returns the newest ACTIVE row regardless of its end date;
// callers decide entitlement.
func (r *SubscriptionRepository) FindActiveByUser(ctx context.Context, userID string) (*entity.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = ? AND status = ?
		ORDER BY id DESC
		LIMIT 1
	`
	return r.findOne(ctx, query, userID, entity.SubscriptionStatusActive)
}

func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID string) ([]*entity.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = ?
		ORDER BY id DESC
	`
	return r.listByQuery(ctx, query, userID)
}

func (r *SubscriptionRepository) ListActiveByUser(ctx context.Context, userID string) ([]*entity.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = ? AND status = ?
		ORDER BY id ASC
	`
	return r.listByQuery(ctx, query, userID, entity.SubscriptionStatusActive)
}

func (r *SubscriptionRepository) ListExpiredActive(ctx context.Context, nowSQLTime time.Time, limit int) ([]*entity.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = ?
		  AND end_at IS NOT NULL
		  AND end_at <= ?
		ORDER BY id ASC
		LIMIT ?
	`
	return r.listByQuery(ctx, query, entity.SubscriptionStatusActive, nowSQLTime, limit)
}

// MarkExpired only flips rows that are still ACTIVE and past their end date,
// so it is safe to race with the reconciler.
func (r *SubscriptionRepository) MarkExpired(ctx context.Context, id uint64, nowSQLTime time.Time) (bool, error) {
	query := `
		UPDATE subscriptions
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ? AND end_at IS NOT NULL AND end_at <= ?
	`

	result, err := r.db.ExecContext(ctx, query,
		entity.SubscriptionStatusExpired,
		nowSQLTime,
		id,
		entity.SubscriptionStatusActive,
		nowSQLTime,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *SubscriptionRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.Subscription, error) {
	item := &entity.Subscription{}
	if err := scanSubscription(r.db.QueryRowContext(ctx, query, args...), item); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *SubscriptionRepository) listByQuery(ctx context.Context, query string, args ...interface{}) ([]*entity.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Subscription, 0)
	for rows.Next() {
		item := &entity.Subscription{}
		if err := scanSubscription(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func scanSubscription(scanner rowScanner, item *entity.Subscription) error {
	var endAt sql.NullTime
	var paymentMethod sql.NullString
	var transactionID sql.NullString
	var cancelledAt sql.NullTime

	err := scanner.Scan(
		&item.ID,
		&item.UserID,
		&item.PlanID,
		&item.Status,
		&item.StartAt,
		&endAt,
		&paymentMethod,
		&transactionID,
		&item.AutoRenew,
		&cancelledAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return err
	}

	item.EndAt = timePtrFromNull(endAt)
	item.PaymentMethod = stringPtrFromNull(paymentMethod)
	item.TransactionID = stringPtrFromNull(transactionID)
	item.CancelledAt = timePtrFromNull(cancelledAt)

	return nil
}
