package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

var ErrPaymentEventExists = errors.New("payment event already recorded")

type PaymentEventRepository struct {
	db DBTX
}

func NewPaymentEventRepository(db DBTX) *PaymentEventRepository {
	return &PaymentEventRepository{db: db}
}

func (r *PaymentEventRepository) Create(ctx context.Context, event *entity.PaymentEvent) error {
	query := `
		INSERT INTO payment_events (
			reference, event_type, user_id, plan_id, subscription_id,
			amount, currency, payment_method, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		event.Reference,
		event.EventType,
		event.UserID,
		event.PlanID,
		event.SubscriptionID,
		event.Amount,
		event.Currency,
		event.PaymentMethod,
		event.CreatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentEventExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)
	return nil
}

func (r *PaymentEventRepository) ExistsByReference(ctx context.Context, reference string) (bool, error) {
	var id uint64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM payment_events WHERE reference = ? LIMIT 1`, reference).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
