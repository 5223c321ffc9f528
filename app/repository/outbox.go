package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

var ErrNotificationNotFound = errors.New("notification not found")

type OutboxRepository struct {
	db DBTX
}

func NewOutboxRepository(db DBTX) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Create(ctx context.Context, n *entity.OutboxNotification) error {
	query := `
		INSERT INTO notification_outbox (
			user_id, kind, payload, status, attempts,
			last_error, next_attempt_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		n.UserID,
		n.Kind,
		n.Payload,
		n.Status,
		n.Attempts,
		nullableStringValue(n.LastError),
		n.NextAttemptAt,
		n.CreatedAt,
		n.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	return nil
}

func (r *OutboxRepository) Update(ctx context.Context, n *entity.OutboxNotification) error {
	query := `
		UPDATE notification_outbox
		SET status = ?, attempts = ?, last_error = ?, next_attempt_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		n.Status,
		n.Attempts,
		nullableStringValue(n.LastError),
		n.NextAttemptAt,
		n.UpdatedAt,
		n.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *OutboxRepository) ListDue(ctx context.Context, nowSQLTime time.Time, limit int) ([]*entity.OutboxNotification, error) {
	query := `
		SELECT id, user_id, kind, payload, status, attempts,
		       last_error, next_attempt_at, created_at, updated_at
		FROM notification_outbox
		WHERE status = ? AND next_attempt_at <= ?
		ORDER BY id ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, entity.NotificationStatusPending, nowSQLTime, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.OutboxNotification, 0)
	for rows.Next() {
		item := &entity.OutboxNotification{}
		if err := scanOutboxNotification(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func scanOutboxNotification(scanner rowScanner, item *entity.OutboxNotification) error {
	var lastError sql.NullString

	err := scanner.Scan(
		&item.ID,
		&item.UserID,
		&item.Kind,
		&item.Payload,
		&item.Status,
		&item.Attempts,
		&lastError,
		&item.NextAttemptAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return err
	}

	item.LastError = stringPtrFromNull(lastError)
	return nil
}
