package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

// LedgerTx is the set of ledger reads and writes available while a user's
// lock is held. Everything done through it commits or rolls back together.
type LedgerTx interface {
	PaymentEventExists(ctx context.Context, reference string) (bool, error)
	FindSubscriptionByTransactionID(ctx context.Context, transactionID string) (*entity.Subscription, error)
	FindSubscriptionByID(ctx context.Context, id uint64) (*entity.Subscription, error)
	ListActiveSubscriptions(ctx context.Context, userID string) ([]*entity.Subscription, error)
	CreateSubscription(ctx context.Context, subscription *entity.Subscription) error
	UpdateSubscription(ctx context.Context, subscription *entity.Subscription) error
	CreatePaymentEvent(ctx context.Context, event *entity.PaymentEvent) error
}

type txConn interface {
	DBTX
	Commit() error
	Rollback() error
}

// Ledger serialises subscription writes per user with a row lock on
// subscription_user_locks held for the lifetime of a transaction.
type Ledger struct {
	begin func(ctx context.Context) (txConn, error)
}

func NewLedger(db TxBeginner) *Ledger {
	return &Ledger{
		begin: func(ctx context.Context) (txConn, error) {
			tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
			if err != nil {
				return nil, err
			}
			return tx, nil
		},
	}
}

func (l *Ledger) WithUserLock(ctx context.Context, userID string, fn func(tx LedgerTx) error) (err error) {
	conn, err := l.begin(ctx)
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = conn.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := conn.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback ledger transaction: %w", rbErr))
			}
		}
	}()

	if err = lockUser(ctx, conn, userID); err != nil {
		return err
	}
	if err = fn(newLedgerTx(conn)); err != nil {
		return err
	}
	if err = conn.Commit(); err != nil {
		return fmt.Errorf("commit ledger transaction: %w", err)
	}
	return nil
}

func lockUser(ctx context.Context, db DBTX, userID string) error {
	query := `
		INSERT INTO subscription_user_locks (user_id, locked_at)
		VALUES (?, ?)
		ON DUPLICATE KEY UPDATE locked_at = VALUES(locked_at)
	`
	if _, err := db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("lock user %s: %w", userID, err)
	}
	return nil
}

type ledgerTx struct {
	subscriptions *SubscriptionRepository
	events        *PaymentEventRepository
}

func newLedgerTx(db DBTX) *ledgerTx {
	return &ledgerTx{
		subscriptions: NewSubscriptionRepository(db),
		events:        NewPaymentEventRepository(db),
	}
}

func (t *ledgerTx) PaymentEventExists(ctx context.Context, reference string) (bool, error) {
	return t.events.ExistsByReference(ctx, reference)
}

func (t *ledgerTx) FindSubscriptionByTransactionID(ctx context.Context, transactionID string) (*entity.Subscription, error) {
	return t.subscriptions.FindByTransactionID(ctx, transactionID)
}

func (t *ledgerTx) FindSubscriptionByID(ctx context.Context, id uint64) (*entity.Subscription, error) {
	return t.subscriptions.FindByID(ctx, id)
}

func (t *ledgerTx) ListActiveSubscriptions(ctx context.Context, userID string) ([]*entity.Subscription, error) {
	return t.subscriptions.ListActiveByUser(ctx, userID)
}

func (t *ledgerTx) CreateSubscription(ctx context.Context, subscription *entity.Subscription) error {
	return t.subscriptions.Create(ctx, subscription)
}

func (t *ledgerTx) UpdateSubscription(ctx context.Context, subscription *entity.Subscription) error {
	return t.subscriptions.Update(ctx, subscription)
}

func (t *ledgerTx) CreatePaymentEvent(ctx context.Context, event *entity.PaymentEvent) error {
	return t.events.Create(ctx, event)
}
