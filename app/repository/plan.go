package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

const planColumns = `
	id, code, name, type, price, currency,
	duration_days, limits, active, created_at, updated_at
`

type PlanRepository struct {
	db DBTX
}

func NewPlanRepository(db DBTX) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) FindByID(ctx context.Context, id uint64) (*entity.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = ?`
	return r.findOne(ctx, query, id)
}

func (r *PlanRepository) FindByCode(ctx context.Context, code string) (*entity.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE code = ?`
	return r.findOne(ctx, query, code)
}

func (r *PlanRepository) ListActive(ctx context.Context) ([]*entity.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE active = 1 ORDER BY price ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Plan, 0)
	for rows.Next() {
		item := &entity.Plan{}
		if err := scanPlan(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *PlanRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.Plan, error) {
	item := &entity.Plan{}
	if err := scanPlan(r.db.QueryRowContext(ctx, query, args...), item); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return item, nil
}

func scanPlan(scanner rowScanner, item *entity.Plan) error {
	var limits []byte

	err := scanner.Scan(
		&item.ID,
		&item.Code,
		&item.DisplayName,
		&item.Type,
		&item.Price,
		&item.Currency,
		&item.DurationDays,
		&limits,
		&item.Active,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return err
	}

	item.Limits = entity.PlanLimits{}
	if len(limits) > 0 {
		if err := json.Unmarshal(limits, &item.Limits); err != nil {
			return fmt.Errorf("plan %d has invalid limits: %w", item.ID, err)
		}
	}

	return nil
}
