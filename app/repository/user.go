package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

// UserRepository is a read-only view over the users table owned by the
// account service.
type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	var displayName sql.NullString
	user := &entity.User{}

	err := r.db.QueryRowContext(ctx, `SELECT id, display_name, email FROM users WHERE id = ?`, id).
		Scan(&user.ID, &displayName, &user.Email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	user.DisplayName = displayName.String
	return user, nil
}
