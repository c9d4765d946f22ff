package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"kitdash/internal/model"
)

type AdminUserRepository struct {
	db *pgxpool.Pool
}

func NewAdminUserRepository(db *pgxpool.Pool) *AdminUserRepository {
	return &AdminUserRepository{db: db}
}

// Create inserts a new admin account.
func (r *AdminUserRepository) Create(ctx context.Context, u *model.AdminUser) error {
	query := `
		INSERT INTO admin_users (email, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query, u.Email, u.PasswordHash).Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// FindByEmail returns the admin by email.
func (r *AdminUserRepository) FindByEmail(ctx context.Context, email string) (*model.AdminUser, error) {
	query := `
		SELECT id, email, password_hash, created_at
		FROM admin_users
		WHERE email = $1
	`
	var u model.AdminUser
	err := r.db.QueryRow(ctx, query, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, "admin user")
	}
	return &u, nil
}
