package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pawtap/server/internal/domain"
)

// PgAdminUserRepository implements AdminUserRepository using pgx.
type PgAdminUserRepository struct{}

// NewPgAdminUserRepository creates a new PgAdminUserRepository.
func NewPgAdminUserRepository() *PgAdminUserRepository {
	return &PgAdminUserRepository{}
}

// FindByEmail returns an admin by email, or nil if not found.
func (r *PgAdminUserRepository) FindByEmail(ctx context.Context, db DBTX, email string) (*domain.AdminUser, error) {
	row := db.QueryRow(ctx,
		`SELECT id, email, password_hash, display_name, role, active, created_at
		 FROM admin_users WHERE email = $1`, email)

	u := &domain.AdminUser{}
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Role, &u.Active, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create inserts an admin. An existing email gets the new hash and display name.
func (r *PgAdminUserRepository) Create(ctx context.Context, db DBTX, admin *domain.AdminUser) error {
	err := db.QueryRow(ctx, `
		INSERT INTO admin_users (email, password_hash, display_name, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			display_name = EXCLUDED.display_name
		RETURNING id, active, created_at`,
		admin.Email, admin.PasswordHash, admin.DisplayName, admin.Role,
	).Scan(&admin.ID, &admin.Active, &admin.CreatedAt)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}
