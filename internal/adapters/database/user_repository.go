package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/erdum/Necessi-sub000/internal/domain/users"
)

// PostgresUserRepository implements the user read/caching ports using pgx
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a new PostgreSQL user repository
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, email, display_name, avatar_url, customer_id, gateway_account, bank_account_id, payouts_enabled, created_at, updated_at`

func scanUser(row pgx.Row) (*users.User, error) {
	var user users.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.AvatarURL,
		&user.CustomerID,
		&user.GatewayAccount,
		&user.BankAccountID,
		&user.PayoutsEnabled,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByID retrieves a user by their ID
func (r *PostgresUserRepository) GetUserByID(ctx context.Context, userID uuid.UUID) (*users.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByGatewayAccount retrieves the user owning a connected gateway
// account
func (r *PostgresUserRepository) GetUserByGatewayAccount(ctx context.Context, accountID string) (*users.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE gateway_account = $1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, accountID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("user not found for gateway account")
		}
		return nil, fmt.Errorf("failed to get user by gateway account: %w", err)
	}
	return user, nil
}

// SaveCustomerID caches the payment processor customer id on the user row
func (r *PostgresUserRepository) SaveCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	query := `UPDATE users SET customer_id = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.pool.Exec(ctx, query, customerID, userID)
	if err != nil {
		return fmt.Errorf("failed to save customer id: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

// SaveBankAccount records the external bank account id and enables payouts
func (r *PostgresUserRepository) SaveBankAccount(ctx context.Context, userID uuid.UUID, bankAccountID string) error {
	query := `
		UPDATE users
		SET bank_account_id = $1, payouts_enabled = TRUE, updated_at = NOW()
		WHERE id = $2
	`
	result, err := r.pool.Exec(ctx, query, bankAccountID, userID)
	if err != nil {
		return fmt.Errorf("failed to save bank account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}
