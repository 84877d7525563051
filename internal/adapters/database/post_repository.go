package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/erdum/Necessi-sub000/internal/domain/posts"
)

// PostgresPostRepository implements bids.PostRepository and
// settlement.PostReader using pgx
type PostgresPostRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPostRepository creates a new PostgreSQL post repository
func NewPostgresPostRepository(pool *pgxpool.Pool) *PostgresPostRepository {
	return &PostgresPostRepository{pool: pool}
}

const postColumns = `id, user_id, title, type, budget, start_date, end_date, created_at, updated_at`

func scanPost(row pgx.Row) (*posts.Post, error) {
	var post posts.Post
	err := row.Scan(
		&post.ID,
		&post.UserID,
		&post.Title,
		&post.Type,
		&post.Budget,
		&post.StartDate,
		&post.EndDate,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// GetPostByID retrieves a post by its ID
func (r *PostgresPostRepository) GetPostByID(ctx context.Context, postID uuid.UUID) (*posts.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.pool.QueryRow(ctx, query, postID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("post not found")
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

// GetPostByIDForUpdate retrieves a post and locks its row so concurrent
// submits and accepts on the same post serialize
func (r *PostgresPostRepository) GetPostByIDForUpdate(ctx context.Context, tx pgx.Tx, postID uuid.UUID) (*posts.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1 FOR UPDATE`
	post, err := scanPost(tx.QueryRow(ctx, query, postID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("post not found")
		}
		return nil, fmt.Errorf("failed to get post for update: %w", err)
	}
	return post, nil
}
