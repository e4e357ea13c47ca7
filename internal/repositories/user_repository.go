package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

// UserRepository reads account projections and records presence side effects.
type UserRepository interface {
	GetUser(ctx context.Context, userID int64) (models.User, error)
	BulkUsers(ctx context.Context, ids []int64) ([]models.User, error)
	SetOnline(ctx context.Context, userID int64, online bool) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser fetches one user.
func (r *UserRepo) GetUser(ctx context.Context, userID int64) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT id, username, phone, is_online, last_online FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// BulkUsers fetches multiple users in one query.
func (r *UserRepo) BulkUsers(ctx context.Context, ids []int64) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	query, args, err := sqlx.In(
		`SELECT id, username, phone, is_online, last_online FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var users []models.User
	err = r.db.SelectContext(ctx, &users, query, args...)
	return users, err
}

// SetOnline flips the presence flag; going offline also stamps last_online.
// Advisory only, last writer wins.
func (r *UserRepo) SetOnline(ctx context.Context, userID int64, online bool) error {
	if online {
		_, err := r.db.ExecContext(ctx,
			`UPDATE users SET is_online=TRUE WHERE id=$1`, userID)
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_online=FALSE, last_online=$2 WHERE id=$1`, userID, time.Now().UTC())
	return err
}
