package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

// InvitedUser is an accepted invite projected for event chat creation.
type InvitedUser struct {
	UserID     int64  `db:"user_id"`
	Permission string `db:"user_permission"`
}

// EventRepository reads the calendar subsystem's records. Events themselves
// are owned elsewhere; only the chat backlink is written here.
type EventRepository interface {
	GetEvent(ctx context.Context, eventID int64) (models.Event, error)
	SetChat(ctx context.Context, eventID int64, chatID *int64) error
	ListAcceptedInvites(ctx context.Context, eventID int64) ([]InvitedUser, error)
}

// EventRepo is a sqlx implementation of EventRepository.
type EventRepo struct {
	db *sqlx.DB
}

// NewEventRepo constructs an EventRepo.
func NewEventRepo(db *sqlx.DB) *EventRepo {
	return &EventRepo{db: db}
}

// GetEvent fetches one event.
func (r *EventRepo) GetEvent(ctx context.Context, eventID int64) (models.Event, error) {
	var event models.Event
	err := r.db.GetContext(ctx, &event,
		`SELECT id, title, description, cover_url, starts_at, ends_at, author_id, chat_id
         FROM events WHERE id=$1`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, ErrEventNotFound
	}
	return event, err
}

// SetChat links or unlinks the event's chat.
func (r *EventRepo) SetChat(ctx context.Context, eventID int64, chatID *int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET chat_id=$2 WHERE id=$1`, eventID, chatID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrEventNotFound
	}
	return nil
}

// ListAcceptedInvites returns the users who accepted the event invite.
func (r *EventRepo) ListAcceptedInvites(ctx context.Context, eventID int64) ([]InvitedUser, error) {
	var invited []InvitedUser
	err := r.db.SelectContext(ctx, &invited,
		`SELECT user_id, user_permission FROM invites WHERE event_id=$1 AND status='Accepted'`, eventID)
	return invited, err
}
