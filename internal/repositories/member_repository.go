package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

const memberColumns = `id, chat_id, user_id, role, status, last_message_id, last_read_at,
    muted_at, archived_at, pinned_at, truncated_at, kicked_at, left_at, created_at`

// MemberRepository abstracts membership persistence.
type MemberRepository interface {
	AddMember(ctx context.Context, chatID, userID int64, role models.MemberRole) (models.Member, error)
	GetMember(ctx context.Context, chatID, userID int64) (models.Member, error)
	GetMemberByID(ctx context.Context, memberID int64) (models.Member, error)
	ListMembers(ctx context.Context, chatID int64, fromMemberID int64, limit int) ([]models.Member, error)
	ListActiveMembers(ctx context.Context, chatID int64) ([]models.Member, error)
	ListAllMembers(ctx context.Context, chatID int64) ([]models.Member, error)
	ListMembershipsForUser(ctx context.Context, userID int64) ([]models.Member, error)
	Kick(ctx context.Context, memberID int64) (models.Member, error)
	Leave(ctx context.Context, memberID int64, truncate bool) (models.Member, error)
	ChangeRole(ctx context.Context, memberID int64, role models.MemberRole) (models.Member, error)
	SetFlag(ctx context.Context, memberID int64, flag models.MemberFlag, at *time.Time) error
	CountPinnedChats(ctx context.Context, userID int64) (int, error)
	SetLastReadAt(ctx context.Context, memberID int64, at time.Time) error
}

// MemberRepo is a sqlx implementation of MemberRepository.
type MemberRepo struct {
	db *sqlx.DB
}

// NewMemberRepo constructs a MemberRepo.
func NewMemberRepo(db *sqlx.DB) *MemberRepo {
	return &MemberRepo{db: db}
}

// AddMember creates a membership or reactivates an inactive one. An existing
// active membership is a conflict. Reactivation clears kicked_at/left_at but
// keeps truncated_at, so history hidden by leaving stays hidden.
func (r *MemberRepo) AddMember(ctx context.Context, chatID, userID int64, role models.MemberRole) (models.Member, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Member{}, err
	}
	defer tx.Rollback()

	var existing models.Member
	err = tx.GetContext(ctx, &existing,
		`SELECT `+memberColumns+` FROM members WHERE chat_id=$1 AND user_id=$2 FOR UPDATE`,
		chatID, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		var member models.Member
		if err := tx.GetContext(ctx, &member,
			`INSERT INTO members (chat_id, user_id, role, status, last_read_at)
             VALUES ($1, $2, $3, 'Active', NOW()) RETURNING `+memberColumns,
			chatID, userID, role); err != nil {
			return models.Member{}, err
		}
		return member, tx.Commit()
	case err != nil:
		return models.Member{}, err
	case existing.Active():
		return models.Member{}, ErrAlreadyMember
	default:
		var member models.Member
		if err := tx.GetContext(ctx, &member,
			`UPDATE members SET status='Active', kicked_at=NULL, left_at=NULL
             WHERE id=$1 RETURNING `+memberColumns,
			existing.ID); err != nil {
			return models.Member{}, err
		}
		return member, tx.Commit()
	}
}

// GetMember fetches the (chat, user) membership.
func (r *MemberRepo) GetMember(ctx context.Context, chatID, userID int64) (models.Member, error) {
	var member models.Member
	err := r.db.GetContext(ctx, &member,
		`SELECT `+memberColumns+` FROM members WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Member{}, ErrMemberNotFound
	}
	return member, err
}

// GetMemberByID fetches a membership by its row id.
func (r *MemberRepo) GetMemberByID(ctx context.Context, memberID int64) (models.Member, error) {
	var member models.Member
	err := r.db.GetContext(ctx, &member,
		`SELECT `+memberColumns+` FROM members WHERE id=$1`, memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Member{}, ErrMemberNotFound
	}
	return member, err
}

// ListMembers pages members of a chat by descending id.
func (r *MemberRepo) ListMembers(ctx context.Context, chatID int64, fromMemberID int64, limit int) ([]models.Member, error) {
	if limit <= 0 {
		limit = 30
	}
	var members []models.Member
	var err error
	if fromMemberID > 0 {
		err = r.db.SelectContext(ctx, &members,
			`SELECT `+memberColumns+` FROM members WHERE chat_id=$1 AND id < $2 ORDER BY id DESC LIMIT $3`,
			chatID, fromMemberID, limit)
	} else {
		err = r.db.SelectContext(ctx, &members,
			`SELECT `+memberColumns+` FROM members WHERE chat_id=$1 ORDER BY id DESC LIMIT $2`,
			chatID, limit)
	}
	return members, err
}

// ListActiveMembers returns members with status Active.
func (r *MemberRepo) ListActiveMembers(ctx context.Context, chatID int64) ([]models.Member, error) {
	var members []models.Member
	err := r.db.SelectContext(ctx, &members,
		`SELECT `+memberColumns+` FROM members WHERE chat_id=$1 AND status='Active' ORDER BY id`, chatID)
	return members, err
}

// ListAllMembers returns every membership row of a chat regardless of status.
func (r *MemberRepo) ListAllMembers(ctx context.Context, chatID int64) ([]models.Member, error) {
	var members []models.Member
	err := r.db.SelectContext(ctx, &members,
		`SELECT `+memberColumns+` FROM members WHERE chat_id=$1 ORDER BY id`, chatID)
	return members, err
}

// ListMembershipsForUser returns all of a user's membership rows.
func (r *MemberRepo) ListMembershipsForUser(ctx context.Context, userID int64) ([]models.Member, error) {
	var members []models.Member
	err := r.db.SelectContext(ctx, &members,
		`SELECT `+memberColumns+` FROM members WHERE user_id=$1`, userID)
	return members, err
}

// Kick marks the membership Kicked. Row-level update keyed by id so concurrent
// kick/leave cannot produce a lost update.
func (r *MemberRepo) Kick(ctx context.Context, memberID int64) (models.Member, error) {
	var member models.Member
	err := r.db.GetContext(ctx, &member,
		`UPDATE members SET status='Kicked', kicked_at=NOW() WHERE id=$1 RETURNING `+memberColumns,
		memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Member{}, ErrMemberNotFound
	}
	return member, err
}

// Leave marks the membership Left; for delete-for-me flows it also truncates.
func (r *MemberRepo) Leave(ctx context.Context, memberID int64, truncate bool) (models.Member, error) {
	query := `UPDATE members SET status='Left', left_at=NOW() WHERE id=$1 RETURNING ` + memberColumns
	if truncate {
		query = `UPDATE members SET status='Left', left_at=NOW(), truncated_at=NOW() WHERE id=$1 RETURNING ` + memberColumns
	}
	var member models.Member
	err := r.db.GetContext(ctx, &member, query, memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Member{}, ErrMemberNotFound
	}
	return member, err
}

// ChangeRole assigns a new role.
func (r *MemberRepo) ChangeRole(ctx context.Context, memberID int64, role models.MemberRole) (models.Member, error) {
	var member models.Member
	err := r.db.GetContext(ctx, &member,
		`UPDATE members SET role=$2 WHERE id=$1 RETURNING `+memberColumns, memberID, role)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Member{}, ErrMemberNotFound
	}
	return member, err
}

func flagColumn(flag models.MemberFlag) (string, error) {
	switch flag {
	case models.FlagMuted:
		return "muted_at", nil
	case models.FlagArchived:
		return "archived_at", nil
	case models.FlagPinned:
		return "pinned_at", nil
	case models.FlagTruncated:
		return "truncated_at", nil
	default:
		return "", fmt.Errorf("unknown member flag %q", flag)
	}
}

// SetFlag sets or clears one of the per-member timestamp flags. Setting the
// pin flag enforces the global cap of 3 pinned chats per user.
func (r *MemberRepo) SetFlag(ctx context.Context, memberID int64, flag models.MemberFlag, at *time.Time) error {
	column, err := flagColumn(flag)
	if err != nil {
		return err
	}

	if flag == models.FlagPinned && at != nil {
		member, err := r.GetMemberByID(ctx, memberID)
		if err != nil {
			return err
		}
		count, err := r.CountPinnedChats(ctx, member.UserID)
		if err != nil {
			return err
		}
		if count >= 3 {
			return ErrPinLimitExceeded
		}
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE members SET `+column+`=$2 WHERE id=$1`, memberID, at)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// CountPinnedChats counts the user's pinned memberships across all chats.
func (r *MemberRepo) CountPinnedChats(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM members WHERE user_id=$1 AND pinned_at IS NOT NULL`, userID)
	return count, err
}

// SetLastReadAt advances the member's read marker.
func (r *MemberRepo) SetLastReadAt(ctx context.Context, memberID int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE members SET last_read_at=$2 WHERE id=$1`, memberID, at)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMemberNotFound
	}
	return nil
}
