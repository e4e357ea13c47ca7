package models

import "time"

// MemberRole is the member's permission level inside one chat.
type MemberRole string

const (
	RoleOwner       MemberRole = "Owner"
	RoleAdmin       MemberRole = "Admin"
	RoleParticipant MemberRole = "Participant"
)

// ValidAssignableRole reports whether role may be assigned through the
// change-role operation. Ownership is never assigned this way.
func ValidAssignableRole(role MemberRole) bool {
	return role == RoleAdmin || role == RoleParticipant
}

// MemberStatus tracks participation. Kicked and Left rows persist for history.
type MemberStatus string

const (
	StatusActive MemberStatus = "Active"
	StatusKicked MemberStatus = "Kicked"
	StatusLeft   MemberStatus = "Left"
)

// MemberFlag names the per-member timestamp flags toggled by chat actions.
type MemberFlag string

const (
	FlagMuted     MemberFlag = "muted"
	FlagArchived  MemberFlag = "archived"
	FlagPinned    MemberFlag = "pinned"
	FlagTruncated MemberFlag = "truncated"
)

// Member is a user's participation record in one chat, unique per (chat, user).
type Member struct {
	ID            int64        `db:"id" json:"id"`
	ChatID        int64        `db:"chat_id" json:"chat_id"`
	UserID        int64        `db:"user_id" json:"user_id"`
	Role          MemberRole   `db:"role" json:"role"`
	Status        MemberStatus `db:"status" json:"status"`
	LastMessageID *int64       `db:"last_message_id" json:"last_message_id,omitempty"`
	LastReadAt    *time.Time   `db:"last_read_at" json:"last_read_at,omitempty"`
	MutedAt       *time.Time   `db:"muted_at" json:"muted_at,omitempty"`
	ArchivedAt    *time.Time   `db:"archived_at" json:"archived_at,omitempty"`
	PinnedAt      *time.Time   `db:"pinned_at" json:"pinned_at,omitempty"`
	TruncatedAt   *time.Time   `db:"truncated_at" json:"truncated_at,omitempty"`
	KickedAt      *time.Time   `db:"kicked_at" json:"kicked_at,omitempty"`
	LeftAt        *time.Time   `db:"left_at" json:"left_at,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}

// Active reports whether the member currently participates in the chat.
func (m Member) Active() bool {
	return m.Status == StatusActive
}

// VisibilityCutoff returns the latest of truncated_at, left_at and kicked_at.
// Messages created at or before the cutoff are invisible to this member.
func (m Member) VisibilityCutoff() *time.Time {
	var cutoff *time.Time
	for _, t := range []*time.Time{m.TruncatedAt, m.LeftAt, m.KickedAt} {
		if t == nil {
			continue
		}
		if cutoff == nil || t.After(*cutoff) {
			cutoff = t
		}
	}
	return cutoff
}

// CanManage reports whether the member may invite, kick or change roles.
func (m Member) CanManage() bool {
	return m.Role == RoleOwner || m.Role == RoleAdmin
}

// CanKick reports whether actor may kick target. Owners are untouchable and
// an admin cannot kick a peer admin.
func CanKick(actor, target Member) bool {
	if !actor.CanManage() {
		return false
	}
	if target.Role == RoleOwner {
		return false
	}
	if actor.Role == RoleAdmin && target.Role == RoleAdmin {
		return false
	}
	return true
}

// CanChangeRole reports whether actor may change target's role. The rules
// mirror CanKick: nobody touches an owner, admins cannot demote admins.
func CanChangeRole(actor, target Member) bool {
	if !actor.CanManage() {
		return false
	}
	if target.Role == RoleOwner {
		return false
	}
	if actor.Role == RoleAdmin && target.Role == RoleAdmin {
		return false
	}
	return true
}
