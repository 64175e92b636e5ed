package members

import (
	"time"

	"github.com/uptrace/bun"
)

// MadeMember records that a member ID has already been through
// induction. Only the sha256 digest of the ID is stored.
type MadeMember struct {
	bun.BaseModel `bun:"table:made_members,alias:mm"`

	ID             int64  `bun:"id,pk,autoincrement"`
	HashedMemberID string `bun:"hashed_member_id,notnull,unique"`
}

// LeftMember records the roles a user held when they left the guild.
// Roles are stored as a JSON array of @-prefixed role names.
type LeftMember struct {
	bun.BaseModel `bun:"table:left_members,alias:lm"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Roles     []string  `bun:"roles"`
	RoleCount int       `bun:"role_count,notnull"`
	LeftAt    time.Time `bun:"left_at,notnull"`
}
