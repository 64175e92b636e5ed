// Package members persists induction and departure state in sqlite:
// which member IDs have already been made members, and which roles
// departed users held.
package members

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"

	"texbot/lib/telemetry"
)

var tracer = telemetry.Tracer("texbot.services.members")

var memberIDPattern = regexp.MustCompile(`^\d{7}$`)

// HashMemberID validates a raw portal member ID and returns its sha256
// hex digest. Only the digest ever reaches storage or logs.
func HashMemberID(memberID string) (string, error) {
	if !memberIDPattern.MatchString(memberID) {
		return "", fmt.Errorf(
			"%q is not a valid member ID: expected exactly 7 digits",
			memberID,
		)
	}
	digest := sha256.Sum256([]byte(memberID))
	return hex.EncodeToString(digest[:]), nil
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// CreateSchema bootstraps both tables. Safe to call on every startup.
func (s *Service) CreateSchema(ctx context.Context) error {
	for _, model := range []any{(*MadeMember)(nil), (*LeftMember)(nil)} {
		_, err := s.db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

// RecordMadeMember stores the hash of memberID. Recording an already
// recorded ID is not an error: created=false reports that nothing
// changed.
func (s *Service) RecordMadeMember(ctx context.Context, memberID string) (created bool, err error) {
	ctx, span := tracer.Start(ctx, "RecordMadeMember")
	defer span.End()

	hashed, err := HashMemberID(memberID)
	if err != nil {
		return false, err
	}

	_, err = s.db.NewInsert().
		Model(&MadeMember{HashedMemberID: hashed}).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			span.SetAttributes(attribute.Bool("duplicate", true))
			return false, nil
		}
		return false, fmt.Errorf("insert made member: %w", err)
	}
	return true, nil
}

// IsMemberIDUsed reports whether memberID has already been recorded.
func (s *Service) IsMemberIDUsed(ctx context.Context, memberID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "IsMemberIDUsed")
	defer span.End()

	hashed, err := HashMemberID(memberID)
	if err != nil {
		return false, err
	}

	exists, err := s.db.NewSelect().
		Model((*MadeMember)(nil)).
		Where("hashed_member_id = ?", hashed).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("query made members: %w", err)
	}
	return exists, nil
}

// RecordLeftMember stores the @-prefixed role names a departing user
// held.
func (s *Service) RecordLeftMember(ctx context.Context, roleNames []string) error {
	ctx, span := tracer.Start(ctx, "RecordLeftMember")
	defer span.End()

	if roleNames == nil {
		roleNames = []string{}
	}
	_, err := s.db.NewInsert().
		Model(&LeftMember{
			Roles:     roleNames,
			RoleCount: len(roleNames),
			LeftAt:    time.Now().UTC(),
		}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert left member: %w", err)
	}
	return nil
}

// LeftMemberCount reports how many departures have been recorded.
func (s *Service) LeftMemberCount(ctx context.Context) (int, error) {
	count, err := s.db.NewSelect().
		Model((*LeftMember)(nil)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count left members: %w", err)
	}
	return count, nil
}

// ListLeftMembers returns every recorded departure, oldest first.
func (s *Service) ListLeftMembers(ctx context.Context) ([]LeftMember, error) {
	var left []LeftMember
	err := s.db.NewSelect().
		Model(&left).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list left members: %w", err)
	}
	return left, nil
}

// modernc.org/sqlite wraps SQLITE_CONSTRAINT_UNIQUE without an
// exported sentinel, so match on the message.
func isUniqueViolation(err error) bool {
	return err != nil &&
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
