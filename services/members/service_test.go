package members

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"texbot/lib/sqliteutil"
	"texbot/lib/telemetry"
)

func setup(t *testing.T) *Service {
	cleanup := telemetry.SetupForTesting(t, "members_test")
	t.Cleanup(cleanup)

	db, err := sqliteutil.OpenDB(filepath.Join(t.TempDir(), "members.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	service := NewService(db)
	require.NoError(t, service.CreateSchema(context.Background()))
	return service
}

func TestHashMemberID(t *testing.T) {
	hashed, err := HashMemberID("1234567")
	require.NoError(t, err)
	require.Len(t, hashed, 64)

	again, err := HashMemberID("1234567")
	require.NoError(t, err)
	require.Equal(t, hashed, again)

	other, err := HashMemberID("7654321")
	require.NoError(t, err)
	require.NotEqual(t, hashed, other)

	for _, invalid := range []string{"", "123456", "12345678", "12a4567", " 1234567"} {
		_, err := HashMemberID(invalid)
		require.Error(t, err)
		require.Contains(t, err.Error(), invalid)
	}
}

func TestRecordMadeMemberIdempotent(t *testing.T) {
	service := setup(t)
	ctx := context.Background()

	created, err := service.RecordMadeMember(ctx, "1234567")
	require.NoError(t, err)
	require.True(t, created)

	// recording the same ID again reports no change
	created, err = service.RecordMadeMember(ctx, "1234567")
	require.NoError(t, err)
	require.False(t, created)

	created, err = service.RecordMadeMember(ctx, "7654321")
	require.NoError(t, err)
	require.True(t, created)
}

func TestIsMemberIDUsed(t *testing.T) {
	service := setup(t)
	ctx := context.Background()

	used, err := service.IsMemberIDUsed(ctx, "1234567")
	require.NoError(t, err)
	require.False(t, used)

	_, err = service.RecordMadeMember(ctx, "1234567")
	require.NoError(t, err)

	used, err = service.IsMemberIDUsed(ctx, "1234567")
	require.NoError(t, err)
	require.True(t, used)

	_, err = service.IsMemberIDUsed(ctx, "bogus")
	require.Error(t, err)
}

func TestLeftMembers(t *testing.T) {
	service := setup(t)
	ctx := context.Background()

	count, err := service.LeftMemberCount(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	require.NoError(t, service.RecordLeftMember(ctx, []string{"@Member", "@Committee"}))
	require.NoError(t, service.RecordLeftMember(ctx, nil))

	count, err = service.LeftMemberCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	left, err := service.ListLeftMembers(ctx)
	require.NoError(t, err)
	require.Len(t, left, 2)
	require.Equal(t, []string{"@Member", "@Committee"}, left[0].Roles)
	require.Equal(t, 2, left[0].RoleCount)
	require.Empty(t, left[1].Roles)
	require.Zero(t, left[1].RoleCount)
	require.False(t, left[0].LeftAt.IsZero())
}
