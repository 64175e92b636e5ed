package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"texbot/lib/telemetry"
	"texbot/services/members"
)

func setup(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "stats_test")
	t.Cleanup(cleanup)
}

// fakeHistory serves canned messages per channel ID.
type fakeHistory struct {
	messages map[string][]Message
}

func (f *fakeHistory) ChannelMessages(ctx context.Context, channelID string, after time.Time) ([]Message, error) {
	return f.messages[channelID], nil
}

func trackedOpts() Options {
	return Options{
		Window:       30 * 24 * time.Hour,
		TrackedRoles: []string{"Committee", "Committee-Elect", "Member", "Guest"},
	}
}

func TestChannelMessageCountsSeniority(t *testing.T) {
	setup(t)

	src := &fakeHistory{messages: map[string][]Message{
		"general": {
			{AuthorID: "1", AuthorRoles: []string{"Member", "Guest"}},
			{AuthorID: "2", AuthorRoles: []string{"Guest"}},
			{AuthorID: "3", AuthorRoles: []string{"Committee", "Committee-Elect", "Member", "Guest"}},
			{AuthorID: "4", AuthorBot: true, AuthorRoles: []string{"Member"}},
			{AuthorID: "5"},
		},
	}}

	counts, err := ChannelMessageCounts(context.Background(), src, "general", trackedOpts())
	require.NoError(t, err)

	// the bot message is excluded entirely
	require.Equal(t, 4, counts.Values["Total"])
	// Member shadows Guest
	require.Equal(t, 2, counts.Values["@Member"])
	require.Equal(t, 1, counts.Values["@Guest"])
	// Committee-Elect shadows Committee
	require.Equal(t, 0, counts.Values["@Committee"])
	require.Equal(t, 1, counts.Values["@Committee-Elect"])
	// Total leads the label order for charting
	require.Equal(t, "Total", counts.Labels[0])
}

func TestServerMessageCounts(t *testing.T) {
	setup(t)

	src := &fakeHistory{messages: map[string][]Message{
		"c1": {
			{AuthorID: "1", AuthorRoles: []string{"Member"}},
			{AuthorID: "2", AuthorBot: true},
		},
		"c2": {
			{AuthorID: "1", AuthorRoles: []string{"Member"}},
			{AuthorID: "3", AuthorRoles: []string{"Committee"}},
		},
	}}
	channels := []Channel{{ID: "c1", Name: "general"}, {ID: "c2", Name: "committee"}}

	roles, byChannel, err := ServerMessageCounts(context.Background(), src, channels, trackedOpts())
	require.NoError(t, err)

	require.Equal(t, 3, roles.Values["Total"])
	require.Equal(t, 2, roles.Values["@Member"])
	require.Equal(t, 1, roles.Values["@Committee"])

	require.Equal(t, 1, byChannel.Values["#general"])
	require.Equal(t, 2, byChannel.Values["#committee"])
	require.Equal(t, []string{"#general", "#committee"}, byChannel.Labels)
}

func TestMemberMessageCounts(t *testing.T) {
	setup(t)

	src := &fakeHistory{messages: map[string][]Message{
		"c1": {
			{AuthorID: "me"},
			{AuthorID: "someone-else"},
			{AuthorID: "me"},
		},
		"c2": {
			{AuthorID: "me", AuthorBot: true},
		},
	}}
	channels := []Channel{{ID: "c1", Name: "general"}, {ID: "c2", Name: "random"}}

	counts, err := MemberMessageCounts(context.Background(), src, channels, "me", trackedOpts())
	require.NoError(t, err)

	require.Equal(t, 2, counts.Values["Total"])
	require.Equal(t, 2, counts.Values["#general"])
	require.Equal(t, 0, counts.Values["#random"])
}

func TestLeftMemberCounts(t *testing.T) {
	setup(t)

	left := []members.LeftMember{
		{Roles: []string{"@Member", "@Guest"}},
		{Roles: []string{"@Guest"}},
		{Roles: []string{"@Committee", "@Committee-Elect", "@Member", "@Guest"}},
		{Roles: []string{"@Untracked"}},
	}

	counts := LeftMemberCounts(left, []string{"Committee", "Committee-Elect", "Member", "Guest"})

	require.Equal(t, 4, counts.Values["Total"])
	require.Equal(t, 2, counts.Values["@Member"])
	require.Equal(t, 1, counts.Values["@Guest"])
	require.Equal(t, 0, counts.Values["@Committee"])
	require.Equal(t, 1, counts.Values["@Committee-Elect"])
	require.NotContains(t, counts.Values, "@Untracked")
}
