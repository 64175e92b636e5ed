package stats

import (
	"context"
	"time"

	"texbot/lib/telemetry"
	"texbot/services/members"
)

var tracer = telemetry.Tracer("texbot.services.stats")

// Message is the slice of a discord message that counting needs.
type Message struct {
	AuthorID    string
	AuthorBot   bool
	AuthorRoles []string
}

// Channel identifies a text channel whose history can be counted.
type Channel struct {
	ID   string
	Name string
}

// HistorySource yields every message sent in a channel after the given
// time. Implemented by the bot layer over the discord API; tests fake
// it.
type HistorySource interface {
	ChannelMessages(ctx context.Context, channelID string, after time.Time) ([]Message, error)
}

// Options configures a counting pass.
type Options struct {
	// Window is the trailing period to count over.
	Window time.Duration
	// TrackedRoles are the role names to bucket by, in display order.
	// Only roles that exist in the guild should be passed.
	TrackedRoles []string
}

// Counts are bar-chart-ready labelled totals. Labels keeps the
// insertion order so charts render buckets in a stable order.
type Counts struct {
	Labels []string
	Values map[string]int
}

func newCounts() *Counts {
	return &Counts{Values: map[string]int{}}
}

func (c *Counts) add(label string, delta int) {
	if _, ok := c.Values[label]; !ok {
		c.Labels = append(c.Labels, label)
	}
	c.Values[label] += delta
}

func (c *Counts) has(label string) bool {
	_, ok := c.Values[label]
	return ok
}

// Max returns the largest bucket value, or 0 for empty counts.
func (c *Counts) Max() int {
	max := 0
	for _, v := range c.Values {
		if v > max {
			max = v
		}
	}
	return max
}

// A member holding both Member and Guest only counts under Member, and
// a member holding both Committee and Committee-Elect only counts
// under Committee-Elect.
func shadowedRole(role string, held map[string]bool) bool {
	switch role {
	case "Guest":
		return held["Member"]
	case "Committee":
		return held["Committee-Elect"]
	}
	return false
}

func countAuthorRoles(counts *Counts, authorRoles []string) {
	held := make(map[string]bool, len(authorRoles))
	for _, role := range authorRoles {
		held[role] = true
	}
	for role := range held {
		if !counts.has("@" + role) {
			continue
		}
		if shadowedRole(role, held) {
			continue
		}
		counts.add("@"+role, 1)
	}
}

// ChannelMessageCounts counts the messages sent in one channel over
// the trailing window, bucketed by tracked role plus a Total bucket.
// Bot authors are excluded.
func ChannelMessageCounts(ctx context.Context, src HistorySource, channelID string, opts Options) (*Counts, error) {
	ctx, span := tracer.Start(ctx, "ChannelMessageCounts")
	defer span.End()

	counts := newCounts()
	counts.add("Total", 0)
	for _, role := range opts.TrackedRoles {
		counts.add("@"+role, 0)
	}

	messages, err := src.ChannelMessages(ctx, channelID, time.Now().Add(-opts.Window))
	if err != nil {
		return nil, err
	}
	for _, message := range messages {
		if message.AuthorBot {
			continue
		}
		counts.add("Total", 1)
		countAuthorRoles(counts, message.AuthorRoles)
	}
	return counts, nil
}

// ServerMessageCounts counts messages across the given channels,
// returning both a per-role and a per-channel breakdown.
func ServerMessageCounts(ctx context.Context, src HistorySource, channels []Channel, opts Options) (roles, byChannel *Counts, err error) {
	ctx, span := tracer.Start(ctx, "ServerMessageCounts")
	defer span.End()

	roles = newCounts()
	roles.add("Total", 0)
	for _, role := range opts.TrackedRoles {
		roles.add("@"+role, 0)
	}
	byChannel = newCounts()

	after := time.Now().Add(-opts.Window)
	for _, channel := range channels {
		byChannel.add("#"+channel.Name, 0)

		messages, err := src.ChannelMessages(ctx, channel.ID, after)
		if err != nil {
			return nil, nil, err
		}
		for _, message := range messages {
			if message.AuthorBot {
				continue
			}
			byChannel.add("#"+channel.Name, 1)
			roles.add("Total", 1)
			countAuthorRoles(roles, message.AuthorRoles)
		}
	}
	return roles, byChannel, nil
}

// MemberMessageCounts counts one member's messages per channel.
func MemberMessageCounts(ctx context.Context, src HistorySource, channels []Channel, userID string, opts Options) (*Counts, error) {
	ctx, span := tracer.Start(ctx, "MemberMessageCounts")
	defer span.End()

	counts := newCounts()
	counts.add("Total", 0)

	after := time.Now().Add(-opts.Window)
	for _, channel := range channels {
		counts.add("#"+channel.Name, 0)

		messages, err := src.ChannelMessages(ctx, channel.ID, after)
		if err != nil {
			return nil, err
		}
		for _, message := range messages {
			if message.AuthorID == userID && !message.AuthorBot {
				counts.add("#"+channel.Name, 1)
				counts.add("Total", 1)
			}
		}
	}
	return counts, nil
}

// LeftMemberCounts buckets departure records by the roles users held
// when they left. Roles in the records are already @-prefixed; the
// same seniority shadowing applies.
func LeftMemberCounts(left []members.LeftMember, trackedRoles []string) *Counts {
	counts := newCounts()
	counts.add("Total", len(left))
	for _, role := range trackedRoles {
		counts.add("@"+role, 0)
	}

	for _, record := range left {
		held := make(map[string]bool, len(record.Roles))
		for _, role := range record.Roles {
			held[role] = true
		}
		for role := range held {
			if !counts.has(role) {
				continue
			}
			if role == "@Guest" && held["@Member"] {
				continue
			}
			if role == "@Committee" && held["@Committee-Elect"] {
				continue
			}
			counts.add(role, 1)
		}
	}
	return counts
}
