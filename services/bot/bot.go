// Package bot exposes the community's induction, membership and
// statistics workflows as Discord slash commands.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"texbot/lib/telemetry"
	"texbot/services/members"
	"texbot/services/msl/membercache"
)

var tracer = telemetry.Tracer("texbot.services.bot")

type Config struct {
	Token   string `json:"token"`
	GuildID string `json:"guild_id"`

	// Role names as they appear in the guild.
	MemberRole    string `json:"member_role"`
	GuestRole     string `json:"guest_role"`
	ApplicantRole string `json:"applicant_role"`
	CommitteeRole string `json:"committee_role"`

	PingEasterEggProbability float64 `json:"ping_easter_egg_probability"`
}

type StatisticsConfig struct {
	Days  int      `json:"days"`
	Roles []string `json:"roles"`
}

func (c StatisticsConfig) Window() time.Duration {
	days := c.Days
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// Bot owns the discord session and dispatches slash commands to the
// membership cache and the persistence service.
type Bot struct {
	cfg     Config
	statCfg StatisticsConfig

	session *discordgo.Session
	cache   *membercache.Cache
	members *members.Service
}

func New(cfg Config, statCfg StatisticsConfig, cache *membercache.Cache, membersSvc *members.Service) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord token is not configured")
	}
	if cfg.GuildID == "" {
		return nil, fmt.Errorf("discord guild_id is not configured")
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMembers |
		discordgo.IntentGuildMessages
	session.StateEnabled = true

	return &Bot{
		cfg:     cfg,
		statCfg: statCfg,
		session: session,
		cache:   cache,
		members: membersSvc,
	}, nil
}

// Run opens the gateway connection, registers the slash commands on
// the main guild and serves interactions until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.session.AddHandler(b.onInteractionCreate)
	b.session.AddHandler(b.onGuildMemberRemove)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	defer b.session.Close()

	if err := b.registerCommands(); err != nil {
		return err
	}
	slog.Info("bot ready",
		"guild_id", b.cfg.GuildID,
		"user", b.session.State.User.Username,
	)

	<-ctx.Done()
	slog.Info("bot shutting down")
	return nil
}

func (b *Bot) registerCommands() error {
	_, err := b.session.ApplicationCommandBulkOverwrite(
		b.session.State.User.ID,
		b.cfg.GuildID,
		commandDefinitions(),
	)
	if err != nil {
		return fmt.Errorf("register slash commands: %w", err)
	}
	return nil
}

func (b *Bot) onGuildMemberRemove(s *discordgo.Session, event *discordgo.GuildMemberRemove) {
	if event.GuildID != b.cfg.GuildID || event.User == nil || event.User.Bot {
		return
	}

	ctx, span := tracer.Start(context.Background(), "onGuildMemberRemove")
	defer span.End()

	roleNames := b.departedRoleNames(s, event)
	if err := b.members.RecordLeftMember(ctx, roleNames); err != nil {
		slog.ErrorContext(ctx, "failed to record left member", "error", err)
		return
	}
	slog.DebugContext(ctx, "recorded left member", "role_count", len(roleNames))
}

// The gateway remove event does not carry roles, so resolve them from
// the session state cached before the member left.
func (b *Bot) departedRoleNames(s *discordgo.Session, event *discordgo.GuildMemberRemove) []string {
	member, err := s.State.Member(event.GuildID, event.User.ID)
	if err != nil || member == nil {
		return nil
	}

	namesByID := b.roleNamesByID(s)
	var names []string
	for _, roleID := range member.Roles {
		name, ok := namesByID[roleID]
		if !ok || name == "@everyone" {
			continue
		}
		names = append(names, "@"+name)
	}
	return names
}

func (b *Bot) roleNamesByID(s *discordgo.Session) map[string]string {
	names := map[string]string{}
	guild, err := s.State.Guild(b.cfg.GuildID)
	if err == nil && guild != nil {
		for _, role := range guild.Roles {
			names[role.ID] = role.Name
		}
		return names
	}

	roles, err := s.GuildRoles(b.cfg.GuildID)
	if err != nil {
		slog.Error("failed to list guild roles", "error", err)
		return names
	}
	for _, role := range roles {
		names[role.ID] = role.Name
	}
	return names
}

// roleByName resolves a role by its display name.
func (b *Bot) roleByName(s *discordgo.Session, name string) (*discordgo.Role, error) {
	guild, err := s.State.Guild(b.cfg.GuildID)
	var roles []*discordgo.Role
	if err == nil && guild != nil {
		roles = guild.Roles
	} else {
		roles, err = s.GuildRoles(b.cfg.GuildID)
		if err != nil {
			return nil, fmt.Errorf("list guild roles: %w", err)
		}
	}
	for _, role := range roles {
		if role.Name == name {
			return role, nil
		}
	}
	return nil, nil
}
