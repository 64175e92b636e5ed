package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"texbot/services/stats"
)

var snowflakePattern = regexp.MustCompile(`^\d{17,20}$`)

func (b *Bot) handleStats(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) error {
	options := interaction.ApplicationCommandData().Options
	if len(options) == 0 {
		return b.replyUserError(s, interaction, "A stats subcommand is required.")
	}
	sub := options[0]
	switch sub.Name {
	case "channel":
		return b.handleChannelStats(ctx, s, interaction, sub.Options)
	case "server":
		return b.handleServerStats(ctx, s, interaction)
	case "self":
		return b.handleSelfStats(ctx, s, interaction)
	case "left-members":
		return b.handleLeftMemberStats(ctx, s, interaction)
	default:
		return b.replyUserError(s, interaction,
			fmt.Sprintf("Unknown stats subcommand %q.", sub.Name))
	}
}

func (b *Bot) handleChannelStats(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate, args []*discordgo.ApplicationCommandInteractionDataOption) error {
	channelID := interaction.ChannelID
	for _, arg := range args {
		if arg.Name == "channel" && arg.StringValue() != "" {
			value := arg.StringValue()
			if !snowflakePattern.MatchString(value) {
				return b.replyUserError(s, interaction,
					fmt.Sprintf("%q is not a valid channel ID.", value))
			}
			channelID = value
		}
	}

	channels, err := b.guildTextChannels(s)
	if err != nil {
		return err
	}
	var channel *discordgo.Channel
	for _, candidate := range channels {
		if candidate.ID == channelID {
			channel = candidate
			break
		}
	}
	if channel == nil {
		return b.replyUserError(s, interaction,
			fmt.Sprintf("Text channel with ID %q does not exist.", channelID))
	}

	if err := b.deferEphemeral(s, interaction); err != nil {
		return err
	}

	source, err := b.newHistorySource(ctx, s)
	if err != nil {
		return err
	}
	counts, err := stats.ChannelMessageCounts(ctx, source, channel.ID, b.countOptions(s))
	if err != nil {
		return err
	}

	artifact, err := stats.PlotBarChart(counts, stats.Meta{
		XLabel:      "Role Name",
		YLabel:      fmt.Sprintf("Number of Messages Sent (in the past %s)", b.windowLabel()),
		Title:       fmt.Sprintf("Most Active Roles in #%s", channel.Name),
		Filename:    fmt.Sprintf("%s_channel_stats.png", channel.Name),
		Description: fmt.Sprintf("Bar chart of the number of messages sent by different roles in #%s.", channel.Name),
		ExtraText:   roleCountingCaveat,
	})
	if errors.Is(err, stats.ErrNotEnoughData) {
		return b.followupUserError(s, interaction,
			"There are not enough messages sent in this channel.")
	}
	if err != nil {
		return err
	}
	return b.sendChart(s, interaction, "stats channel", artifact)
}

func (b *Bot) handleServerStats(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) error {
	if err := b.deferEphemeral(s, interaction); err != nil {
		return err
	}

	channels, err := b.guestVisibleChannels(s)
	if err != nil {
		return err
	}
	source, err := b.newHistorySource(ctx, s)
	if err != nil {
		return err
	}
	roleCounts, channelCounts, err := stats.ServerMessageCounts(ctx, source, channels, b.countOptions(s))
	if err != nil {
		return err
	}

	yLabel := fmt.Sprintf("Number of Messages Sent (in the past %s)", b.windowLabel())
	roleChart, err := stats.PlotBarChart(roleCounts, stats.Meta{
		XLabel:      "Role Name",
		YLabel:      yLabel,
		Title:       "Most Active Roles in the Discord Server",
		Filename:    "roles_server_stats.png",
		Description: "Bar chart of the number of messages sent by different roles in the Discord server.",
		ExtraText:   roleCountingCaveat,
	})
	if err == nil {
		var channelChart stats.Artifact
		channelChart, err = stats.PlotBarChart(channelCounts, stats.Meta{
			XLabel:      "Channel Name",
			YLabel:      yLabel,
			Title:       "Most Active Channels in the Discord Server",
			Filename:    "channels_server_stats.png",
			Description: "Bar chart of the number of messages sent in different text channels in the Discord server.",
		})
		if err == nil {
			return b.sendChart(s, interaction, "stats server", roleChart, channelChart)
		}
	}
	if errors.Is(err, stats.ErrNotEnoughData) {
		return b.followupUserError(s, interaction, "There are not enough messages sent.")
	}
	return err
}

func (b *Bot) handleSelfStats(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) error {
	if interaction.Member == nil {
		return b.replyUserError(s, interaction,
			"This command can only be used from within the Discord server.")
	}
	user := interactionUser(interaction)

	guestRole, err := b.roleByName(s, b.cfg.GuestRole)
	if err != nil {
		return err
	}
	if guestRole == nil || !slices.Contains(interaction.Member.Roles, guestRole.ID) {
		return b.replyUserError(s, interaction,
			"You must be inducted as a guest member of the Discord server to use this command.")
	}

	if err := b.deferEphemeral(s, interaction); err != nil {
		return err
	}

	channels, err := b.guestVisibleChannels(s)
	if err != nil {
		return err
	}
	source, err := b.newHistorySource(ctx, s)
	if err != nil {
		return err
	}
	counts, err := stats.MemberMessageCounts(ctx, source, channels, user.ID, b.countOptions(s))
	if err != nil {
		return err
	}

	artifact, err := stats.PlotBarChart(counts, stats.Meta{
		XLabel:      "Channel Name",
		YLabel:      fmt.Sprintf("Number of Messages Sent (in the past %s)", b.windowLabel()),
		Title:       "Your Most Active Channels in the Discord Server",
		Filename:    fmt.Sprintf("%s_stats.png", user.Username),
		Description: fmt.Sprintf("Bar chart of the number of messages sent by %s in different channels.", user.Username),
	})
	if errors.Is(err, stats.ErrNotEnoughData) {
		return b.followupUserError(s, interaction, "You have not sent enough messages.")
	}
	if err != nil {
		return err
	}
	return b.sendChart(s, interaction, "stats self", artifact)
}

func (b *Bot) handleLeftMemberStats(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) error {
	if err := b.deferEphemeral(s, interaction); err != nil {
		return err
	}

	left, err := b.members.ListLeftMembers(ctx)
	if err != nil {
		return err
	}
	counts := stats.LeftMemberCounts(left, b.existingTrackedRoles(s))

	artifact, err := stats.PlotBarChart(counts, stats.Meta{
		XLabel:      "Role Name",
		YLabel:      "Number of Members that have left the Discord Server",
		Title:       "Most Common Roles that Members had when they left the Discord Server",
		Filename:    "left_members_stats.png",
		Description: "Bar chart of the number of members with different roles that have left the Discord server.",
		ExtraText:   "Members that left with multiple roles are counted once for each role (except for @Member vs @Guest & @Committee vs @Committee-Elect)",
	})
	if errors.Is(err, stats.ErrNotEnoughData) {
		return b.followupUserError(s, interaction,
			"Not enough data about members that have left the server.")
	}
	if err != nil {
		return err
	}
	return b.sendChart(s, interaction, "stats left-members", artifact)
}

const roleCountingCaveat = "Messages sent by members with multiple roles are counted once for each role (except for @Member vs @Guest & @Committee vs @Committee-Elect)"

func (b *Bot) countOptions(s *discordgo.Session) stats.Options {
	return stats.Options{
		Window:       b.statCfg.Window(),
		TrackedRoles: b.existingTrackedRoles(s),
	}
}

func (b *Bot) windowLabel() string {
	days := b.statCfg.Window().Hours() / 24
	return stats.AmountOfTime(days, "day")
}

// existingTrackedRoles filters the configured statistics roles down to
// those that actually exist in the guild.
func (b *Bot) existingTrackedRoles(s *discordgo.Session) []string {
	existing := map[string]bool{}
	for _, name := range b.roleNamesByID(s) {
		existing[name] = true
	}
	var tracked []string
	for _, name := range b.statCfg.Roles {
		if existing[name] {
			tracked = append(tracked, name)
		}
	}
	return tracked
}

func (b *Bot) deferEphemeral(s *discordgo.Session, interaction *discordgo.InteractionCreate) error {
	return s.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

func (b *Bot) followupUserError(s *discordgo.Session, interaction *discordgo.InteractionCreate, message string) error {
	_, err := s.FollowupMessageCreate(interaction.Interaction, true, &discordgo.WebhookParams{
		Content: fmt.Sprintf(":warning: %s :warning:", message),
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	return err
}

// sendChart acknowledges the deferred interaction ephemerally and
// posts the chart publicly in the invoking channel.
func (b *Bot) sendChart(s *discordgo.Session, interaction *discordgo.InteractionCreate, command string, artifacts ...stats.Artifact) error {
	_, err := s.FollowupMessageCreate(interaction.Interaction, true, &discordgo.WebhookParams{
		Content: ":point_down: Your stats graph is shown below :point_down:",
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		return err
	}

	files := make([]*discordgo.File, 0, len(artifacts))
	for _, artifact := range artifacts {
		files = append(files, &discordgo.File{
			Name:        artifact.Filename,
			ContentType: "image/png",
			Reader:      bytes.NewReader(artifact.PNG),
		})
	}
	user := interactionUser(interaction)
	_, err = s.ChannelMessageSendComplex(interaction.ChannelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("**%s** used `/%s`", user.Username, command),
		Files:   files,
	})
	if err != nil {
		return fmt.Errorf("send stats chart: %w", err)
	}
	return nil
}

// guildTextChannels lists the guild's text channels, preferring the
// gateway state cache.
func (b *Bot) guildTextChannels(s *discordgo.Session) ([]*discordgo.Channel, error) {
	var channels []*discordgo.Channel
	guild, err := s.State.Guild(b.cfg.GuildID)
	if err == nil && guild != nil && len(guild.Channels) > 0 {
		channels = guild.Channels
	} else {
		channels, err = s.GuildChannels(b.cfg.GuildID)
		if err != nil {
			return nil, fmt.Errorf("list guild channels: %w", err)
		}
	}

	var text []*discordgo.Channel
	for _, channel := range channels {
		if channel.Type == discordgo.ChannelTypeGuildText {
			text = append(text, channel)
		}
	}
	return text, nil
}

// guestVisibleChannels returns the text channels the Guest role can
// send messages in.
func (b *Bot) guestVisibleChannels(s *discordgo.Session) ([]stats.Channel, error) {
	guestRole, err := b.roleByName(s, b.cfg.GuestRole)
	if err != nil {
		return nil, err
	}
	if guestRole == nil {
		return nil, fmt.Errorf("role %q does not exist in the guild", b.cfg.GuestRole)
	}

	everyoneID := b.cfg.GuildID // the @everyone role shares the guild ID
	var everyonePerms int64
	guild, err := s.State.Guild(b.cfg.GuildID)
	if err == nil && guild != nil {
		for _, role := range guild.Roles {
			if role.ID == everyoneID {
				everyonePerms = role.Permissions
			}
		}
	}

	textChannels, err := b.guildTextChannels(s)
	if err != nil {
		return nil, err
	}
	var visible []stats.Channel
	for _, channel := range textChannels {
		base := everyonePerms | guestRole.Permissions
		if roleCanSend(channel, everyoneID, guestRole.ID, base) {
			visible = append(visible, stats.Channel{ID: channel.ID, Name: channel.Name})
		}
	}
	return visible, nil
}

func roleCanSend(channel *discordgo.Channel, everyoneID, roleID string, basePerms int64) bool {
	perms := basePerms
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	// everyone overwrites apply before role overwrites
	for _, overwrite := range channel.PermissionOverwrites {
		if overwrite.Type == discordgo.PermissionOverwriteTypeRole && overwrite.ID == everyoneID {
			perms = perms&^overwrite.Deny | overwrite.Allow
		}
	}
	for _, overwrite := range channel.PermissionOverwrites {
		if overwrite.Type == discordgo.PermissionOverwriteTypeRole && overwrite.ID == roleID {
			perms = perms&^overwrite.Deny | overwrite.Allow
		}
	}
	return perms&discordgo.PermissionSendMessages != 0 &&
		perms&discordgo.PermissionViewChannel != 0
}

// discordEpoch is the millisecond origin of discord snowflake IDs.
const discordEpoch = 1420070400000

func snowflakeFromTime(t time.Time) string {
	ms := t.UnixMilli() - discordEpoch
	if ms < 0 {
		ms = 0
	}
	return strconv.FormatInt(ms<<22, 10)
}

// snowflakes are decimal strings, so length decides before lexicographic order
func laterSnowflake(a, b string) string {
	if len(a) != len(b) {
		if len(a) > len(b) {
			return a
		}
		return b
	}
	if a > b {
		return a
	}
	return b
}

// guildHistory adapts the discord REST API to stats.HistorySource,
// resolving author roles through a members snapshot taken once per
// counting pass.
type guildHistory struct {
	session     *discordgo.Session
	rolesByUser map[string][]string
}

func (b *Bot) newHistorySource(ctx context.Context, s *discordgo.Session) (*guildHistory, error) {
	_, span := tracer.Start(ctx, "newHistorySource")
	defer span.End()

	namesByID := b.roleNamesByID(s)
	rolesByUser := map[string][]string{}

	after := ""
	for {
		page, err := s.GuildMembers(b.cfg.GuildID, after, 1000)
		if err != nil {
			return nil, fmt.Errorf("list guild members: %w", err)
		}
		for _, member := range page {
			var names []string
			for _, roleID := range member.Roles {
				if name, ok := namesByID[roleID]; ok {
					names = append(names, name)
				}
			}
			rolesByUser[member.User.ID] = names
		}
		if len(page) < 1000 {
			break
		}
		after = page[len(page)-1].User.ID
	}

	return &guildHistory{session: s, rolesByUser: rolesByUser}, nil
}

func (h *guildHistory) ChannelMessages(ctx context.Context, channelID string, after time.Time) ([]stats.Message, error) {
	var out []stats.Message
	afterID := snowflakeFromTime(after)
	for {
		page, err := h.session.ChannelMessages(channelID, 100, "", afterID, "")
		if err != nil {
			return nil, fmt.Errorf("fetch channel history: %w", err)
		}
		if len(page) == 0 {
			break
		}
		// with an after cursor the newest message of the page leads
		newest := page[0].ID
		for _, message := range page {
			if message.Author == nil {
				continue
			}
			out = append(out, stats.Message{
				AuthorID:    message.Author.ID,
				AuthorBot:   message.Author.Bot,
				AuthorRoles: h.rolesByUser[message.Author.ID],
			})
			newest = laterSnowflake(newest, message.ID)
		}
		if len(page) < 100 {
			break
		}
		afterID = newest
	}
	return out, nil
}
