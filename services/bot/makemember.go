package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"

	"github.com/bwmarrin/discordgo"

	"texbot/services/msl"
)

var memberIDPattern = regexp.MustCompile(`^\d{7}$`)

func (b *Bot) handleMakeMember(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) error {
	options := interaction.ApplicationCommandData().Options
	if len(options) == 0 {
		return b.replyUserError(s, interaction, "A member ID is required.")
	}
	return b.makeMember(ctx, s, interaction, options[0].StringValue())
}

// handleMakeMemberModal collects the member ID through a pop-up text
// input instead of a command option.
func (b *Bot) handleMakeMemberModal(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) error {
	return s.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: makeMemberModalID,
			Title:    "Make Member",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:  "member_id",
							Label:     "Member ID",
							Style:     discordgo.TextInputShort,
							Required:  true,
							MinLength: 7,
							MaxLength: 7,
						},
					},
				},
			},
		},
	})
}

func (b *Bot) handleMakeMemberModalSubmit(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) error {
	memberID := modalTextValue(interaction.ModalSubmitData(), "member_id")
	if memberID == "" {
		return b.replyUserError(s, interaction, "A member ID is required.")
	}
	return b.makeMember(ctx, s, interaction, memberID)
}

func modalTextValue(data discordgo.ModalSubmitInteractionData, customID string) string {
	for _, component := range data.Components {
		row, ok := component.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			input, ok := inner.(*discordgo.TextInput)
			if ok && input.CustomID == customID {
				return input.Value
			}
		}
	}
	return ""
}

func (b *Bot) makeMember(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate, memberID string) error {
	if interaction.Member == nil {
		return b.replyUserError(s, interaction,
			"This command can only be used from within the Discord server.")
	}
	user := interactionUser(interaction)

	memberRole, err := b.roleByName(s, b.cfg.MemberRole)
	if err != nil {
		return err
	}
	if memberRole == nil {
		return fmt.Errorf("role %q does not exist in the guild", b.cfg.MemberRole)
	}

	if slices.Contains(interaction.Member.Roles, memberRole.ID) {
		slog.WarnContext(ctx, "makemember used by an existing member", "user_id", user.ID)
		return b.replyInfo(s, interaction,
			"No changes made. You're already a member - why are you trying this again?")
	}

	if !memberIDPattern.MatchString(memberID) {
		return b.replyUserError(s, interaction,
			fmt.Sprintf("%q is not a valid member ID.", memberID))
	}

	used, err := b.members.IsMemberIDUsed(ctx, memberID)
	if err != nil {
		return err
	}
	if used {
		slog.WarnContext(ctx, "makemember reused an already recorded member ID", "user_id", user.ID)
		return b.replyInfo(s, interaction,
			"No changes made. This member ID has already been used. "+
				"Please contact a committee member if this is an error.")
	}

	isMember, err := b.cache.IsMember(ctx, memberID)
	if err != nil {
		var parseErr *msl.ParseError
		if errors.As(err, &parseErr) {
			slog.ErrorContext(ctx, "membership list could not be parsed", "error", err)
			return b.replyErrorCode(s, interaction, "E1041")
		}
		slog.ErrorContext(ctx, "membership list could not be fetched", "error", err)
		return b.replyErrorCode(s, interaction, "E1041")
	}
	if !isMember {
		return b.replyUserError(s, interaction,
			"You must be a member of the society to use this command.\n"+
				"The provided ID must match the ID that you purchased your membership with.")
	}

	// Member before Guest so the welcome flow never suggests buying a
	// membership the user already has.
	err = s.GuildMemberRoleAdd(b.cfg.GuildID, user.ID, memberRole.ID)
	if err != nil {
		return fmt.Errorf("grant member role: %w", err)
	}

	created, err := b.members.RecordMadeMember(ctx, memberID)
	if err != nil {
		return err
	}
	if !created {
		// another induction raced us to the insert; the role is
		// granted either way
		slog.DebugContext(ctx, "member ID was recorded concurrently", "user_id", user.ID)
	}

	if err := b.replyEphemeral(s, interaction, "Successfully made you a member!"); err != nil {
		return err
	}
	slog.DebugContext(ctx, "makemember succeeded", "user_id", user.ID)

	b.grantGuestIfMissing(ctx, s, interaction, user.ID)
	b.stripApplicantIfHeld(ctx, s, interaction, user.ID)
	return nil
}

func (b *Bot) grantGuestIfMissing(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate, userID string) {
	guestRole, err := b.roleByName(s, b.cfg.GuestRole)
	if err != nil || guestRole == nil {
		slog.WarnContext(ctx,
			"makemember used but the guest role does not exist; "+
				"some users may now hold the member role without it",
			"role", b.cfg.GuestRole,
		)
		return
	}
	if slices.Contains(interaction.Member.Roles, guestRole.ID) {
		return
	}
	if err := s.GuildMemberRoleAdd(b.cfg.GuildID, userID, guestRole.ID); err != nil {
		slog.ErrorContext(ctx, "failed to grant guest role", "error", err)
		return
	}
	slog.DebugContext(ctx, "granted guest role to a not-yet-inducted member", "user_id", userID)
}

func (b *Bot) stripApplicantIfHeld(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate, userID string) {
	applicantRole, err := b.roleByName(s, b.cfg.ApplicantRole)
	if err != nil || applicantRole == nil {
		return
	}
	if !slices.Contains(interaction.Member.Roles, applicantRole.ID) {
		return
	}
	if err := s.GuildMemberRoleRemove(b.cfg.GuildID, userID, applicantRole.ID); err != nil {
		slog.ErrorContext(ctx, "failed to remove applicant role", "error", err)
		return
	}
	slog.DebugContext(ctx, "removed applicant role after induction", "user_id", userID)
}
