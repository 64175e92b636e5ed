package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
)

const makeMemberModalID = "makemember_modal"

func commandDefinitions() []*discordgo.ApplicationCommand {
	minIDLength := 7
	return []*discordgo.ApplicationCommand{
		{
			Name:        "makemember",
			Description: "Gives you the Member role when supplied with your member ID.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "id",
					Description: "The ID you purchased your membership with.",
					Required:    true,
					MinLength:   &minIDLength,
					MaxLength:   7,
				},
			},
		},
		{
			Name:        "makemember-modal",
			Description: "Gives you the Member role, asking for your member ID in a pop-up form.",
		},
		{
			Name:        "membercount",
			Description: "Displays the current number of purchased memberships.",
		},
		{
			Name:        "stats",
			Description: "Various statistics about the Discord server.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "channel",
					Description: "Displays the stats for the current/a given channel.",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "channel",
							Description: "The ID of the channel to display the stats for.",
							Required:    false,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "server",
					Description: "Displays the stats for the whole of the Discord server.",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "self",
					Description: "Displays stats about the number of messages you have sent.",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "left-members",
					Description: "Displays the stats about members that have left the Discord server.",
				},
			},
		},
		{
			Name:        "ping",
			Description: "Replies with Pong!",
		},
		{
			Name:        "source",
			Description: "Displays information about the source code of this bot.",
		},
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		b.dispatchCommand(s, interaction)
	case discordgo.InteractionModalSubmit:
		if interaction.ModalSubmitData().CustomID == makeMemberModalID {
			b.guarded(s, interaction, "makemember-modal-submit", b.handleMakeMemberModalSubmit)
		}
	}
}

func (b *Bot) dispatchCommand(s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	name := interaction.ApplicationCommandData().Name
	switch name {
	case "makemember":
		b.guarded(s, interaction, name, b.handleMakeMember)
	case "makemember-modal":
		b.guarded(s, interaction, name, b.handleMakeMemberModal)
	case "membercount":
		b.guarded(s, interaction, name, b.handleMemberCount)
	case "stats":
		b.guarded(s, interaction, name, b.handleStats)
	case "ping":
		b.guarded(s, interaction, name, b.handlePing)
	case "source":
		b.guarded(s, interaction, name, b.handleSource)
	default:
		slog.Warn("unknown slash command", "command", name)
	}
}

type handlerFunc func(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) error

// guarded runs a command handler inside a span, turning any returned
// error or panic into a generic ephemeral apology.
func (b *Bot) guarded(s *discordgo.Session, interaction *discordgo.InteractionCreate, name string, handler handlerFunc) {
	ctx, span := tracer.Start(context.Background(), name)
	defer span.End()
	span.SetAttributes(attribute.String("command", name))

	defer func() {
		if recovered := recover(); recovered != nil {
			slog.ErrorContext(ctx, "command handler panicked",
				"command", name,
				"panic", recovered,
				"stack", string(debug.Stack()),
			)
			b.replyApology(s, interaction)
		}
	}()

	if err := handler(ctx, s, interaction); err != nil {
		span.RecordError(err)
		slog.ErrorContext(ctx, "command handler failed",
			"command", name,
			"error", err,
		)
		b.replyApology(s, interaction)
	}
}

func interactionUser(interaction *discordgo.InteractionCreate) *discordgo.User {
	if interaction.Member != nil {
		return interaction.Member.User
	}
	return interaction.User
}

func (b *Bot) replyEphemeral(s *discordgo.Session, interaction *discordgo.InteractionCreate, content string) error {
	return s.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// replyInfo reports a no-op outcome the user should know about.
func (b *Bot) replyInfo(s *discordgo.Session, interaction *discordgo.InteractionCreate, message string) error {
	return b.replyEphemeral(s, interaction,
		fmt.Sprintf(":information_source: %s :information_source:", message))
}

// replyUserError reports a problem the user can fix themselves.
func (b *Bot) replyUserError(s *discordgo.Session, interaction *discordgo.InteractionCreate, message string) error {
	return b.replyEphemeral(s, interaction,
		fmt.Sprintf(":warning: %s :warning:", message))
}

// replyErrorCode reports an operational failure the user cannot fix,
// identified by a stable code the committee can look up in the logs.
func (b *Bot) replyErrorCode(s *discordgo.Session, interaction *discordgo.InteractionCreate, code string) error {
	return b.replyEphemeral(s, interaction, fmt.Sprintf(
		":warning: Something went wrong (error code %s). "+
			"Please contact a committee member. :warning:",
		code,
	))
}

func (b *Bot) replyApology(s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	err := b.replyEphemeral(s, interaction,
		":warning: An unexpected error occurred. Please try again later. :warning:")
	if err != nil {
		// the interaction was probably already acknowledged, retry
		// as a followup before giving up
		_, err = s.FollowupMessageCreate(interaction.Interaction, true, &discordgo.WebhookParams{
			Content: ":warning: An unexpected error occurred. Please try again later. :warning:",
			Flags:   discordgo.MessageFlagsEphemeral,
		})
		if err != nil {
			slog.Error("failed to deliver error response", "error", err)
		}
	}
}
