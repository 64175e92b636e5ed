package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	random "github.com/mazen160/go-random"
)

func (b *Bot) handleMemberCount(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) error {
	count, err := b.cache.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "membership count unavailable", "error", err)
		return b.replyErrorCode(s, interaction, "E1041")
	}
	return b.replyEphemeral(s, interaction,
		fmt.Sprintf("There are currently %d members!", count))
}

const pingEasterEgg = "`64 bytes from TeX-Bot: icmp_seq=1 ttl=63 time=0.01 ms`"

func (b *Bot) handlePing(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) error {
	reply := "Pong!"
	if b.cfg.PingEasterEggProbability > 0 {
		roll, err := random.IntRange(0, 100)
		if err == nil && float64(roll) < b.cfg.PingEasterEggProbability*100 {
			reply = pingEasterEgg
		}
	}
	return b.replyEphemeral(s, interaction, reply)
}

func (b *Bot) handleSource(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) error {
	return b.replyEphemeral(s, interaction,
		"TeX-Bot is an open-source project made specifically for the CSS Discord server!\n"+
			"You can see and contribute to the source code at "+
			"[CSSUoB/TeX-Bot](https://github.com/CSSUoB/TeX-Bot-Py-V2).")
}
