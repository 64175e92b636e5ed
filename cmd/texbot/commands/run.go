package commands

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"texbot/lib/serviceutil"
	"texbot/lib/sqliteutil"
	"texbot/lib/telemetry"
	"texbot/services/bot"
	"texbot/services/members"
	"texbot/services/msl/membercache"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connects to Discord and serves slash commands until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := serviceutil.SignalContext()
		telemetry.InstrumentPerfStats(ctx)

		cfg, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		db, err := sqliteutil.OpenDB(cfg.Database.Path)
		if err != nil {
			serviceutil.Fatal("failed to open database", err)
		}
		defer db.Close()

		membersService := members.NewService(db)
		if err := membersService.CreateSchema(ctx); err != nil {
			serviceutil.Fatal("failed to bootstrap database schema", err)
		}

		client, err := newPortalClient(cfg)
		if err != nil {
			serviceutil.Fatal("failed to initialize portal client", err)
		}

		ttl := time.Duration(cfg.Msl.CacheTTLMinutes) * time.Minute
		cache := membercache.New(client.FetchMemberList, membercache.Options{TTL: ttl})

		texbot, err := bot.New(cfg.Discord, cfg.Statistics, cache, membersService)
		if err != nil {
			serviceutil.Fatal("failed to initialize bot", err)
		}

		slog.Info("starting bot", "guild_id", cfg.Discord.GuildID)
		if err := texbot.Run(ctx); err != nil {
			serviceutil.Fatal("bot exited with error", err)
		}
	},
}
