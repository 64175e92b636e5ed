package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"texbot/lib/configutil"
	"texbot/lib/restyutil"
	"texbot/lib/telemetry"
	"texbot/services/bot"
	"texbot/services/msl"
)

type MslConfig struct {
	BaseURL         string `json:"base_url"`
	OrganisationID  string `json:"organisation_id"`
	SessionCookie   string `json:"session_cookie"`
	CacheTTLMinutes int    `json:"cache_ttl_minutes"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type Config struct {
	Discord    bot.Config           `json:"discord"`
	Msl        MslConfig            `json:"msl"`
	Statistics bot.StatisticsConfig `json:"statistics"`
	Database   DatabaseConfig       `json:"database"`
}

var (
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "texbot",
	Short: "texbot is a community-management Discord bot backed by the guild's membership portal.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
		if verbose {
			msl.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/msl"))
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging and http request dumps.")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json5",
		"Path to the configuration file.")
}

func readConfig() (Config, error) {
	cfg, err := configutil.ReadConfig[Config](configPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", configPath, err)
	}
	return cfg, nil
}

func newPortalClient(cfg Config) (*msl.Client, error) {
	return msl.NewClient(msl.Options{
		BaseURL:        cfg.Msl.BaseURL,
		OrganisationID: cfg.Msl.OrganisationID,
		SessionCookie:  cfg.Msl.SessionCookie,
	})
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
