package commands

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"texbot/lib/serviceutil"
)

func init() {
	rootCmd.AddCommand(cookieStatusCmd)
}

var cookieStatusCmd = &cobra.Command{
	Use:   "cookie-status",
	Short: "Checks the portal session cookie and lists the organisations it can administer.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		client, err := newPortalClient(cfg)
		if err != nil {
			serviceutil.Fatal("failed to initialize portal client", err)
		}

		ctx := cmd.Context()
		status, err := client.CookieStatus(ctx)
		if err != nil {
			serviceutil.Fatal("failed to check cookie status", err)
		}

		writer := table.NewWriter()
		writer.SetOutputMirror(os.Stdout)
		writer.AppendHeader(table.Row{"Organisation ID", "Cookie Status"})
		writer.AppendRow(table.Row{client.OrganisationID(), status.String()})
		writer.Render()

		organisations, err := client.Organisations(ctx)
		if err != nil {
			serviceutil.Fatal("failed to list organisations", err)
		}
		if len(organisations) == 0 {
			return
		}

		writer = table.NewWriter()
		writer.SetOutputMirror(os.Stdout)
		writer.AppendHeader(table.Row{"#", "Administered Organisation"})
		for i, name := range organisations {
			writer.AppendRow(table.Row{i + 1, name})
		}
		writer.Render()
	},
}
