package commands

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"texbot/lib/serviceutil"
)

func init() {
	rootCmd.AddCommand(membersCmd)
}

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "Dumps the society's membership list scraped from the portal.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		client, err := newPortalClient(cfg)
		if err != nil {
			serviceutil.Fatal("failed to initialize portal client", err)
		}

		records, err := client.FetchMemberList(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to fetch member list", err)
		}

		writer := table.NewWriter()
		writer.SetOutputMirror(os.Stdout)
		writer.AppendHeader(table.Row{"Member ID", "Name"})
		for _, record := range records {
			writer.AppendRow(table.Row{record.MemberID, record.Name})
		}
		writer.AppendFooter(table.Row{"Total", len(records)})
		writer.Render()
	},
}
