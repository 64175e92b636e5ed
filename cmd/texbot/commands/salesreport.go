package commands

import (
	"encoding/csv"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"texbot/lib/serviceutil"
	"texbot/services/msl"
)

var salesReportOut *string

func init() {
	salesReportOut = salesReportCmd.Flags().String("out", "sales_report.csv",
		"The file to write the normalised sales report to.")
	rootCmd.AddCommand(salesReportCmd)
}

var salesReportCmd = &cobra.Command{
	Use:   "sales-report [--out <path/to/report.csv>]",
	Short: "Fetches the current academic year's sales report and writes a normalised CSV.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		client, err := newPortalClient(cfg)
		if err != nil {
			serviceutil.Fatal("failed to initialize portal client", err)
		}

		start, end := msl.AcademicYear(time.Now())
		slog.Info("fetching sales report",
			"from", start.Format("2006-01-02"),
			"to", end.Format("2006-01-02"),
		)

		records, err := client.FetchSalesReport(cmd.Context(), start, end)
		if errors.Is(err, msl.ErrNoTransactions) {
			slog.Info("no transactions in the current academic year")
			return
		}
		if err != nil {
			serviceutil.Fatal("failed to fetch sales report", err)
		}

		if err := writeSalesCSV(*salesReportOut, records); err != nil {
			serviceutil.Fatal("failed to write sales report", err)
		}
		slog.Info("wrote sales report", "path", *salesReportOut, "records", len(records))
	},
}

func writeSalesCSV(path string, records []msl.SaleRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"product_id", "product_name", "date", "quantity", "unit_price", "total"}); err != nil {
		return err
	}
	for _, record := range records {
		row := []string{
			record.ProductID,
			record.ProductName,
			record.Date,
			strconv.Itoa(record.Quantity),
			record.UnitPrice,
			record.Total,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
