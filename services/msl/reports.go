package msl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	salesFromDateKey = "ctl00$ctl00$Main$AdminPageContent$drDateRange$txtFromDate"
	salesFromTimeKey = "ctl00$ctl00$Main$AdminPageContent$drDateRange$txtFromTime"
	salesToDateKey   = "ctl00$ctl00$Main$AdminPageContent$drDateRange$txtToDate"
	salesToTimeKey   = "ctl00$ctl00$Main$AdminPageContent$drDateRange$txtToTime"
	searchSubmitKey  = "ctl00$ctl00$search$btnSubmit"
)

// ReportKind selects which report export the portal generates.
type ReportKind string

const (
	ReportSales          ReportKind = "Sales"
	ReportCustomisations ReportKind = "Customisations"
)

// ErrNoTransactions reports that the portal had no transactions in
// the requested date range, which it signals in-band rather than with
// an empty export.
var ErrNoTransactions = errors.New("msl: no transactions in the requested range")

// the export link is buried in an inline JSON blob on the report page
var exportUrlRegex = regexp.MustCompile(`ExportUrlBase":"(.*?)"`)

// SaleRecord is one normalised row of the portal's sales CSV export.
type SaleRecord struct {
	ProductID   string
	ProductName string
	Date        string
	Quantity    int
	UnitPrice   string
	Total       string
}

// CustomisationRecord is one row of the customisations CSV export,
// e.g. the name printed on a purchased hoodie.
type CustomisationRecord struct {
	PurchaseID string
	Date       string
	MemberID   string
	Name       string
	Value      string
}

// AcademicYear returns the 1 July – 30 June span containing now.
func AcademicYear(now time.Time) (start, end time.Time) {
	year := now.Year()
	if now.Month() < time.July {
		year--
	}
	start = time.Date(year, time.July, 1, 0, 0, 0, 0, time.UTC)
	end = time.Date(year+1, time.June, 30, 0, 0, 0, 0, time.UTC)
	return start, end
}

// reportURL posts the date-range form on the sales reports page and
// digs the CSV export URL out of the response.
func (c *Client) reportURL(ctx context.Context, kind ReportKind, from, to time.Time) (string, []*http.Cookie, error) {
	ctx, span := tracer.Start(ctx, "reportURL")
	defer span.End()

	page := fmt.Sprintf("/organisation/salesreports/%s/", c.orgID)
	fields, cookies, err := c.FormContext(ctx, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch report form context")
		return "", nil, err
	}

	fields[salesFromDateKey] = from.Format("02/01/2006")
	fields[salesFromTimeKey] = from.Format("15:04")
	fields[salesToDateKey] = to.Format("02/01/2006")
	fields[salesToTimeKey] = to.Format("15:04")
	fields["__EVENTTARGET"] = fmt.Sprintf("ctl00$ctl00$Main$AdminPageContent$lb%s", kind)
	fields["__EVENTARGUMENT"] = ""
	fields["__VIEWSTATEENCRYPTED"] = ""
	delete(fields, searchSubmitKey)

	res, err := c.postForm(ctx, page, fields, cookies)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post report date range")
		return "", nil, err
	}

	body := res.String()
	if strings.Contains(body, "no transactions") {
		return "", nil, ErrNoTransactions
	}

	match := exportUrlRegex.FindStringSubmatch(body)
	if match == nil || match[1] == "" {
		perr := &ParseError{
			Page:    "salesreports",
			Element: "ExportUrlBase",
			Reason:  "export url not found in report page",
		}
		span.RecordError(perr)
		span.SetStatus(codes.Error, "missing export url")
		return "", nil, perr
	}

	urlbase := strings.NewReplacer(`\u0026`, "&", `\/`, "/").Replace(match[1])
	return urlbase + "CSV", cookies, nil
}

func (c *Client) fetchReportCSV(ctx context.Context, kind ReportKind, from, to time.Time) ([]byte, error) {
	reportURL, cookies, err := c.reportURL(ctx, kind, from, to)
	if err != nil {
		return nil, err
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetCookies(cookies).
		Get(reportURL)
	if err != nil {
		return nil, err
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("msl: report download returned status %d", res.StatusCode())
	}
	return res.Body(), nil
}

// FetchSalesReport downloads and parses the sales CSV export for the
// given date range.
func (c *Client) FetchSalesReport(ctx context.Context, from, to time.Time) ([]SaleRecord, error) {
	ctx, span := tracer.Start(ctx, "FetchSalesReport")
	defer span.End()

	data, err := c.fetchReportCSV(ctx, ReportSales, from, to)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch sales report")
		return nil, err
	}

	records, err := parseSalesCSV(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse sales report")
		return nil, err
	}
	span.SetAttributes(attribute.Int("record_count", len(records)))
	return records, nil
}

// FetchCustomisations downloads the last year of the customisation
// report and returns the rows belonging to one product.
func (c *Client) FetchCustomisations(ctx context.Context, productID string) ([]CustomisationRecord, error) {
	ctx, span := tracer.Start(ctx, "FetchCustomisations")
	defer span.End()

	to := time.Now().UTC()
	from := to.Add(-52 * 7 * 24 * time.Hour)

	data, err := c.fetchReportCSV(ctx, ReportCustomisations, from, to)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch customisations report")
		return nil, err
	}
	return parseCustomisationsCSV(data, productID), nil
}

// the export's first 7 lines are a report preamble, the data section
// ends at the first blank line
func reportDataLines(data []byte) []string {
	lines := strings.Split(string(data), "\n")
	if len(lines) <= 7 {
		return nil
	}
	var out []string
	for _, line := range lines[7:] {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			break
		}
		out = append(out, line)
	}
	return out
}

// the product cell has the shape "[ID] Product Name"
func splitProductCell(cell string) (id, name string) {
	parts := strings.SplitN(cell, " ", 2)
	id = strings.TrimSuffix(strings.TrimPrefix(parts[0], "["), "]")
	if len(parts) == 2 {
		name = parts[1]
	}
	return id, name
}

func parseSalesCSV(data []byte) ([]SaleRecord, error) {
	var records []SaleRecord
	for _, line := range reportDataLines(data) {
		values := strings.Split(line, ",")
		if len(values) < 9 {
			return nil, &ParseError{
				Page:    "salesreports",
				Element: "csv",
				Reason:  fmt.Sprintf("sales row has %d fields, want at least 9", len(values)),
			}
		}

		productID, productName := splitProductCell(values[0])
		quantity, err := strconv.Atoi(strings.TrimSpace(values[6]))
		if err != nil {
			return nil, &ParseError{
				Page:    "salesreports",
				Element: "csv",
				Reason:  fmt.Sprintf("bad quantity %q", values[6]),
			}
		}

		records = append(records, SaleRecord{
			ProductID:   productID,
			ProductName: productName,
			Date:        values[5],
			Quantity:    quantity,
			UnitPrice:   values[7],
			Total:       values[8],
		})
	}
	return records, nil
}

func parseCustomisationsCSV(data []byte, productID string) []CustomisationRecord {
	var records []CustomisationRecord
	for _, line := range reportDataLines(data) {
		values := strings.Split(line, ",")
		if len(values) < 6 {
			continue
		}

		id, _ := splitProductCell(values[0])
		if id != productID {
			continue
		}

		records = append(records, CustomisationRecord{
			PurchaseID: values[1],
			Date:       values[2],
			MemberID:   values[3],
			Name:       values[4],
			Value:      values[5],
		})
	}
	return records
}

// ProductSales aggregates a sales report into date → quantity for one
// product.
func ProductSales(records []SaleRecord, productID string) map[string]int {
	sales := map[string]int{}
	for _, record := range records {
		if record.ProductID == productID {
			sales[record.Date] += record.Quantity
		}
	}
	return sales
}
