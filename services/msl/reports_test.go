package msl

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestAcademicYear(t *testing.T) {
	start, end := AcademicYear(time.Date(2025, time.October, 10, 12, 0, 0, 0, time.UTC))
	require.Equal(t, time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC), end)

	// before July the year belongs to the previous academic year
	start, end = AcademicYear(time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC))
	require.Equal(t, time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC), end)

	// boundary days
	start, _ = AcademicYear(time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC))
	require.Equal(t, 2025, start.Year())
	start, _ = AcademicYear(time.Date(2025, time.June, 30, 23, 59, 0, 0, time.UTC))
	require.Equal(t, 2024, start.Year())
}

func TestSplitProductCell(t *testing.T) {
	id, name := splitProductCell("[8492] Society Hoodie")
	require.Equal(t, "8492", id)
	require.Equal(t, "Society Hoodie", name)

	id, name = splitProductCell("[101]")
	require.Equal(t, "101", id)
	require.Empty(t, name)
}

const salesCSV = "Sales Report\r\n" +
	"The Society\r\n" +
	"01/07/2025 - 30/06/2026\r\n" +
	"\r\n" +
	"Generated 01/11/2025\r\n" +
	"\r\n" +
	"Product,Purchase,Org,Dept,Site,Date,Quantity,Unit Price,Total\r\n" +
	"[8492] Society Hoodie,P100,The Society,Shop,Web,01/10/2025,2,20.00,40.00\r\n" +
	"[8492] Society Hoodie,P101,The Society,Shop,Web,02/10/2025,1,20.00,20.00\r\n" +
	"[3011] Membership,P102,The Society,Shop,Web,02/10/2025,1,5.00,5.00\r\n" +
	"\r\n" +
	"Total,,,,,,4,,65.00\r\n"

func TestParseSalesCSV(t *testing.T) {
	records, err := parseSalesCSV([]byte(salesCSV))
	require.NoError(t, err)

	want := []SaleRecord{
		{ProductID: "8492", ProductName: "Society Hoodie", Date: "01/10/2025", Quantity: 2, UnitPrice: "20.00", Total: "40.00"},
		{ProductID: "8492", ProductName: "Society Hoodie", Date: "02/10/2025", Quantity: 1, UnitPrice: "20.00", Total: "20.00"},
		{ProductID: "3011", ProductName: "Membership", Date: "02/10/2025", Quantity: 1, UnitPrice: "5.00", Total: "5.00"},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Fatalf("unexpected sales records (-want +got):\n%s", diff)
	}
}

func TestParseSalesCSVBadQuantity(t *testing.T) {
	bad := strings.Replace(salesCSV, ",2,20.00,40.00", ",two,20.00,40.00", 1)
	_, err := parseSalesCSV([]byte(bad))
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Contains(t, parseErr.Reason, "quantity")
}

func TestParseSalesCSVTooFewFields(t *testing.T) {
	bad := "a\nb\nc\nd\ne\nf\ng\nshort,row\n"
	_, err := parseSalesCSV([]byte(bad))
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

const customisationsCSV = "Customisations Report\r\n" +
	"The Society\r\n" +
	"\r\n" +
	"\r\n" +
	"\r\n" +
	"\r\n" +
	"Product,Purchase,Date,Member ID,Name,Value\r\n" +
	"[8492] Society Hoodie,P100,01/10/2025,1234567,Alex Doe,Navy / L\r\n" +
	"[3011] Membership,P102,02/10/2025,7654321,Sam Roe,-\r\n" +
	"[8492] Society Hoodie,P103,03/10/2025,1111111,Jo Bloggs,Black / M\r\n"

func TestParseCustomisationsCSV(t *testing.T) {
	records := parseCustomisationsCSV([]byte(customisationsCSV), "8492")

	want := []CustomisationRecord{
		{PurchaseID: "P100", Date: "01/10/2025", MemberID: "1234567", Name: "Alex Doe", Value: "Navy / L"},
		{PurchaseID: "P103", Date: "03/10/2025", MemberID: "1111111", Name: "Jo Bloggs", Value: "Black / M"},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Fatalf("unexpected customisation records (-want +got):\n%s", diff)
	}
}

func TestProductSales(t *testing.T) {
	records, err := parseSalesCSV([]byte(salesCSV))
	require.NoError(t, err)

	sales := ProductSales(records, "8492")
	require.Equal(t, map[string]int{
		"01/10/2025": 2,
		"02/10/2025": 1,
	}, sales)
}

const reportFormHTML = `<html><body><form>
<input name="__VIEWSTATE" value="viewstate-blob" />
<input name="ctl00$ctl00$search$btnSubmit" value="Search" />
</form></body></html>`

// the export link appears escaped inside an inline JSON blob
const reportResultHTML = `<html><body>
<script>var cfg = {"ExportUrlBase":"\/reports\/export\/99\/?range=1\u0026format="};</script>
</body></html>`

func TestFetchSalesReportEndToEnd(t *testing.T) {
	setup(t)

	var posted url.Values
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/organisation/salesreports/6531/" && r.Method == http.MethodGet:
			w.Write([]byte(reportFormHTML))
		case r.URL.Path == "/organisation/salesreports/6531/" && r.Method == http.MethodPost:
			require.NoError(t, r.ParseForm())
			posted = r.PostForm
			w.Write([]byte(reportResultHTML))
		case r.URL.Path == "/reports/export/99/":
			require.Equal(t, "1", r.URL.Query().Get("range"))
			require.Equal(t, "CSV", r.URL.Query().Get("format"))
			w.Write([]byte(salesCSV))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
		}
	}))

	from := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC)
	records, err := client.FetchSalesReport(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, records, 3)

	require.Equal(t, "01/07/2025", posted.Get("ctl00$ctl00$Main$AdminPageContent$drDateRange$txtFromDate"))
	require.Equal(t, "30/06/2026", posted.Get("ctl00$ctl00$Main$AdminPageContent$drDateRange$txtToDate"))
	require.Equal(t, "ctl00$ctl00$Main$AdminPageContent$lbSales", posted.Get("__EVENTTARGET"))
	// the search button must not ride along with the export postback
	require.Empty(t, posted.Get("ctl00$ctl00$search$btnSubmit"))
}

func TestFetchSalesReportNoTransactions(t *testing.T) {
	setup(t)

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(reportFormHTML))
			return
		}
		w.Write([]byte(`<html><body><p>There were no transactions in the selected range.</p></body></html>`))
	}))

	_, err := client.FetchSalesReport(context.Background(), time.Now(), time.Now())
	require.ErrorIs(t, err, ErrNoTransactions)
}

func TestFetchSalesReportMissingExportURL(t *testing.T) {
	setup(t)

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(reportFormHTML))
			return
		}
		w.Write([]byte(`<html><body><p>report ready</p></body></html>`))
	}))

	_, err := client.FetchSalesReport(context.Background(), time.Now(), time.Now())
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "ExportUrlBase", parseErr.Element)
}
