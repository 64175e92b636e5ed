package msl

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"texbot/lib/htmlutil"
)

// The membership page renders one GridView per membership group. The
// two that matter are "standard" memberships and the all-members view.
const (
	standardMembersTableID = "ctl00_Main_rptGroups_ctl03_gvMemberships"
	allMembersTableID      = "ctl00_Main_rptGroups_ctl05_gvMemberships"
)

// MembershipRecord is one row of the portal's membership list.
// MemberID is empty for external members, which the portal lists
// without an ID.
type MembershipRecord struct {
	Name     string
	MemberID string
}

// ParseError reports that a scraped page did not have the structure
// the parser expects. It is always an error: the portal markup has
// changed, or the session cookie silently expired into a login page.
type ParseError struct {
	Page    string
	Element string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("msl: parsing %s: %s: %s", e.Page, e.Element, e.Reason)
}

// FetchMemberList scrapes the full membership list: both membership
// tables, in document order, deduplicated. A missing or malformed
// table fails the whole fetch rather than degrading to a partial or
// empty result.
func (c *Client) FetchMemberList(ctx context.Context) ([]MembershipRecord, error) {
	ctx, span := tracer.Start(ctx, "FetchMemberList")
	defer span.End()

	page := fmt.Sprintf("/organisation/memberlist/%s/?sort=groups", c.orgID)
	_, doc, err := c.get(ctx, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch member list page")
		return nil, err
	}

	var records []MembershipRecord
	seen := map[MembershipRecord]bool{}
	for _, tableID := range []string{standardMembersTableID, allMembersTableID} {
		rows, err := memberTableRows(doc, tableID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "membership table missing or malformed")
			return nil, err
		}
		for _, record := range rows {
			if seen[record] {
				continue
			}
			seen[record] = true
			records = append(records, record)
		}
	}

	span.SetAttributes(attribute.Int("record_count", len(records)))
	return records, nil
}

func memberTableRows(doc *goquery.Document, tableID string) ([]MembershipRecord, error) {
	table := doc.Find("table#" + tableID)
	if len(table.Nodes) == 0 {
		return nil, &ParseError{
			Page:    "memberlist",
			Element: tableID,
			Reason:  "table not found",
		}
	}

	// data rows carry the msl_row/msl_altrow classes, the remaining
	// <tr> is the header
	rows := table.First().Find("tr.msl_row, tr.msl_altrow")
	if len(rows.Nodes) == 0 {
		all := table.First().Find("tr")
		if len(all.Nodes) < 2 {
			return nil, &ParseError{
				Page:    "memberlist",
				Element: tableID,
				Reason:  "table has no data rows",
			}
		}
		rows = all.Slice(1, len(all.Nodes))
	}

	var records []MembershipRecord
	var malformed error
	rows.Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if len(cells.Nodes) < 2 {
			malformed = &ParseError{
				Page:    "memberlist",
				Element: tableID,
				Reason:  fmt.Sprintf("row has %d cells, want at least 2", len(cells.Nodes)),
			}
			return
		}
		records = append(records, MembershipRecord{
			Name:     htmlutil.CleanText(cells.Eq(0).Text()),
			MemberID: htmlutil.CleanText(cells.Eq(1).Text()),
		})
	})
	if malformed != nil {
		return nil, malformed
	}
	return records, nil
}
