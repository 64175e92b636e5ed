package msl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"texbot/lib/htmlutil"
)

const (
	eventsFromDateKey = "ctl00$ctl00$Main$AdminPageContent$datesFilter$txtFromDate"
	eventsToDateKey   = "ctl00$ctl00$Main$AdminPageContent$datesFilter$txtToDate"
	eventsButtonKey   = "ctl00$ctl00$Main$AdminPageContent$fsSetDates$btnSubmit"
	eventsTableID     = "ctl00_ctl00_Main_AdminPageContent_gvEvents"
)

// Event is one row of the portal's event admin list.
type Event struct {
	ID   string
	Name string
}

// ListEvents fetches the events scheduled between the two dates from
// the portal's event admin page.
func (c *Client) ListEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	ctx, span := tracer.Start(ctx, "ListEvents")
	defer span.End()

	page := fmt.Sprintf("/events/edit/%s/", c.orgID)
	fields, cookies, err := c.FormContext(ctx, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch event form context")
		return nil, err
	}

	fields[eventsFromDateKey] = from.Format("02/01/2006")
	fields[eventsToDateKey] = to.Format("02/01/2006")
	fields[eventsButtonKey] = "Find Events"
	fields["__EVENTTARGET"] = ""
	fields["__EVENTARGUMENT"] = ""
	fields["__VIEWSTATEENCRYPTED"] = ""

	res, err := c.postForm(ctx, page, fields, cookies)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post event date filter")
		return nil, err
	}

	// an in-band portal message, not a parse failure
	if strings.Contains(res.String(), "There are no events") {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse event list html")
		return nil, err
	}

	table := doc.Find("table#" + eventsTableID)
	if len(table.Nodes) == 0 {
		perr := &ParseError{Page: "events", Element: eventsTableID, Reason: "table not found"}
		span.RecordError(perr)
		span.SetStatus(codes.Error, "event table missing")
		return nil, perr
	}

	var events []Event
	for _, anchor := range htmlutil.GetAnchors(table.First()) {
		parts := strings.Split(anchor.Href, "/")
		if len(parts) < 6 {
			return nil, &ParseError{
				Page:    "events",
				Element: eventsTableID,
				Reason:  fmt.Sprintf("event link %q has no id segment", anchor.Href),
			}
		}
		events = append(events, Event{ID: parts[5], Name: anchor.Name})
	}

	span.SetAttributes(attribute.Int("event_count", len(events)))
	return events, nil
}
