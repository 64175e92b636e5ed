package msl

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"texbot/lib/htmlutil"
)

// CookieStatus describes how far the configured session cookie gets
// on the portal.
type CookieStatus int

const (
	// CookieInvalid means the cookie is expired or wrong: the portal
	// redirects to its login page.
	CookieInvalid CookieStatus = iota
	// CookieValid means the cookie authenticates a user, but one with
	// no admin rights over the configured organisation.
	CookieValid
	// CookieAuthorised means the cookie grants admin tools on the
	// configured organisation.
	CookieAuthorised
)

func (s CookieStatus) String() string {
	switch s {
	case CookieValid:
		return "valid"
	case CookieAuthorised:
		return "authorised"
	default:
		return "invalid"
	}
}

// CookieStatus checks the session cookie against the profile page and
// the organisation admin page.
func (c *Client) CookieStatus(ctx context.Context) (CookieStatus, error) {
	ctx, span := tracer.Start(ctx, "CookieStatus")
	defer span.End()

	_, doc, err := c.get(ctx, "/profile")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch profile page")
		return CookieInvalid, err
	}

	title := doc.Find("title").First().Text()
	if title == "" || strings.Contains(title, "Login") {
		span.SetAttributes(attribute.String("cookie_status", "invalid"))
		return CookieInvalid, nil
	}

	res, _, err := c.get(ctx, fmt.Sprintf("/organisation/admin/%s", c.orgID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch organisation admin page")
		return CookieInvalid, err
	}

	body := strings.ToLower(res.String())
	status := CookieInvalid
	switch {
	case strings.Contains(body, "admin tools"):
		status = CookieAuthorised
	case strings.Contains(body, "you do not have any permissions for this organisation"):
		status = CookieValid
	}
	span.SetAttributes(attribute.String("cookie_status", status.String()))
	return status, nil
}

// Organisations lists the portal organisations the session cookie has
// admin access to, scraped from the profile page.
func (c *Client) Organisations(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Organisations")
	defer span.End()

	_, doc, err := c.get(ctx, "/profile")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch profile page")
		return nil, err
	}

	title := doc.Find("title").First().Text()
	if title == "" || strings.Contains(title, "Login") {
		return nil, fmt.Errorf("msl: session cookie is invalid or expired")
	}

	profile := doc.Find("div#profile_main")
	if len(profile.Nodes) == 0 {
		perr := &ParseError{Page: "profile", Element: "profile_main", Reason: "profile section not found"}
		span.RecordError(perr)
		span.SetStatus(codes.Error, "missing profile section")
		return nil, perr
	}

	orgList := doc.Find("ul#ulOrgs")
	if len(orgList.Nodes) == 0 {
		perr := &ParseError{Page: "profile", Element: "ulOrgs", Reason: "organisation list not found"}
		span.RecordError(perr)
		span.SetStatus(codes.Error, "missing organisation list")
		return nil, perr
	}

	var orgs []string
	for _, anchor := range htmlutil.GetAnchors(orgList.First()) {
		if anchor.Name != "" {
			orgs = append(orgs, anchor.Name)
		}
	}
	span.SetAttributes(attribute.Int("organisation_count", len(orgs)))
	return orgs, nil
}
