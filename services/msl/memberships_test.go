package msl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"texbot/lib/telemetry"
)

func setup(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "msl_test")
	t.Cleanup(cleanup)
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Options{
		BaseURL:        server.URL,
		OrganisationID: "6531",
		SessionCookie:  "test-cookie",
	})
	require.NoError(t, err)
	return client
}

const memberListHTML = `<html><head><title>Member List</title></head><body>
<table id="ctl00_Main_rptGroups_ctl03_gvMemberships">
<tr><th>Name</th><th>ID</th></tr>
<tr class="msl_row"><td>Alex Doe</td><td>1234567</td></tr>
<tr class="msl_altrow"><td>Sam Roe</td><td>7654321</td></tr>
</table>
<table id="ctl00_Main_rptGroups_ctl05_gvMemberships">
<tr><th>Name</th><th>ID</th></tr>
<tr class="msl_row"><td>Alex Doe</td><td>1234567</td></tr>
<tr class="msl_altrow"><td>Jo External</td><td> </td></tr>
</table>
</body></html>`

func TestFetchMemberList(t *testing.T) {
	setup(t)

	var gotCookie string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/organisation/memberlist/6531/", r.URL.Path)
		if cookie, err := r.Cookie(".ASPXAUTH"); err == nil {
			gotCookie = cookie.Value
		}
		w.Write([]byte(memberListHTML))
	}))

	records, err := client.FetchMemberList(context.Background())
	require.NoError(t, err)
	require.Equal(t, "test-cookie", gotCookie)

	// rows from both tables, duplicates collapsed, blank IDs kept as
	// empty strings
	require.Equal(t, []MembershipRecord{
		{Name: "Alex Doe", MemberID: "1234567"},
		{Name: "Sam Roe", MemberID: "7654321"},
		{Name: "Jo External", MemberID: ""},
	}, records)
}

func TestFetchMemberListMissingTable(t *testing.T) {
	setup(t)

	// a login page instead of the member list, e.g. after the session
	// cookie expired
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Login</title></head><body>
			<form>Please log in</form></body></html>`))
	}))

	_, err := client.FetchMemberList(context.Background())
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "memberlist", parseErr.Page)
}

func TestFetchMemberListMalformedRow(t *testing.T) {
	setup(t)

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
<table id="ctl00_Main_rptGroups_ctl03_gvMemberships">
<tr class="msl_row"><td>only one cell</td></tr>
</table>
<table id="ctl00_Main_rptGroups_ctl05_gvMemberships">
<tr class="msl_row"><td>Alex Doe</td><td>1234567</td></tr>
</table>
</body></html>`))
	}))

	_, err := client.FetchMemberList(context.Background())
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Contains(t, parseErr.Reason, "cells")
}

func TestFetchMemberListHTTPError(t *testing.T) {
	setup(t)

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.FetchMemberList(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}
