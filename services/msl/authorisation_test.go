package msl

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

const profileHTML = `<html><head><title>Profile: A Committee Member</title></head><body>
<div id="profile_main"><h1>A Committee Member</h1></div>
<ul id="ulOrgs">
<li><a href="/organisation/admin/6531/">The Society</a></li>
<li><a href="/organisation/admin/7123/">Another Society</a></li>
</ul>
</body></html>`

const loginHTML = `<html><head><title>Login to the site</title></head><body>
<form>Please log in</form></body></html>`

func TestCookieStatusAuthorised(t *testing.T) {
	setup(t)

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/profile":
			w.Write([]byte(profileHTML))
		case "/organisation/admin/6531":
			w.Write([]byte(`<html><body><h2>Admin Tools</h2></body></html>`))
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}))

	status, err := client.CookieStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, CookieAuthorised, status)
}

func TestCookieStatusValidButNotAuthorised(t *testing.T) {
	setup(t)

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/profile" {
			w.Write([]byte(profileHTML))
			return
		}
		w.Write([]byte(`<html><body>You do not have any permissions for this organisation.</body></html>`))
	}))

	status, err := client.CookieStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, CookieValid, status)
}

func TestCookieStatusInvalid(t *testing.T) {
	setup(t)

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(loginHTML))
	}))

	status, err := client.CookieStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, CookieInvalid, status)
}

func TestOrganisations(t *testing.T) {
	setup(t)

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(profileHTML))
	}))

	orgs, err := client.Organisations(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"The Society", "Another Society"}, orgs)
}

func TestOrganisationsInvalidCookie(t *testing.T) {
	setup(t)

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(loginHTML))
	}))

	_, err := client.Organisations(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "cookie")
}

func TestOrganisationsMissingList(t *testing.T) {
	setup(t)

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Profile</title></head><body>
<div id="profile_main"></div></body></html>`))
	}))

	_, err := client.Organisations(context.Background())
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "ulOrgs", parseErr.Element)
}
