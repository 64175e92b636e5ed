// Package msl scrapes an MSL-based students' union web portal: the
// membership list, the events admin pages and the sales report
// exports. Authentication is a single .ASPXAUTH session cookie issued
// to a committee account; every request carries it.
package msl

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"

	"texbot/lib/restyutil"
)

const authCookieName = ".ASPXAUTH"

type Options struct {
	// BaseURL is the root of the portal, e.g. "https://www.guildofstudents.com".
	BaseURL string
	// OrganisationID identifies the society on the portal.
	OrganisationID string
	// SessionCookie is the value of the committee account's .ASPXAUTH cookie.
	SessionCookie string
}

type Client struct {
	baseURL       *url.URL
	orgID         string
	sessionCookie string
	http          *resty.Client
}

func NewClient(opts Options) (*Client, error) {
	baseURL, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	if opts.OrganisationID == "" {
		return nil, fmt.Errorf("msl: organisation id is required")
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseURL)
	client.SetHeaders(map[string]string{
		"Cache-Control": "no-cache",
		"Pragma":        "no-cache",
		"Expires":       "0",
	})
	client.SetCookie(&http.Cookie{Name: authCookieName, Value: opts.SessionCookie})
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseURL.Hostname()))
	client.SetTimeout(time.Second * 30)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return &Client{
		baseURL:       baseURL,
		orgID:         opts.OrganisationID,
		sessionCookie: opts.SessionCookie,
		http:          client,
	}, nil
}

// OrganisationID reports the portal organisation this client scrapes.
func (c *Client) OrganisationID() string {
	return c.orgID
}

func (c *Client) get(ctx context.Context, path string) (*resty.Response, *goquery.Document, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		return nil, nil, err
	}
	if res.StatusCode() != http.StatusOK {
		return nil, nil, fmt.Errorf("msl: GET %s returned status %d", path, res.StatusCode())
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, nil, err
	}
	return res, doc, nil
}

// FormContext fetches an ASP.NET page and extracts everything needed
// to post one of its forms back: every named <input> with a value
// (the __VIEWSTATE family among them) and the response cookies, with
// the auth cookie re-injected.
func (c *Client) FormContext(ctx context.Context, path string) (map[string]string, []*http.Cookie, error) {
	ctx, span := tracer.Start(ctx, "FormContext")
	defer span.End()

	res, doc, err := c.get(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch form page")
		return nil, nil, err
	}

	fields := map[string]string{}
	doc.Find("input").Each(func(_ int, input *goquery.Selection) {
		name := input.AttrOr("name", "")
		value := input.AttrOr("value", "")
		if name != "" && value != "" {
			fields[name] = value
		}
	})

	cookies := []*http.Cookie{}
	for _, cookie := range res.Cookies() {
		if cookie.Name == authCookieName {
			continue
		}
		cookies = append(cookies, cookie)
	}
	cookies = append(cookies, &http.Cookie{Name: authCookieName, Value: c.sessionCookie})

	return fields, cookies, nil
}

func (c *Client) postForm(ctx context.Context, path string, fields map[string]string, cookies []*http.Cookie) (*resty.Response, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetCookies(cookies).
		SetFormData(fields).
		Post(path)
	if err != nil {
		return nil, err
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("msl: POST %s returned status %d", path, res.StatusCode())
	}
	return res, nil
}
