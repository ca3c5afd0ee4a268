// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package helpcenter is a read-only client for the help-center REST API.
// Every list call follows the next_page cursor until the API reports
// there is nothing left, so callers always see complete result sets.
package helpcenter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"golang.org/x/time/rate"
)

var logger = loggo.GetLogger("helpcenterbackup.helpcenter")

const (
	// DefaultPerPage is the page size requested when none is configured.
	// It is the largest page the help-center API will serve.
	DefaultPerPage = 100

	// DefaultTimeout bounds a single API request.
	DefaultTimeout = time.Minute

	apiPrefix        = "/api/v2/help_center"
	defaultUserAgent = "helpcenter-backup"
)

// Config holds the parameters for NewClient.
type Config struct {
	// Domain is the help-center base URL, e.g. https://example.zendesk.com.
	// A bare host name is assumed to be https.
	Domain string

	// Credentials are optional. When nil or incomplete, requests are
	// sent without authentication, which works for public help centers.
	Credentials *Credentials

	// PerPage is the page size to request; zero means DefaultPerPage.
	PerPage int

	// RequestsPerMinute throttles requests client side; zero disables
	// throttling.
	RequestsPerMinute int

	// HTTPClient is used for every request. A client with
	// DefaultTimeout is created when nil.
	HTTPClient *http.Client

	// UserAgent overrides the User-Agent header.
	UserAgent string
}

// Validate checks the configuration.
func (cfg Config) Validate() error {
	if strings.TrimSpace(cfg.Domain) == "" {
		return errors.NotValidf("empty Domain")
	}
	if cfg.PerPage < 0 {
		return errors.NotValidf("negative PerPage %d", cfg.PerPage)
	}
	if cfg.RequestsPerMinute < 0 {
		return errors.NotValidf("negative RequestsPerMinute %d", cfg.RequestsPerMinute)
	}
	return nil
}

// Client fetches categories, sections and articles. A Client keeps a
// single http.Client so connections are reused across calls.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	auth      *Credentials
	perPage   int
	limiter   *rate.Limiter
	userAgent string
}

// NewClient returns a Client for the configured help center.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	base, err := parseDomain(cfg.Domain)
	if err != nil {
		return nil, errors.Trace(err)
	}

	c := &Client{
		baseURL:   base,
		http:      cfg.HTTPClient,
		perPage:   cfg.PerPage,
		userAgent: cfg.UserAgent,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: DefaultTimeout}
	}
	if c.perPage == 0 {
		c.perPage = DefaultPerPage
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	if creds := cfg.Credentials; creds != nil && creds.Email != "" && (creds.Password != "" || creds.Token != "") {
		c.auth = creds
	} else {
		logger.Infof("no complete help center credentials, sending anonymous requests to %s", base)
	}
	return c, nil
}

func parseDomain(domain string) (*url.URL, error) {
	domain = strings.TrimSpace(domain)
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	u, err := url.Parse(domain)
	if err != nil {
		return nil, errors.NewNotValid(err, fmt.Sprintf("help center domain %q", domain))
	}
	if u.Host == "" {
		return nil, errors.NotValidf("help center domain %q without host", domain)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// listOptions are the query parameters shared by every list endpoint.
type listOptions struct {
	PerPage int `url:"per_page,omitempty"`
}

func (c *Client) endpoint(parts ...string) (string, error) {
	u := *c.baseURL
	u.Path = path.Join(append([]string{u.Path, apiPrefix}, parts...)...)
	values, err := query.Values(listOptions{PerPage: c.perPage})
	if err != nil {
		return "", errors.Trace(err)
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

// Categories returns every category in the help center.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	first, err := c.endpoint("categories.json")
	if err != nil {
		return nil, errors.Trace(err)
	}
	categories, err := fetchAll[Category](ctx, c, first, "categories")
	if err != nil {
		return nil, errors.Trace(err)
	}
	logger.Infof("fetched %d categories", len(categories))
	return categories, nil
}

// Sections returns every section in the help center.
func (c *Client) Sections(ctx context.Context) ([]Section, error) {
	first, err := c.endpoint("sections.json")
	if err != nil {
		return nil, errors.Trace(err)
	}
	sections, err := fetchAll[Section](ctx, c, first, "sections")
	if err != nil {
		return nil, errors.Trace(err)
	}
	logger.Infof("fetched %d sections", len(sections))
	return sections, nil
}

// Articles returns every article in the given section.
func (c *Client) Articles(ctx context.Context, sectionID int64) ([]Article, error) {
	first, err := c.endpoint("sections", strconv.FormatInt(sectionID, 10), "articles.json")
	if err != nil {
		return nil, errors.Trace(err)
	}
	articles, err := fetchAll[Article](ctx, c, first, "articles")
	if err != nil {
		return nil, errors.Annotatef(err, "articles for section %d", sectionID)
	}
	logger.Debugf("fetched %d articles for section %d", len(articles), sectionID)
	return articles, nil
}

// fetchAll requests firstURL and every page after it, collecting the
// items held in the named list field.
func fetchAll[T any](ctx context.Context, c *Client, firstURL, field string) ([]T, error) {
	var all []T
	visited := make(map[string]bool)
	next := firstURL
	for page := 1; next != ""; page++ {
		if visited[next] {
			return nil, &APIError{
				URL:     next,
				Message: "malformed pagination cursor: page already visited",
			}
		}
		visited[next] = true

		body, err := c.get(ctx, next)
		if err != nil {
			return nil, errors.Trace(err)
		}
		items, cursor, err := decodePage[T](next, body, field)
		if err != nil {
			return nil, errors.Trace(err)
		}
		all = append(all, items...)
		logger.Tracef("page %d of %s: %d items", page, field, len(items))

		if next, err = followCursor(next, cursor); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return all, nil
}

func decodePage[T any](pageURL string, body []byte, field string) ([]T, *string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, nil, &ParseError{URL: pageURL, Err: err}
	}
	raw, ok := doc[field]
	if !ok {
		return nil, nil, &ParseError{URL: pageURL, Err: errors.Errorf("missing %q field", field)}
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, nil, &ParseError{URL: pageURL, Err: err}
	}

	var cursor *string
	if rawNext, ok := doc["next_page"]; ok {
		if err := json.Unmarshal(rawNext, &cursor); err != nil {
			return nil, nil, &APIError{
				URL:     pageURL,
				Message: fmt.Sprintf("malformed pagination cursor %s", rawNext),
			}
		}
	}
	return items, cursor, nil
}

// followCursor returns the URL of the next page, or "" once the API
// reports the last page.
func followCursor(pageURL string, cursor *string) (string, error) {
	if cursor == nil || *cursor == "" {
		return "", nil
	}
	u, err := url.Parse(*cursor)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", &APIError{
			URL:     pageURL,
			Message: fmt.Sprintf("malformed pagination cursor %q", *cursor),
		}
	}
	return u.String(), nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Trace(err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.auth != nil {
		req.SetBasicAuth(c.auth.basicAuth())
	}

	logger.Debugf("GET %s", rawURL)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Annotatef(err, "requesting %s", rawURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Annotatef(err, "reading response from %s", rawURL)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &APIError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Body:       truncate(body),
		}
	}
	return body, nil
}
