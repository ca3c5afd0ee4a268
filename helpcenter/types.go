// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package helpcenter

import (
	"encoding/json"

	"github.com/juju/errors"
)

// Category is a top-level grouping of sections.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Section groups articles and belongs to exactly one category.
type Section struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CategoryID int64  `json:"category_id"`
}

// Article is a single help-center article. Only the fields the backup
// needs are decoded; Raw holds the complete record as it was received.
type Article struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	SectionID int64  `json:"section_id"`

	// Raw is the article record exactly as returned by the API,
	// including every field not modelled above.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON implements json.Unmarshaler, keeping a copy of the
// undecoded record in Raw.
func (a *Article) UnmarshalJSON(data []byte) error {
	type plain Article
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return errors.Trace(err)
	}
	*a = Article(p)
	a.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON implements json.Marshaler. The raw record is preferred so
// that fields the backup does not know about survive a round trip.
func (a Article) MarshalJSON() ([]byte, error) {
	if len(a.Raw) > 0 {
		return a.Raw, nil
	}
	type plain Article
	return json.Marshal(plain(a))
}

// Credentials authenticate help-center requests with HTTP basic auth.
// Either Password or Token should be set; a token takes precedence.
type Credentials struct {
	Email    string
	Password string
	Token    string
}

// basicAuth returns the username and password for HTTP basic auth.
// API tokens use the "<email>/token" username convention.
func (c Credentials) basicAuth() (string, string) {
	if c.Token != "" {
		return c.Email + "/token", c.Token
	}
	return c.Email, c.Password
}
