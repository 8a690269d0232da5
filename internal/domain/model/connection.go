package model

import (
	"net/url"
	"strings"
)

// DefaultBaseURL is the API endpoint used for github.com connections.
const DefaultBaseURL = "https://api.github.com"

// Connection identifies one GitHub endpoint together with its credential and
// org scope.
type Connection struct {
	ID      string
	Label   string
	BaseURL string
	Host    string
	Token   string
	Orgs    []string
	Viewer  *Profile // Nil until the viewer sync has run for this connection.
}

// ResolvedBaseURL returns BaseURL, or the github.com API when unset.
func (c Connection) ResolvedBaseURL() string {
	if c.BaseURL == "" {
		return DefaultBaseURL
	}
	return c.BaseURL
}

// ResolvedHost returns Host, deriving it from the base URL when unset.
// api.github.com maps to github.com.
func (c Connection) ResolvedHost() string {
	if c.Host != "" {
		return c.Host
	}
	u, err := url.Parse(c.ResolvedBaseURL())
	if err != nil || u.Host == "" {
		return "github.com"
	}
	return strings.TrimPrefix(u.Host, "api.")
}

// IsEnterprise reports whether the connection targets a GitHub Enterprise server.
func (c Connection) IsEnterprise() bool {
	return c.ResolvedBaseURL() != DefaultBaseURL
}
