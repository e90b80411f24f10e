package connection

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// DefaultChannelPath is the status channel path on the dashboard host.
const DefaultChannelPath = "/ws/status"

const redacted = "REDACTED"

// EndpointForPage derives the channel URL from the page the dashboard is
// served from: https pages get wss, anything else ws. The host is taken
// from the page; port overrides the page's port when non-zero.
func EndpointForPage(pageURL, path string, port int) (string, error) {
	page, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	if page.Host == "" {
		return "", fmt.Errorf("page url %q has no host", pageURL)
	}

	scheme := "ws"
	if strings.EqualFold(page.Scheme, "https") {
		scheme = "wss"
	}

	host := page.Host
	if port > 0 {
		host = net.JoinHostPort(page.Hostname(), strconv.Itoa(port))
	}

	if path == "" {
		path = DefaultChannelPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	u := url.URL{Scheme: scheme, Host: host, Path: path}
	return u.String(), nil
}

// BuildURL appends token as the "token" query parameter. An empty token
// leaves the endpoint unchanged.
func BuildURL(endpoint, token string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return "", fmt.Errorf("endpoint scheme %q is not ws or wss", u.Scheme)
	}
	if token == "" {
		return u.String(), nil
	}

	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// RedactURL replaces the token query value so the URL is safe to log.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", redacted)
		u.RawQuery = q.Encode()
	}
	return u.String()
}
