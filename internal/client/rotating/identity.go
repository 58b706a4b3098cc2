package rotating

import (
	"fmt"
	"net/url"
	"strings"
)

// HeaderProfile is one set of request headers presented to the origin.
type HeaderProfile map[string]string

// Route is an egress path. The zero value is a direct connection.
type Route struct {
	proxy *url.URL
}

func Direct() Route {
	return Route{}
}

// ParseRoute accepts "", "direct" or a proxy URL. Only well-formed URLs are
// accepted; whether the scheme is usable is decided when the route is used.
func ParseRoute(raw string) (Route, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "direct") {
		return Direct(), nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Route{}, fmt.Errorf("parse proxy %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Route{}, fmt.Errorf("parse proxy %q: scheme and host are required", raw)
	}
	return Route{proxy: u}, nil
}

func (r Route) IsDirect() bool {
	return r.proxy == nil
}

func (r Route) Supported() bool {
	if r.proxy == nil {
		return true
	}
	switch strings.ToLower(r.proxy.Scheme) {
	case "http", "https", "socks5", "socks5h":
		return true
	default:
		return false
	}
}

// String renders the route with any password redacted.
func (r Route) String() string {
	if r.proxy == nil {
		return "direct"
	}
	return r.proxy.Redacted()
}

// BrowserProfiles imitate desktop browsers loading an HTML page.
func BrowserProfiles() []HeaderProfile {
	return []HeaderProfile{
		{
			"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
			"Accept-Language": "en-US,en;q=0.9",
		},
		{
			"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 11_0_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.1 Safari/605.1.15",
			"Accept-Language": "en-GB,en;q=0.8",
		},
		{
			"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Accept-Language": "en-IN,en;q=0.7",
		},
		{
			"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
			"Accept-Language": "en-US,en;q=0.9",
		},
	}
}

// APIProfiles imitate a browser calling a JSON endpoint.
func APIProfiles() []HeaderProfile {
	return []HeaderProfile{
		{
			"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		},
		{
			"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:132.0) Gecko/20100101 Firefox/132.0",
			"Accept":          "application/json,text/plain,*/*",
			"Accept-Language": "en-US,en;q=0.8",
		},
		{
			"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
			"Accept":          "application/json",
			"Accept-Language": "en-US,en;q=0.7",
		},
	}
}
