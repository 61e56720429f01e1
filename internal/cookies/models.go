package cookies

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Cookie is a handshake cookie as persisted between runs.
type Cookie struct {
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Name     string `json:"name"`
	Value    string `json:"value"`
	Secure   bool   `json:"secure"`
	HTTPOnly bool   `json:"http_only"`
	SameSite string `json:"same_site,omitempty"`

	// HostOnly cookies were set without a Domain attribute.
	HostOnly bool `json:"host_only"`

	Expires   time.Time `json:"expires"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session reports whether the cookie has no expiry.
func (c Cookie) Session() bool {
	return c.Expires.IsZero()
}

// ExpiredAt reports whether the cookie is expired at now.
func (c Cookie) ExpiredAt(now time.Time) bool {
	return !c.Expires.IsZero() && !now.Before(c.Expires)
}

var sameSiteNames = map[http.SameSite]string{
	http.SameSiteLaxMode:    "lax",
	http.SameSiteStrictMode: "strict",
	http.SameSiteNoneMode:   "none",
}

// HTTPCookie converts c for an http.CookieJar.
func (c Cookie) HTTPCookie() *http.Cookie {
	hc := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
		Expires:  c.Expires,
	}
	if !c.HostOnly {
		hc.Domain = c.Domain
	}
	for mode, name := range sameSiteNames {
		if name == c.SameSite {
			hc.SameSite = mode
		}
	}
	return hc
}

// URL returns an address the cookie can be replayed against.
func (c Cookie) URL() *url.URL {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return &url.URL{Scheme: scheme, Host: c.Domain, Path: c.Path}
}

// FromHTTPCookie captures hc as received from u at now.
func FromHTTPCookie(u *url.URL, hc *http.Cookie, now time.Time) Cookie {
	c := Cookie{
		Domain:    strings.TrimPrefix(strings.ToLower(hc.Domain), "."),
		Path:      hc.Path,
		Name:      hc.Name,
		Value:     hc.Value,
		Secure:    hc.Secure,
		HTTPOnly:  hc.HttpOnly,
		SameSite:  sameSiteNames[hc.SameSite],
		Expires:   hc.Expires,
		UpdatedAt: now,
	}
	if c.Domain == "" {
		c.Domain = strings.ToLower(u.Hostname())
		c.HostOnly = true
	}
	if c.Path == "" || c.Path[0] != '/' {
		c.Path = defaultPath(u.Path)
	}
	switch {
	case hc.MaxAge > 0:
		c.Expires = now.Add(time.Duration(hc.MaxAge) * time.Second)
	case hc.MaxAge < 0:
		c.Expires = time.Unix(0, 0)
	}
	return c
}

// defaultPath is the directory of the request path, as browsers and
// net/http/cookiejar compute it.
func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}

// QueryOptions filters cookie listings.
type QueryOptions struct {
	Domain         string // Exact domain match
	IncludeExpired bool
}
