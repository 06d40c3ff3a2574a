package browser

import (
	"context"
	"strings"
)

// Cookie is a single name/value pair scoped to a domain.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// ParseCookies splits a raw "name=value; name2=value2" header string. Segments
// without "=" or with an empty name are skipped. Values keep any further "="
// characters.
func ParseCookies(raw string) []Cookie {
	var out []Cookie
	for _, seg := range strings.Split(raw, ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		name, value, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, Cookie{Name: name, Value: strings.TrimSpace(value)})
	}
	return out
}

// CookieReport counts the outcome of an injection.
type CookieReport struct {
	Added  int
	Failed int
}

// InjectCookies parses raw and adds every cookie under domain with path "/".
// A cookie the browser rejects is counted and skipped.
func InjectCookies(ctx context.Context, s Session, raw, domain string) CookieReport {
	var rep CookieReport
	for _, c := range ParseCookies(raw) {
		c.Domain = domain
		c.Path = "/"
		if err := s.AddCookie(ctx, c); err != nil {
			rep.Failed++
			continue
		}
		rep.Added++
	}
	return rep
}
