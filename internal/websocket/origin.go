package websocket

import (
	"net"
	"net/url"
	"strings"
)

// OriginValidator interface for WebSocket origin validation
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}

// AllowList accepts loopback origins on any port plus an explicit list of
// scheme://host[:port] origins.
type AllowList struct {
	origins map[string]bool
}

// NewAllowList builds a validator from configured origins. Entries are
// normalized to lower-case scheme://host[:port]; malformed entries are ignored.
func NewAllowList(origins []string) *AllowList {
	a := &AllowList{origins: make(map[string]bool)}
	for _, o := range origins {
		u, err := url.Parse(strings.TrimSpace(o))
		if err != nil || u.Host == "" {
			continue
		}
		a.origins[strings.ToLower(u.Scheme+"://"+u.Host)] = true
	}
	return a
}

// IsAllowedOrigin implements OriginValidator.
func (a *AllowList) IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if isLoopback(u.Hostname()) {
		return true
	}
	return a.origins[strings.ToLower(u.Scheme+"://"+u.Host)]
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
