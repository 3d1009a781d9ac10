package domain

import (
	"strconv"
	"strings"
)

// HeightPlaceholder is substituted with the block height in gateway URL templates.
const HeightPlaceholder = "{height}"

// Gateway is an HTTP endpoint that serves block JSON by height.
type Gateway struct {
	Name        string
	URLTemplate string
	InfoURL     string // optional, serves the current network height
}

// BlockURL returns the URL for the given height.
func (g Gateway) BlockURL(height int64) string {
	return strings.ReplaceAll(g.URLTemplate, HeightPlaceholder, strconv.FormatInt(height, 10))
}

// Proxy is an egress proxy. A nil *Proxy means a direct connection.
type Proxy struct {
	Address string
}

// ProxyName returns a printable name for a possibly nil proxy.
func ProxyName(p *Proxy) string {
	if p == nil || p.Address == "" {
		return "none"
	}
	return p.Address
}

// NormalizeProxies converts configured addresses to proxies. Empty entries
// mean a direct connection; an empty list becomes a single direct entry.
func NormalizeProxies(addresses []string) []*Proxy {
	if len(addresses) == 0 {
		return []*Proxy{nil}
	}

	proxies := make([]*Proxy, 0, len(addresses))
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" || strings.EqualFold(addr, "none") || strings.EqualFold(addr, "null") {
			proxies = append(proxies, nil)
			continue
		}
		proxies = append(proxies, &Proxy{Address: addr})
	}
	return proxies
}
