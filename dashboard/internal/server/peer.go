package server

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// peerResolver names the client behind a request. X-Forwarded-For is only read
// when the connecting peer is one of the configured proxies.
type peerResolver struct {
	trusted []netip.Prefix
}

func newPeerResolver(proxies []string) (peerResolver, error) {
	var p peerResolver
	for _, entry := range proxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return peerResolver{}, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", entry, err)
			}
			p.trusted = append(p.trusted, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return peerResolver{}, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", entry, err)
		}
		addr = addr.Unmap()
		p.trusted = append(p.trusted, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return p, nil
}

func (p peerResolver) trusts(addr netip.Addr) bool {
	for _, prefix := range p.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// clientAddr returns the connecting peer, or, behind trusted proxies, the right-most
// forwarded hop that is not itself a trusted proxy.
func (p peerResolver) clientAddr(r *http.Request) string {
	raw := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	peer, err := netip.ParseAddr(raw)
	if err != nil {
		if raw == "" {
			return "unknown"
		}
		return raw
	}
	peer = peer.Unmap()
	if !p.trusts(peer) {
		return peer.String()
	}
	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		hop = hop.Unmap()
		peer = hop
		if !p.trusts(hop) {
			break
		}
	}
	return peer.String()
}
