package utils

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
)

// ExtractClientIP returns the caller address. Forwarded headers are honoured
// only for proxies gin is configured to trust (engine.SetTrustedProxies).
func ExtractClientIP(c *gin.Context) string {
	if ip := c.ClientIP(); isValidIP(ip) {
		return ip
	}

	// RemoteAddr format: "IP:port" or "[IPv6]:port"
	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		ip = c.Request.RemoteAddr
	}
	if isValidIP(ip) {
		return ip
	}
	return ""
}

func isValidIP(ip string) bool {
	if ip == "" {
		return false
	}
	_, err := netip.ParseAddr(ip)
	return err == nil
}

// =====================================================
// IP ALLOW LIST
// =====================================================

// IPAllowList matches caller addresses against CIDR ranges.
// An empty list allows everyone.
type IPAllowList struct {
	prefixes []netip.Prefix
}

// NewIPAllowList parses entries like "10.0.0.0/8" or a bare "203.0.113.7".
func NewIPAllowList(entries []string) (*IPAllowList, error) {
	l := &IPAllowList{}
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid allow-list entry %q: %w", raw, err)
			}
			l.prefixes = append(l.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid allow-list entry %q: %w", raw, err)
		}
		l.prefixes = append(l.prefixes, p.Masked())
	}
	return l, nil
}

func (l *IPAllowList) Empty() bool {
	return l == nil || len(l.prefixes) == 0
}

func (l *IPAllowList) Allows(ip string) bool {
	if l.Empty() {
		return true
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range l.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
