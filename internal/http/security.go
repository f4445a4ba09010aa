package http

import (
	"mime"
	"net/http"
	"net/netip"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// Reasons a request is flagged by the screen. Flagged requests are still
// served; they are logged and counted.
const (
	reasonPattern     = "pattern"
	reasonAgent       = "scanner_agent"
	reasonMethod      = "method"
	reasonURLLength   = "url_length"
	reasonProxyChain  = "proxy_chain"
	reasonContentType = "content_type"
)

const maxForwardedHops = 5

// ScreenConfig tunes request screening and client address resolution.
type ScreenConfig struct {
	// TrustedProxies are CIDRs whose X-Forwarded-For and X-Real-IP are honoured.
	TrustedProxies []string
	// Patterns match case-insensitively against the path and raw query.
	Patterns []string
	// Agents match case-insensitively against the User-Agent.
	Agents       []string
	MaxURLLength int
}

func DefaultScreenConfig() ScreenConfig {
	return ScreenConfig{
		TrustedProxies: []string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "::1/128"},
		Patterns: []string{
			"../", "..\\", "%2e%2e", ".env", ".git", "wp-admin", "phpmyadmin",
			"<script", "javascript:", "union select", "etc/passwd",
		},
		Agents:       []string{"sqlmap", "nikto", "nmap", "gobuster", "masscan", "zgrab"},
		MaxURLLength: 2048,
	}
}

type screen struct {
	proxies  []netip.Prefix
	patterns []string
	agents   []string
	maxURL   int
}

// newScreen compiles cfg. Unparseable proxy entries are returned so the
// caller can report them; they are otherwise ignored.
func newScreen(cfg ScreenConfig) (*screen, []string) {
	sc := &screen{maxURL: cfg.MaxURLLength}
	var rejected []string
	for _, cidr := range cfg.TrustedProxies {
		p, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			rejected = append(rejected, cidr)
			continue
		}
		sc.proxies = append(sc.proxies, p.Masked())
	}
	for _, p := range cfg.Patterns {
		sc.patterns = append(sc.patterns, strings.ToLower(p))
	}
	for _, a := range cfg.Agents {
		sc.agents = append(sc.agents, strings.ToLower(a))
	}
	return sc, rejected
}

func (sc *screen) trusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	return slices.ContainsFunc(sc.proxies, func(p netip.Prefix) bool { return p.Contains(addr) })
}

// clientIP resolves the caller's address. Forwarding headers count only when
// the peer is a trusted proxy; X-Forwarded-For is walked from the right so a
// client cannot spoof its address by prepending entries.
func (sc *screen) clientIP(r *http.Request) string {
	peer, err := netip.ParseAddrPort(r.RemoteAddr)
	var addr netip.Addr
	if err == nil {
		addr = peer.Addr()
	} else if addr, err = netip.ParseAddr(r.RemoteAddr); err != nil {
		return r.RemoteAddr
	}
	addr = addr.Unmap()
	if !sc.trusted(addr) {
		return addr.String()
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		var leftmost netip.Addr
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			leftmost = hop.Unmap()
			if !sc.trusted(leftmost) {
				return leftmost.String()
			}
		}
		if leftmost.IsValid() {
			return leftmost.String()
		}
	}
	if xri, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return xri.Unmap().String()
	}
	return addr.String()
}

// inspect returns the first reason the request looks hostile, or "".
func (sc *screen) inspect(r *http.Request) string {
	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)
	for _, p := range sc.patterns {
		if strings.Contains(target, p) {
			return reasonPattern
		}
	}

	agent := strings.ToLower(r.UserAgent())
	for _, a := range sc.agents {
		if strings.Contains(agent, a) {
			return reasonAgent
		}
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions:
	default:
		return reasonMethod
	}

	if sc.maxURL > 0 && len(r.URL.String()) > sc.maxURL {
		return reasonURLLength
	}
	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") >= maxForwardedHops {
		return reasonProxyChain
	}

	// Ledger writes carry JSON bodies only.
	if (r.Method == http.MethodPost || r.Method == http.MethodPut) &&
		strings.HasPrefix(r.URL.Path, "/api/") && r.ContentLength != 0 {
		mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mt != "application/json" {
			return reasonContentType
		}
	}
	return ""
}

// securityMetrics counts rejected and flagged requests.
type securityMetrics struct {
	rateLimitHits atomic.Int64
	authFailures  atomic.Int64
	suspicious    atomic.Int64

	mu       sync.Mutex
	byReason map[string]int64
}

// SecurityStats is a point-in-time copy of the counters.
type SecurityStats struct {
	RateLimitHits      int64            `json:"rateLimitHits"`
	AuthFailures       int64            `json:"authFailures"`
	SuspiciousRequests int64            `json:"suspiciousRequests"`
	SuspiciousByReason map[string]int64 `json:"suspiciousByReason"`
}

func (m *securityMetrics) recordRateLimit()   { m.rateLimitHits.Add(1) }
func (m *securityMetrics) recordAuthFailure() { m.authFailures.Add(1) }

func (m *securityMetrics) recordSuspicious(reason string) {
	m.suspicious.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byReason == nil {
		m.byReason = map[string]int64{}
	}
	m.byReason[reason]++
}

func (m *securityMetrics) snapshot() SecurityStats {
	m.mu.Lock()
	byReason := make(map[string]int64, len(m.byReason))
	for k, v := range m.byReason {
		byReason[k] = v
	}
	m.mu.Unlock()
	return SecurityStats{
		RateLimitHits:      m.rateLimitHits.Load(),
		AuthFailures:       m.authFailures.Load(),
		SuspiciousRequests: m.suspicious.Load(),
		SuspiciousByReason: byReason,
	}
}
