package router

import (
	"context"
	"net"

	"github.com/ferro-labs/model-gateway/internal/alias"
)

// RegionBucket assigns a CIDR range to a region label, and optionally
// restricts that region to a set of preferred providers. This is
// deliberately coarse: no third-party GeoIP database is wired (see
// DESIGN.md) — region is derived purely from static CIDR membership.
type RegionBucket struct {
	CIDR              *net.IPNet
	Region            string
	PreferredProviders map[string]bool
}

// GeoFilter implements the optional geo pre-filter resolved from spec.md
// §9's geo_router Open Question: applied only when a client IP is supplied
// on the request, it reorders/restricts candidates toward providers
// preferred for the client's region without excluding the rest outright,
// preserving fallback coverage when no regional preference matches.
type GeoFilter struct {
	Buckets []RegionBucket
}

// Filter reorders candidates so that providers preferred for clientIP's
// region sort first, stable otherwise. Candidates whose provider isn't
// mentioned in any matching bucket are left in their original relative
// order at the end.
func (g *GeoFilter) Filter(_ context.Context, clientIP string, candidates []alias.Entry) []alias.Entry {
	ip := net.ParseIP(clientIP)
	if ip == nil || len(candidates) == 0 {
		return candidates
	}

	var preferred map[string]bool
	for _, b := range g.Buckets {
		if b.CIDR != nil && b.CIDR.Contains(ip) {
			preferred = b.PreferredProviders
			break
		}
	}
	if len(preferred) == 0 {
		return candidates
	}

	ordered := make([]alias.Entry, 0, len(candidates))
	rest := make([]alias.Entry, 0, len(candidates))
	for _, c := range candidates {
		if preferred[c.Provider] {
			ordered = append(ordered, c)
		} else {
			rest = append(rest, c)
		}
	}
	return append(ordered, rest...)
}
