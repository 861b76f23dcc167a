package recommendation

import (
	"strings"

	"github.com/ignite/retail-planner/internal/domain"
)

// GeoIndex resolves the geographic pattern for a store. State-level patterns
// win over region-level ones when they carry a rate for the campaign.
// A nil *GeoIndex is valid and resolves nothing.
type GeoIndex struct {
	byState  map[string]*domain.GeographicPattern
	byRegion map[string]*domain.GeographicPattern
}

// NewGeoIndex indexes patterns by state and region. Later duplicates replace
// earlier ones.
func NewGeoIndex(patterns []domain.GeographicPattern) *GeoIndex {
	idx := &GeoIndex{
		byState:  make(map[string]*domain.GeographicPattern),
		byRegion: make(map[string]*domain.GeographicPattern),
	}
	for i := range patterns {
		p := &patterns[i]
		if p.IsStateLevel() {
			idx.byState[geoKey(p.State)] = p
		} else if p.Region != "" {
			idx.byRegion[geoKey(p.Region)] = p
		}
	}
	return idx
}

// For returns the best pattern for the store and campaign, or nil.
func (g *GeoIndex) For(store *domain.StorePerformanceMetrics, campaignID string) *domain.GeographicPattern {
	if g == nil || store == nil {
		return nil
	}
	state := g.byState[geoKey(store.State)]
	region := g.byRegion[geoKey(store.Region)]
	switch {
	case hasRate(state, campaignID):
		return state
	case hasRate(region, campaignID):
		return region
	case state != nil:
		return state
	default:
		return region
	}
}

func hasRate(p *domain.GeographicPattern, campaignID string) bool {
	if p == nil {
		return false
	}
	_, ok := p.CampaignRates[campaignID]
	return ok
}

func geoKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
