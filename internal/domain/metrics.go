package domain

// Conversion rates in this package are percentages: 4.2 means 4.2% of mailed
// pieces converted.

// StorePerformanceMetrics is one store's historical response, as reported by
// the metrics feed. The planner never mutates it.
type StorePerformanceMetrics struct {
	StoreID              string  `json:"store_id" db:"store_id"`
	StoreNumber          string  `json:"store_number" db:"store_number"`
	StoreName            string  `json:"store_name" db:"store_name"`
	Region               string  `json:"region" db:"region"`
	State                string  `json:"state" db:"state"`
	City                 string  `json:"city" db:"city"`
	TotalCampaigns       int     `json:"total_campaigns" db:"total_campaigns"`
	AvgConversionRate    float64 `json:"avg_conversion_rate" db:"avg_conversion_rate"`
	RecentConversionRate float64 `json:"recent_conversion_rate" db:"recent_conversion_rate"`
	RecentWindowDays     int     `json:"recent_window_days" db:"recent_window_days"`
}

// CampaignCreativePerformance is a creative's aggregate response across every
// store that has run it.
type CampaignCreativePerformance struct {
	CampaignID     string  `json:"campaign_id" db:"campaign_id"`
	CampaignName   string  `json:"campaign_name" db:"campaign_name"`
	ConversionRate float64 `json:"conversion_rate" db:"conversion_rate"`
	SampleSize     int     `json:"sample_size" db:"sample_size"` // stores that ran it
	TotalPieces    int     `json:"total_pieces" db:"total_pieces"`
	PeakMonth      int     `json:"peak_month" db:"peak_month"` // 1-12, 0 when unknown
}

// GeographicPattern summarises response for a region or a single state.
// CampaignRates holds the per-campaign conversion rate observed in that area.
type GeographicPattern struct {
	Region            string             `json:"region" db:"region"`
	State             string             `json:"state,omitempty" db:"state"`
	AvgConversionRate float64            `json:"avg_conversion_rate" db:"avg_conversion_rate"`
	StoreCount        int                `json:"store_count" db:"store_count"`
	CampaignRates     map[string]float64 `json:"campaign_rates,omitempty"`
}

// IsStateLevel reports whether the pattern describes one state rather than a
// whole region.
func (g *GeographicPattern) IsStateLevel() bool {
	return g.State != ""
}
