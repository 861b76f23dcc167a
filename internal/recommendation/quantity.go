package recommendation

import (
	"math"

	"github.com/ignite/retail-planner/internal/domain"
)

// quantityStep is the print run granularity.
const quantityStep = 50

// responseExponent shapes the diminishing-returns response curve.
const responseExponent = 0.9

// recommendedQuantity scales the base run by the overall score: a neutral
// score keeps the base, a perfect score mails 1.5x, a zero score mails half.
func recommendedQuantity(overall float64, cfg Config) int {
	raw := float64(cfg.BaseQuantity) * cfg.QuantityMultiplier * (0.5 + overall)
	q := int(math.Round(raw/quantityStep)) * quantityStep
	if q < cfg.MinQuantity {
		q = cfg.MinQuantity
	}
	if q > cfg.MaxQuantity {
		q = cfg.MaxQuantity
	}
	return q
}

// ResponseFactor is the saturation multiplier applied to a base conversion
// rate for a run of q pieces: 0.5 + 0.5·q^0.9 / (h^0.9 + q^0.9).
func ResponseFactor(q, halfSaturation int) float64 {
	if q <= 0 || halfSaturation <= 0 {
		return 0.5
	}
	qe := math.Pow(float64(q), responseExponent)
	he := math.Pow(float64(halfSaturation), responseExponent)
	return 0.5 + 0.5*qe/(he+qe)
}

// expectedRate projects a conversion rate (percent) for a run of q pieces.
// Observed rates are treated as measured at the half-saturation quantity, so
// the curve is normalised to 1.0 there.
func expectedRate(store *domain.StorePerformanceMetrics, campaign *domain.CampaignCreativePerformance, q int, cfg Config) float64 {
	var base float64
	switch {
	case store != nil && campaign != nil:
		base = (store.RecentConversionRate + campaign.ConversionRate) / 2
	case store != nil:
		base = store.RecentConversionRate
	case campaign != nil:
		base = campaign.ConversionRate
	default:
		return 0
	}
	ref := ResponseFactor(cfg.HalfSaturation, cfg.HalfSaturation)
	return round4(base * ResponseFactor(q, cfg.HalfSaturation) / ref)
}
