package recommendation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is returned when a Config fails validation. The wrapped
// message names the offending field.
var ErrInvalidConfig = errors.New("invalid recommendation config")

// weightTolerance absorbs float noise from YAML decimals like 0.1 + 0.2.
const weightTolerance = 1e-6

// Weights sets the contribution of each component to the overall score.
// They must sum to 1.0.
type Weights struct {
	StorePerformance    float64 `json:"store_performance" yaml:"store_performance"`
	CreativePerformance float64 `json:"creative_performance" yaml:"creative_performance"`
	GeographicFit       float64 `json:"geographic_fit" yaml:"geographic_fit"`
	TimingAlignment     float64 `json:"timing_alignment" yaml:"timing_alignment"`
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.StorePerformance + w.CreativePerformance + w.GeographicFit + w.TimingAlignment
}

// DefaultWeights bias toward store and creative performance.
func DefaultWeights() Weights {
	return Weights{
		StorePerformance:    0.4,
		CreativePerformance: 0.3,
		GeographicFit:       0.2,
		TimingAlignment:     0.1,
	}
}

// Config is passed explicitly into every scoring call. All scores and
// thresholds are on the unit scale [0,1]; conversion rates are percentages.
type Config struct {
	Weights Weights `json:"weights"`

	// MinConfidenceThreshold raises an overall-score risk factor when the
	// overall score falls below it. It is also the default candidate floor of
	// the batch view, so a store with no candidate at or above it is skipped.
	MinConfidenceThreshold float64 `json:"min_confidence_threshold"`
	QuantityMultiplier     float64 `json:"quantity_multiplier"`

	HighConfidenceScore float64 `json:"high_confidence_score"`
	LowConfidenceScore  float64 `json:"low_confidence_score"`
	ReasoningThreshold  float64 `json:"reasoning_threshold"`
	RiskFloor           float64 `json:"risk_floor"`
	NeutralScore        float64 `json:"neutral_score"`
	LowHistoryCap       float64 `json:"low_history_cap"`

	MinStoreCampaigns int `json:"min_store_campaigns"`
	MinCampaignSample int `json:"min_campaign_sample"`

	// BenchmarkConversionRate is the network-typical conversion rate (percent).
	// A store converting at twice the benchmark scores a full level signal.
	BenchmarkConversionRate float64 `json:"benchmark_conversion_rate"`

	BaseQuantity   int `json:"base_quantity"`
	MinQuantity    int `json:"min_quantity"`
	MaxQuantity    int `json:"max_quantity"`
	HalfSaturation int `json:"half_saturation"`

	// Workers bounds the number of stores scored concurrently by GenerateBatch.
	Workers int `json:"workers"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Weights:                 DefaultWeights(),
		MinConfidenceThreshold:  0.5,
		QuantityMultiplier:      1.0,
		HighConfidenceScore:     0.75,
		LowConfidenceScore:      0.5,
		ReasoningThreshold:      0.75,
		RiskFloor:               0.3,
		NeutralScore:            0.5,
		LowHistoryCap:           0.5,
		MinStoreCampaigns:       3,
		MinCampaignSample:       5,
		BenchmarkConversionRate: 3.0,
		BaseQuantity:            1000,
		MinQuantity:             250,
		MaxQuantity:             5000,
		HalfSaturation:          2000,
		Workers:                 8,
	}
}

// Validate rejects configs the scorer cannot honour. Nothing is clamped or
// normalised: a bad value is an error.
func (c Config) Validate() error {
	w := c.Weights
	for name, v := range map[string]float64{
		"weights.store_performance":    w.StorePerformance,
		"weights.creative_performance": w.CreativePerformance,
		"weights.geographic_fit":       w.GeographicFit,
		"weights.timing_alignment":     w.TimingAlignment,
	} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s must be non-negative", ErrInvalidConfig, name)
		}
	}
	if math.Abs(w.Sum()-1.0) > weightTolerance {
		return fmt.Errorf("%w: weights must sum to 1.0, got %.4f", ErrInvalidConfig, w.Sum())
	}

	for name, v := range map[string]float64{
		"min_confidence_threshold": c.MinConfidenceThreshold,
		"high_confidence_score":    c.HighConfidenceScore,
		"low_confidence_score":     c.LowConfidenceScore,
		"reasoning_threshold":      c.ReasoningThreshold,
		"risk_floor":               c.RiskFloor,
		"neutral_score":            c.NeutralScore,
		"low_history_cap":          c.LowHistoryCap,
	} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s must be within [0,1], got %v", ErrInvalidConfig, name, v)
		}
	}
	if c.LowConfidenceScore > c.HighConfidenceScore {
		return fmt.Errorf("%w: low_confidence_score %.2f exceeds high_confidence_score %.2f",
			ErrInvalidConfig, c.LowConfidenceScore, c.HighConfidenceScore)
	}

	if c.QuantityMultiplier <= 0 {
		return fmt.Errorf("%w: quantity_multiplier must be positive", ErrInvalidConfig)
	}
	if c.BenchmarkConversionRate <= 0 {
		return fmt.Errorf("%w: benchmark_conversion_rate must be positive", ErrInvalidConfig)
	}
	if c.BaseQuantity <= 0 || c.MinQuantity <= 0 || c.HalfSaturation <= 0 {
		return fmt.Errorf("%w: base_quantity, min_quantity and half_saturation must be positive", ErrInvalidConfig)
	}
	if c.MaxQuantity < c.MinQuantity {
		return fmt.Errorf("%w: max_quantity %d is below min_quantity %d", ErrInvalidConfig, c.MaxQuantity, c.MinQuantity)
	}
	if c.MinStoreCampaigns < 0 || c.MinCampaignSample < 0 {
		return fmt.Errorf("%w: sample minimums must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// Fingerprint returns a stable digest of every field that affects scores.
// Workers is excluded: it changes throughput, not results.
func (c Config) Fingerprint() string {
	c.Workers = 0
	data, _ := json.Marshal(c)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
