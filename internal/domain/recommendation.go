package domain

// Component identifies one scoring signal. It tags reasoning and risk
// statements so the UI can group them without parsing text.
type Component string

const (
	ComponentStorePerformance    Component = "store_performance"
	ComponentCreativePerformance Component = "creative_performance"
	ComponentGeographicFit       Component = "geographic_fit"
	ComponentTimingAlignment     Component = "timing_alignment"
	ComponentOverall             Component = "overall"
	ComponentData                Component = "data"
)

// Statement is a human-readable sentence attributed to a component. It is
// flattened to a plain string only at the API boundary.
type Statement struct {
	Component Component `json:"component"`
	Text      string    `json:"text"`
}

// Texts flattens statements to their text, preserving order.
func Texts(statements []Statement) []string {
	out := make([]string, 0, len(statements))
	for _, s := range statements {
		out = append(out, s.Text)
	}
	return out
}

// ConfidenceLevel is the coarse bucket summarising a recommendation.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Rank orders confidence levels: high > medium > low > unknown.
func (c ConfidenceLevel) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether c is one of the known levels.
func (c ConfidenceLevel) Valid() bool { return c.Rank() > 0 }

// ComponentScores holds the four signals, each on [0,1].
type ComponentScores struct {
	StorePerformance    float64 `json:"store_performance"`
	CreativePerformance float64 `json:"creative_performance"`
	GeographicFit       float64 `json:"geographic_fit"`
	TimingAlignment     float64 `json:"timing_alignment"`
}

// Get returns the score for a component, or 0 for unknown components.
func (s ComponentScores) Get(c Component) float64 {
	switch c {
	case ComponentStorePerformance:
		return s.StorePerformance
	case ComponentCreativePerformance:
		return s.CreativePerformance
	case ComponentGeographicFit:
		return s.GeographicFit
	case ComponentTimingAlignment:
		return s.TimingAlignment
	default:
		return 0
	}
}

// ScoredComponents lists the four weighted components in reasoning order.
var ScoredComponents = []Component{
	ComponentStorePerformance,
	ComponentCreativePerformance,
	ComponentGeographicFit,
	ComponentTimingAlignment,
}

// CampaignRecommendation is the scorer's suggestion of one campaign for one
// store. It is derived and ephemeral until frozen into a PlanItem.
type CampaignRecommendation struct {
	StoreID                string          `json:"store_id"`
	CampaignID             string          `json:"campaign_id"`
	CampaignName           string          `json:"campaign_name"`
	Scores                 ComponentScores `json:"scores"`
	OverallScore           float64         `json:"overall_score"`
	ConfidenceLevel        ConfidenceLevel `json:"confidence_level"`
	Reasoning              []Statement     `json:"reasoning"`
	RiskFactors            []Statement     `json:"risk_factors"`
	RecommendedQuantity    int             `json:"recommended_quantity"`
	ExpectedConversionRate float64         `json:"expected_conversion_rate"`
	ExpectedConversions    float64         `json:"expected_conversions"`
}

// ExpectedConversions is the single place the planner turns a quantity and a
// conversion rate (percent) into expected conversions.
func ExpectedConversions(quantity int, ratePct float64) float64 {
	if quantity <= 0 || ratePct <= 0 {
		return 0
	}
	return float64(quantity) * ratePct / 100
}
