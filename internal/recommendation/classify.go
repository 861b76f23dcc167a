package recommendation

import "github.com/ignite/retail-planner/internal/domain"

// Status is the review bucket a store's top recommendation falls into.
type Status string

const (
	StatusAutoApprove Status = "auto-approve"
	StatusNeedsReview Status = "needs-review"
	StatusSkip        Status = "skip"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusAutoApprove, StatusNeedsReview, StatusSkip:
		return true
	}
	return false
}

// Policy holds the classification thresholds. It is separate from Config so
// review policy can change without rescoring.
type Policy struct {
	AutoApproveScore float64 `json:"auto_approve_score"`
	ReviewScore      float64 `json:"review_score"`
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{AutoApproveScore: 0.75, ReviewScore: 0.6}
}

// Outcome is a classification result.
type Outcome struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Classify buckets a store by its top recommendation. It is a pure function
// of top and the policy.
func Classify(top *domain.CampaignRecommendation, p Policy) Outcome {
	if top == nil {
		return Outcome{Status: StatusSkip, Reason: "no suitable campaigns"}
	}
	if top.ConfidenceLevel == domain.ConfidenceHigh && top.OverallScore >= p.AutoApproveScore {
		return Outcome{Status: StatusAutoApprove}
	}
	if top.ConfidenceLevel == domain.ConfidenceLow || top.OverallScore < p.ReviewScore {
		reason := "low confidence"
		if len(top.RiskFactors) > 0 {
			reason = top.RiskFactors[0].Text
		}
		return Outcome{Status: StatusNeedsReview, Reason: reason}
	}
	return Outcome{Status: StatusNeedsReview, Reason: "medium confidence, please verify"}
}
