package spf

// Severity classifies how serious a reported finding is.
type Severity string

const (
	// SeverityCritical findings make the policy invalid.
	SeverityCritical Severity = "critical"

	// SeverityHigh findings are likely to break or weaken mail delivery.
	SeverityHigh Severity = "high"

	// SeverityMedium findings are best-practice violations.
	SeverityMedium Severity = "medium"

	// SeverityLow findings are cosmetic or informational defects.
	SeverityLow Severity = "low"

	// SeverityInfo entries are observations, not defects.
	SeverityInfo Severity = "info"
)

// Issue is a single finding produced during analysis.
type Issue struct {
	// Severity classifies the finding.
	Severity Severity `json:"severity"`

	// Message describes what was found.
	Message string `json:"message"`

	// Recommendation describes how to address the finding, if applicable.
	Recommendation string `json:"recommendation,omitempty"`
}
