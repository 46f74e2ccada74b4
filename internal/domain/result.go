package domain

import "time"

// Analysis result kinds.
const (
	ResultPhenology  = "phenology"
	ResultAnomalies  = "anomalies"
	ResultRisk       = "risk"
	ResultTimeline   = "risk_timeline"
	ResultRiskMap    = "risk_map"
	ResultIrrigation = "irrigation"
)

// AnalysisResult wraps the output of one analysis with its identity and
// context. Payload holds the kind-specific body and is serialized as-is.
type AnalysisResult struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Crop        string    `json:"crop"`
	Location    Location  `json:"location"`
	GeneratedAt time.Time `json:"generated_at"`
	Payload     any       `json:"payload"`
}
