package domain

// Stage names the states a decode request moves through. Analyzing and
// Charting run concurrently; both must settle before StageAssembled.
type Stage string

const (
	StageReceived    Stage = "received"
	StageIngesting   Stage = "ingesting"
	StageClassifying Stage = "classifying"
	StagePrompting   Stage = "prompting"
	StageAnalyzing   Stage = "analyzing"
	StageCharting    Stage = "charting"
	StageAssembled   Stage = "assembled"
	StageDelivered   Stage = "delivered"

	// Terminal failure of the request; nothing downstream runs.
	StageIngestFailed Stage = "ingest_failed"
	// Analysis failed but the report was still assembled with charts.
	StageAnalysisFailed Stage = "analysis_failed"
)

// StageEvent is a progress notification pushed to websocket subscribers.
type StageEvent struct {
	RequestID string `json:"request_id"`
	Source    string `json:"source,omitempty"`
	Stage     Stage  `json:"stage"`
	Detail    string `json:"detail,omitempty"`
}
