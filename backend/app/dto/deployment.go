package dto

type DeployRequest struct {
	ImageID          string   `json:"image_id"`
	DeviceIDs        []string `json:"device_ids"`
	Method           string   `json:"method"`
	FailureTolerance int      `json:"failure_tolerance,omitempty"`
}

type OutcomeRequest struct {
	Status   string `json:"status"` // in_progress | completed | failed
	Progress int    `json:"progress,omitempty"`
	Error    string `json:"error,omitempty"`
}
