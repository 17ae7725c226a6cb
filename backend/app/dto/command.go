package dto

import "encoding/json"

type EnqueueCommandRequest struct {
	DeviceID string          `json:"device_id"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type CancelBuildRequest struct {
	Reason string `json:"reason,omitempty"`
}
