package dto

import "encoding/json"

type RegisterDeviceRequest struct {
	MACAddress   string `json:"mac_address"`
	IPAddress    string `json:"ip_address,omitempty"`
	Hostname     string `json:"hostname,omitempty"`
	Location     string `json:"location,omitempty"`
	AssignedUser string `json:"assigned_user,omitempty"`
}

type UpdateDeviceRequest struct {
	IPAddress    *string `json:"ip_address,omitempty"`
	Hostname     *string `json:"hostname,omitempty"`
	Location     *string `json:"location,omitempty"`
	AssignedUser *string `json:"assigned_user,omitempty"`
	Status       *string `json:"status,omitempty"`
}

type HeartbeatRequest struct {
	HardwareProfile json.RawMessage `json:"hardware_profile,omitempty"`
}

type CommandResultRequest struct {
	CommandID string          `json:"command_id"`
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result,omitempty"`
}
