package controllers

import (
	"net/http"

	"vdi-fleet/backend/app/dto"
	"vdi-fleet/backend/app/services"
)

type HeartbeatController struct {
	Heartbeats *services.HeartbeatService
}

func NewHeartbeatController(heartbeats *services.HeartbeatService) *HeartbeatController {
	return &HeartbeatController{Heartbeats: heartbeats}
}

// Heartbeat ingests a device status report and returns the drained pending
// command queue in FIFO order, already flipped to sent.
func (c *HeartbeatController) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req dto.HeartbeatRequest
	if err := decode(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	cmds, err := c.Heartbeats.Heartbeat(r.Context(), r.PathValue("id"), req.HardwareProfile)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, map[string]any{"commands": cmds})
}

func (c *HeartbeatController) CommandResult(w http.ResponseWriter, r *http.Request) {
	var req dto.CommandResultRequest
	if err := decode(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	if err := c.Heartbeats.ReportResult(r.PathValue("id"), req.CommandID, req.Success, req.Result); err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, nil)
}
