package controllers

import (
	"net/http"

	"vdi-fleet/backend/app/dto"
	"vdi-fleet/backend/app/middleware"
	"vdi-fleet/backend/app/services"
)

type CommandController struct {
	Heartbeats *services.HeartbeatService
}

func NewCommandController(heartbeats *services.HeartbeatService) *CommandController {
	return &CommandController{Heartbeats: heartbeats}
}

func (c *CommandController) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req dto.EnqueueCommandRequest
	if err := decode(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	cmd, err := c.Heartbeats.Enqueue(req.DeviceID, req.Type, req.Payload, middleware.Actor(r.Context()))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, cmd)
}

func (c *CommandController) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cmds, err := c.Heartbeats.ListCommands(q.Get("device"), q.Get("status"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, cmds)
}

func (c *CommandController) Resend(w http.ResponseWriter, r *http.Request) {
	if err := c.Heartbeats.Resend(r.PathValue("id")); err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, nil)
}

// Online reports liveness from the presence cache, falling back to the
// last-contact window. Without a device parameter it lists every online
// device in the fleet.
func (c *CommandController) Online(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("device")
	if id == "" {
		ids, err := c.Heartbeats.OnlineDevices(r.Context())
		if err != nil {
			respondErr(w, err)
			return
		}
		respondOK(w, map[string]any{"devices": ids})
		return
	}
	online, err := c.Heartbeats.Online(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, map[string]bool{"online": online})
}
