package controllers

import (
	"net/http"
	"time"

	"vdi-fleet/backend/app/apperr"
	"vdi-fleet/backend/app/dto"
	"vdi-fleet/backend/app/repo"
	"vdi-fleet/backend/app/services"
)

type DeviceController struct {
	Devices *services.DeviceService
}

func NewDeviceController(devices *services.DeviceService) *DeviceController {
	return &DeviceController{Devices: devices}
}

func (c *DeviceController) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterDeviceRequest
	if err := decode(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	d, err := c.Devices.Register(services.RegisterDeviceInput{
		MACAddress:   req.MACAddress,
		IPAddress:    req.IPAddress,
		Hostname:     req.Hostname,
		Location:     req.Location,
		AssignedUser: req.AssignedUser,
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, d)
}

func (c *DeviceController) Get(w http.ResponseWriter, r *http.Request) {
	d, err := c.Devices.Get(r.PathValue("id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, d)
}

func (c *DeviceController) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repo.DeviceFilter{Status: q.Get("status"), Location: q.Get("location")}
	if limit, err := intQuery(q.Get("limit")); err == nil {
		f.Limit = limit
	}
	if offset, err := intQuery(q.Get("offset")); err == nil {
		f.Offset = offset
	}
	devices, err := c.Devices.List(f)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, devices)
}

func (c *DeviceController) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateDeviceRequest
	if err := decode(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	d, err := c.Devices.Update(r.PathValue("id"), services.UpdateDeviceInput{
		IPAddress:    req.IPAddress,
		Hostname:     req.Hostname,
		Location:     req.Location,
		AssignedUser: req.AssignedUser,
		Status:       req.Status,
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, d)
}

func (c *DeviceController) Delete(w http.ResponseWriter, r *http.Request) {
	if err := c.Devices.Delete(r.PathValue("id")); err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, nil)
}

// Stale lists devices unseen for longer than older_than (default the
// standard liveness window).
func (c *DeviceController) Stale(w http.ResponseWriter, r *http.Request) {
	olderThan := 5 * time.Minute
	if s := r.URL.Query().Get("older_than"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			respondErr(w, apperr.InvalidInput("bad older_than %q: %v", s, err))
			return
		}
		olderThan = d
	}
	devices, err := c.Devices.ListStale(olderThan)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, devices)
}
