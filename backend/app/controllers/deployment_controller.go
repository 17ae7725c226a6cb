package controllers

import (
	"net/http"

	"vdi-fleet/backend/app/dto"
	"vdi-fleet/backend/app/middleware"
	"vdi-fleet/backend/app/services"
)

type DeploymentController struct {
	Deployments *services.DeploymentService
}

func NewDeploymentController(deployments *services.DeploymentService) *DeploymentController {
	return &DeploymentController{Deployments: deployments}
}

func (c *DeploymentController) Deploy(w http.ResponseWriter, r *http.Request) {
	var req dto.DeployRequest
	if err := decode(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	dep, err := c.Deployments.Deploy(req.ImageID, req.DeviceIDs, req.Method,
		services.DeployOptions{FailureTolerance: req.FailureTolerance},
		middleware.Actor(r.Context()))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, dep)
}

func (c *DeploymentController) Get(w http.ResponseWriter, r *http.Request) {
	dep, err := c.Deployments.Get(r.PathValue("id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, dep)
}

func (c *DeploymentController) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	deps, err := c.Deployments.List(q.Get("status"), q.Get("device"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, deps)
}

func (c *DeploymentController) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := c.Deployments.Cancel(r.PathValue("id")); err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, nil)
}

func (c *DeploymentController) Rollback(w http.ResponseWriter, r *http.Request) {
	created, err := c.Deployments.Rollback(r.PathValue("id"), middleware.Actor(r.Context()))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, created)
}

// Outcome is the delivery-side callback for per-device progress and
// terminal results, used by booted deploy environments and external media
// delivery tooling.
func (c *DeploymentController) Outcome(w http.ResponseWriter, r *http.Request) {
	var req dto.OutcomeRequest
	if err := decode(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	err := c.Deployments.ReportOutcome(r.PathValue("id"), r.PathValue("deviceID"), req.Status, req.Progress, req.Error)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, nil)
}
