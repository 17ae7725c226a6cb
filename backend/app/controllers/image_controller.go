package controllers

import (
	"net/http"

	"vdi-fleet/backend/app/builder"
	"vdi-fleet/backend/app/dto"
	"vdi-fleet/backend/app/services"
)

type ImageController struct {
	Builds *services.BuildService
}

func NewImageController(builds *services.BuildService) *ImageController {
	return &ImageController{Builds: builds}
}

func (c *ImageController) Submit(w http.ResponseWriter, r *http.Request) {
	var spec builder.Spec
	if err := decode(r, &spec); err != nil {
		respondErr(w, err)
		return
	}
	job, err := c.Builds.Submit(spec)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, job)
}

func (c *ImageController) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := c.Builds.GetJob(r.PathValue("id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, job)
}

func (c *ImageController) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := c.Builds.ListJobs(r.URL.Query().Get("status"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, jobs)
}

func (c *ImageController) CancelJob(w http.ResponseWriter, r *http.Request) {
	var req dto.CancelBuildRequest
	_ = decode(r, &req) // body optional
	if req.Reason == "" {
		req.Reason = "cancelled by operator"
	}
	if err := c.Builds.Cancel(r.PathValue("id"), req.Reason); err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, nil)
}

func (c *ImageController) Get(w http.ResponseWriter, r *http.Request) {
	img, err := c.Builds.GetImage(r.PathValue("id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, img)
}

func (c *ImageController) List(w http.ResponseWriter, r *http.Request) {
	images, err := c.Builds.ListImages(r.URL.Query().Get("status"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, images)
}

func (c *ImageController) Delete(w http.ResponseWriter, r *http.Request) {
	if err := c.Builds.DeleteImage(r.PathValue("id")); err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, nil)
}
