package command

import (
	"context"
	"encoding/json"
	"fmt"

	"vdi-fleet/agent/internal/client"
	"vdi-fleet/agent/internal/config"
	"vdi-fleet/agent/internal/logger"
)

// UpdateImageHandler downloads a new system image, verifies its checksum
// and stages it for the next boot, reporting deployment progress along
// the way.
type UpdateImageHandler struct {
	Client *client.Client
}

func NewUpdateImageHandler(c *client.Client) *UpdateImageHandler {
	return &UpdateImageHandler{Client: c}
}

func (h *UpdateImageHandler) Name() string { return "update_image" }

func (h *UpdateImageHandler) Handle(ctx context.Context, arg json.RawMessage) (any, error) {
	var req struct {
		ImageURL     string `json:"image_url"`
		ImageHash    string `json:"image_hash"`
		DeploymentID string `json:"deployment_id"`
	}
	if err := json.Unmarshal(arg, &req); err != nil {
		return nil, err
	}
	if req.ImageURL == "" {
		return nil, fmt.Errorf("missing image_url")
	}

	h.progress(ctx, req.DeploymentID, "in_progress", 10, "")

	staged, err := h.Client.Download(ctx, req.ImageURL, config.Get().StageDir, req.ImageHash)
	if err != nil {
		h.progress(ctx, req.DeploymentID, "failed", 0, err.Error())
		return nil, fmt.Errorf("stage image: %w", err)
	}
	logger.Infof("image staged at %s", staged)

	h.progress(ctx, req.DeploymentID, "completed", 100, "")
	return map[string]any{"staged_path": staged}, nil
}

func (h *UpdateImageHandler) progress(ctx context.Context, deploymentID, status string, pct int, errMsg string) {
	if deploymentID == "" {
		return
	}
	if err := h.Client.ReportOutcome(ctx, deploymentID, status, pct, errMsg); err != nil {
		logger.Errorf("report deployment outcome: %v", err)
	}
}
