package command

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"vdi-fleet/agent/internal/config"
	"vdi-fleet/agent/internal/sysinfo"
)

type pingHandler struct{}

func (pingHandler) Name() string { return "ping" }

func (pingHandler) Handle(_ context.Context, _ json.RawMessage) (any, error) {
	return map[string]any{"pong": true, "time": time.Now().UTC().Format(time.RFC3339)}, nil
}

type collectInfoHandler struct{}

func (collectInfoHandler) Name() string { return "collect_info" }

func (collectInfoHandler) Handle(_ context.Context, _ json.RawMessage) (any, error) {
	return sysinfo.Collect()
}

type executeScriptHandler struct{}

func (executeScriptHandler) Name() string { return "execute_script" }

func (executeScriptHandler) Handle(ctx context.Context, arg json.RawMessage) (any, error) {
	if !config.Get().EnableRemoteCommands {
		return nil, fmt.Errorf("remote command execution is disabled on this device")
	}
	var req struct {
		Script string `json:"script"`
	}
	if err := json.Unmarshal(arg, &req); err != nil {
		return nil, err
	}
	if req.Script == "" {
		return nil, fmt.Errorf("empty script")
	}
	out, err := exec.CommandContext(ctx, "sh", "-c", req.Script).CombinedOutput()
	res := map[string]any{"output": string(out)}
	if err != nil {
		res["error"] = err.Error()
		return res, fmt.Errorf("script exited with error: %w", err)
	}
	return res, nil
}

type updateConfigHandler struct{}

func (updateConfigHandler) Name() string { return "update_config" }

// update_config just acknowledges; the agent picks up file changes through
// the config watcher, so the server-side payload is informational.
func (updateConfigHandler) Handle(_ context.Context, arg json.RawMessage) (any, error) {
	return map[string]any{"acknowledged": true, "config": config.Get()}, nil
}

func init() {
	Register(pingHandler{})
	Register(collectInfoHandler{})
	Register(executeScriptHandler{})
	Register(updateConfigHandler{})
}
