package command

import (
	"context"
	"encoding/json"
	"fmt"

	"vdi-fleet/agent/internal/client"
	"vdi-fleet/agent/internal/config"
	"vdi-fleet/agent/internal/logger"
)

// Dispatcher runs commands drained from heartbeat responses and reports
// each result back before moving to the next one.
type Dispatcher struct {
	Client *client.Client
}

func NewDispatcher(c *client.Client) *Dispatcher {
	return &Dispatcher{Client: c}
}

func (d *Dispatcher) Run(ctx context.Context, cmds []client.Command) {
	for _, cmd := range cmds {
		result, err := d.execute(ctx, cmd)
		if err != nil {
			logger.Errorf("command %s (%s) failed: %v", cmd.ID, cmd.Type, err)
			result = map[string]any{"error": err.Error()}
		}
		if repErr := d.Client.ReportResult(ctx, cmd.ID, err == nil, result); repErr != nil {
			logger.Errorf("report result for %s: %v", cmd.ID, repErr)
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, cmd client.Command) (any, error) {
	h, ok := Lookup(cmd.Type)
	if !ok {
		return nil, fmt.Errorf("unknown command type %q", cmd.Type)
	}
	logger.Infof("executing command %s (%s)", cmd.ID, cmd.Type)

	var arg json.RawMessage
	if cmd.Payload != "" {
		arg = json.RawMessage(cmd.Payload)
	}
	runCtx, cancel := context.WithTimeout(ctx, config.Get().CommandTimeout)
	defer cancel()
	return h.Handle(runCtx, arg)
}
