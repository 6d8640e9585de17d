package events

import (
	"context"

	"github.com/lumenview/lumenview/types"
)

func NewManager(ctx context.Context, config types.ConfigManager, logger types.Logger, metrics types.MetricsManager) (types.EventBroker, error) {
	eventsCfg := config.GetConfig().Events

	if eventsCfg == nil || !eventsCfg.Enabled {
		return NewNoopBroker(), nil
	}

	return NewWebSocketBroker(ctx, config, logger, metrics)
}
