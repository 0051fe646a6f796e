package backend

import (
	"context"
	"net/http"

	"ppe-dashboard/internal/domain/safety"
)

type SettingsAPI struct {
	c *Client
}

func (a *SettingsAPI) Threshold(ctx context.Context) (Result[safety.ThresholdSettings], error) {
	return getJSON[safety.ThresholdSettings](ctx, a.c, "/api/settings/threshold")
}

func (a *SettingsAPI) SetThreshold(ctx context.Context, conf float64) (Result[safety.ThresholdUpdate], error) {
	return sendJSON[safety.ThresholdUpdate](ctx, a.c, http.MethodPost, "/api/settings/threshold", safety.ThresholdSettings{Conf: conf})
}

func (a *SettingsAPI) Gear(ctx context.Context) (Result[safety.GearSettings], error) {
	return getJSON[safety.GearSettings](ctx, a.c, "/api/settings/gear")
}

// SetGear replaces the whole required-gear set.
func (a *SettingsAPI) SetGear(ctx context.Context, requirements []string) (Result[safety.GearUpdate], error) {
	if requirements == nil {
		requirements = []string{}
	}
	return sendJSON[safety.GearUpdate](ctx, a.c, http.MethodPost, "/api/settings/gear", safety.GearSettings{Requirements: requirements})
}
