package backend

import (
	"context"
	"net/http"

	"ppe-dashboard/internal/domain/safety"
)

type MonitorAPI struct {
	c *Client
}

func (a *MonitorAPI) Status(ctx context.Context) (Result[safety.MonitorStatus], error) {
	return getJSON[safety.MonitorStatus](ctx, a.c, "/api/monitor/status")
}

func (a *MonitorAPI) Toggle(ctx context.Context, active bool) (Result[safety.ToggleResult], error) {
	return sendJSON[safety.ToggleResult](ctx, a.c, http.MethodPost, "/api/monitor/toggle", safety.MonitorStatus{Active: active})
}
