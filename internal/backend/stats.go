package backend

import (
	"context"

	"ppe-dashboard/internal/domain/safety"
)

type StatsAPI struct {
	c *Client
}

func (a *StatsAPI) Get(ctx context.Context) (Result[safety.StatsSummary], error) {
	return getJSON[safety.StatsSummary](ctx, a.c, "/api/stats")
}
