package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"ppe-dashboard/internal/domain/safety"
)

// DashboardAPI covers the legacy summary endpoints.
type DashboardAPI struct {
	c *Client
}

// ViolationList accepts either a bare array or {"violations": [...]}.
type ViolationList []safety.Violation

func (l *ViolationList) UnmarshalJSON(data []byte) error {
	var list []safety.Violation
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}
	var wrapped struct {
		Violations []safety.Violation `json:"violations"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*l = wrapped.Violations
	return nil
}

func (a *DashboardAPI) Summary(ctx context.Context) (Result[safety.DashboardSummary], error) {
	return getJSON[safety.DashboardSummary](ctx, a.c, "/api/dashboard/summary")
}

func (a *DashboardAPI) Violations(ctx context.Context, limit int) (Result[ViolationList], error) {
	if limit <= 0 {
		limit = 5
	}
	return getJSON[ViolationList](ctx, a.c, fmt.Sprintf("/api/dashboard/violations?limit=%d", limit))
}

func (a *DashboardAPI) SystemStatus(ctx context.Context) (Result[[]safety.SystemItem], error) {
	return getJSON[[]safety.SystemItem](ctx, a.c, "/api/dashboard/system-status")
}

func (a *DashboardAPI) Activity(ctx context.Context, limit int) (Result[[]safety.ActivityItem], error) {
	if limit <= 0 {
		limit = 4
	}
	return getJSON[[]safety.ActivityItem](ctx, a.c, fmt.Sprintf("/api/dashboard/activity?limit=%d", limit))
}
