package backend

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"ppe-dashboard/internal/domain/safety"
)

var ErrInvalidRange = errors.New("time range must be one of 7days, 30days, 90days")

var validRanges = map[string]bool{
	"7days":  true,
	"30days": true,
	"90days": true,
}

func ValidRange(r string) bool {
	return validRanges[r]
}

type AnalyticsAPI struct {
	c *Client
}

func (a *AnalyticsAPI) Summary(ctx context.Context) (Result[safety.AnalyticsSummary], error) {
	return getJSON[safety.AnalyticsSummary](ctx, a.c, "/api/analytics/summary")
}

func (a *AnalyticsAPI) ViolationsTrend(ctx context.Context, timeRange string) (Result[[]safety.TrendPoint], error) {
	if !ValidRange(timeRange) {
		return Result[[]safety.TrendPoint]{}, fmt.Errorf("%w: %q", ErrInvalidRange, timeRange)
	}
	return getJSON[[]safety.TrendPoint](ctx, a.c, "/api/analytics/violations-trend?range="+url.QueryEscape(timeRange))
}

func (a *AnalyticsAPI) ComplianceScore(ctx context.Context, timeRange string) (Result[[]safety.ScorePoint], error) {
	if !ValidRange(timeRange) {
		return Result[[]safety.ScorePoint]{}, fmt.Errorf("%w: %q", ErrInvalidRange, timeRange)
	}
	return getJSON[[]safety.ScorePoint](ctx, a.c, "/api/analytics/compliance-score?range="+url.QueryEscape(timeRange))
}

func (a *AnalyticsAPI) ViolationsByType(ctx context.Context) (Result[[]safety.TypeCount], error) {
	return getJSON[[]safety.TypeCount](ctx, a.c, "/api/analytics/violations-by-type")
}

func (a *AnalyticsAPI) CameraPerformance(ctx context.Context) (Result[[]safety.CameraPerformance], error) {
	return getJSON[[]safety.CameraPerformance](ctx, a.c, "/api/analytics/camera-performance")
}
