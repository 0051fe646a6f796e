package backend

import (
	"context"
	"net/url"
	"strconv"

	"ppe-dashboard/internal/domain/safety"
)

type LogsAPI struct {
	c *Client
}

// LogFilter maps the logs page filters onto /api/logs/search parameters.
type LogFilter struct {
	Severity  string
	Type      string
	Camera    string
	StartDate string
	EndDate   string
	Page      int
	Limit     int
}

func (f LogFilter) Query() url.Values {
	q := url.Values{}
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("severity", f.Severity)
	set("type", f.Type)
	set("camera", f.Camera)
	set("start", f.StartDate)
	set("end", f.EndDate)
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

func (a *LogsAPI) List(ctx context.Context) (Result[safety.LogList], error) {
	return getJSON[safety.LogList](ctx, a.c, "/api/logs")
}

func (a *LogsAPI) Search(ctx context.Context, filter LogFilter) (Result[safety.LogList], error) {
	path := "/api/logs/search"
	if q := filter.Query().Encode(); q != "" {
		path += "?" + q
	}
	return getJSON[safety.LogList](ctx, a.c, path)
}

func (a *LogsAPI) Get(ctx context.Context, id string) (Result[safety.DetectionLog], error) {
	return getJSON[safety.DetectionLog](ctx, a.c, "/api/logs/"+url.PathEscape(id))
}
