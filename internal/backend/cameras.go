package backend

import (
	"context"
	"net/http"
	"net/url"

	"ppe-dashboard/internal/domain/safety"
)

type CamerasAPI struct {
	c *Client
}

func (a *CamerasAPI) List(ctx context.Context) (Result[[]safety.CameraConfig], error) {
	return getJSON[[]safety.CameraConfig](ctx, a.c, "/api/cameras")
}

// Create sends the config without an id; the backend assigns one.
func (a *CamerasAPI) Create(ctx context.Context, cfg safety.CameraConfig) (Result[safety.CameraCreated], error) {
	cfg.ID = ""
	return sendJSON[safety.CameraCreated](ctx, a.c, http.MethodPost, "/api/cameras", cfg)
}

func (a *CamerasAPI) Delete(ctx context.Context, id string) (Result[safety.StatusReply], error) {
	return sendJSON[safety.StatusReply](ctx, a.c, http.MethodDelete, "/api/cameras/"+url.PathEscape(id), nil)
}

// FeedURL points at the backend's multipart MJPEG stream for a camera.
func (a *CamerasAPI) FeedURL(camID string) string {
	return a.c.baseURL + "/video_feed/" + url.PathEscape(camID)
}
