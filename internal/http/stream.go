package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	streamChunk = 32 << 10
	probeWait   = 3 * time.Second
)

// videoFeed relays the backend's multipart MJPEG stream for one camera.
// Frames are passed through untouched and flushed as they arrive.
func (h *Handler) videoFeed(c *gin.Context) {
	camID := c.Param("camId")
	feedURL := h.api.Cameras.FeedURL(camID)

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, feedURL, nil)
	if err != nil {
		h.log.Error().Err(err).Str("camera_id", camID).Msg("failed to build feed request")
		c.JSON(http.StatusServiceUnavailable, errorResponse("camera unavailable"))
		return
	}

	resp, err := h.streams.Do(req)
	if err != nil {
		h.log.Warn().
			Err(err).
			Str("camera_id", camID).
			Msg("camera feed unreachable")
		c.JSON(http.StatusServiceUnavailable, errorResponse("camera unavailable"))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.log.Warn().
			Str("camera_id", camID).
			Int("status", resp.StatusCode).
			Msg("camera feed rejected")
		c.JSON(http.StatusServiceUnavailable, errorResponse("camera unavailable"))
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "multipart/x-mixed-replace; boundary=frame"
	}
	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Pragma", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	buf := make([]byte, streamChunk)
	c.Stream(func(w io.Writer) bool {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return false
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && c.Request.Context().Err() == nil {
				h.log.Warn().Err(err).Str("camera_id", camID).Msg("camera feed interrupted")
			}
			return false
		}
		return true
	})
}

// feedReachable opens the camera stream and closes it again once the
// backend has answered.
func (h *Handler) feedReachable(ctx context.Context, camID string) bool {
	ctx, cancel := context.WithTimeout(ctx, probeWait)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.api.Cameras.FeedURL(camID), nil)
	if err != nil {
		return false
	}
	resp, err := h.streams.Do(req)
	if err != nil {
		h.log.Debug().Err(err).Str("camera_id", camID).Msg("camera feed still unreachable")
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
