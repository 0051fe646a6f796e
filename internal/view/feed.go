package view

import (
	"net/url"
	"strconv"
	"time"
)

type FeedState string

const (
	FeedStandby     FeedState = "standby"
	FeedLoading     FeedState = "loading"
	FeedUnavailable FeedState = "unavailable"
)

const (
	standbyMessage     = "Camera standby. Start monitoring to view the live feed."
	loadingMessage     = "Connecting to camera..."
	unavailableMessage = "Camera Unavailable"
)

// Feed describes one camera tile. A live tile starts in FeedLoading and the
// page flips it to playing on the image's first frame, or to FeedUnavailable
// when the stream fails. Retry asks for a fresh tile.
type Feed struct {
	CameraID string    `json:"camera_id"`
	State    FeedState `json:"state"`
	Live     bool      `json:"live"`
	Src      string    `json:"src,omitempty"`
	Message  string    `json:"message,omitempty"`
	RetryURL string    `json:"retry_url,omitempty"`
}

// FeedView picks the tile content. The nonce busts the browser cache so a
// manual retry opens a fresh stream.
func FeedView(camID string, active bool, nonce string) Feed {
	if !active {
		return Feed{CameraID: camID, State: FeedStandby, Message: standbyMessage}
	}
	src := "/video_feed/" + url.PathEscape(camID)
	if nonce != "" {
		src += "?t=" + url.QueryEscape(nonce)
	}
	return Feed{
		CameraID: camID,
		State:    FeedLoading,
		Live:     true,
		Src:      src,
		Message:  loadingMessage,
		RetryURL: retryURL(camID),
	}
}

// UnavailableFeed is the tile shown after the stream failed. It keeps no
// image source; the retry control fetches a new one.
func UnavailableFeed(camID string) Feed {
	return Feed{
		CameraID: camID,
		State:    FeedUnavailable,
		Message:  unavailableMessage,
		RetryURL: retryURL(camID),
	}
}

func retryURL(camID string) string {
	return "/ui/api/feeds/" + url.PathEscape(camID)
}

func Nonce(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10)
}
