package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"ppe-dashboard/internal/domain/safety"
)

type VideosAPI struct {
	c *Client
}

// VideoUpload is one recorded clip plus its trim window.
type VideoUpload struct {
	Filename     string
	ContentType  string
	Body         io.Reader
	StartTime    float64
	EndTime      *float64
	RequiredGear []string
}

// Analyze posts the clip to /analyze_video. It bypasses the fallback policy:
// a failed upload is always reported to the caller.
func (a *VideosAPI) Analyze(ctx context.Context, up VideoUpload) (Result[safety.VideoAnalysisResult], error) {
	if up.Body == nil {
		return Result[safety.VideoAnalysisResult]{}, fmt.Errorf("analyze video: empty body")
	}

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUploadForm(mw, up))
	}()

	req := &Request{
		Method: http.MethodPost,
		Path:   "/analyze_video",
		Header: http.Header{"Content-Type": []string{mw.FormDataContentType()}},
		Body:   pr,
	}
	return do[safety.VideoAnalysisResult](ctx, a.c, a.c.direct, req, a.c.uploadTimeout)
}

func writeUploadForm(mw *multipart.Writer, up VideoUpload) error {
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(up.Filename)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, up.Body); err != nil {
		return fmt.Errorf("copy video: %w", err)
	}

	if err := mw.WriteField("start_time", formatSeconds(up.StartTime)); err != nil {
		return err
	}
	if up.EndTime != nil {
		if err := mw.WriteField("end_time", formatSeconds(*up.EndTime)); err != nil {
			return err
		}
	}
	if len(up.RequiredGear) > 0 {
		gear, err := json.Marshal(up.RequiredGear)
		if err != nil {
			return err
		}
		if err := mw.WriteField("required_gear", string(gear)); err != nil {
			return err
		}
	}
	return mw.Close()
}

func (a *VideosAPI) History(ctx context.Context) (Result[safety.VideoHistory], error) {
	return getJSON[safety.VideoHistory](ctx, a.c, "/api/videos/history")
}

// StaticURL resolves a backend-relative asset path such as a processed video
// or thumbnail. Absolute URLs are returned unchanged.
func (a *VideosAPI) StaticURL(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return a.c.baseURL + path
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
