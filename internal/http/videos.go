package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"ppe-dashboard/internal/service"
)

const multipartMemory = 32 << 20

type trimRequest struct {
	StartTime float64  `json:"start_time"`
	EndTime   *float64 `json:"end_time"`
}

type startRequest struct {
	RequiredGear []string `json:"required_gear"`
}

// submitVideo accepts the whole flow in one multipart request: file,
// optional start_time/end_time in seconds and required_gear.
func (h *Handler) submitVideo(c *gin.Context) {
	req, cleanup, err := h.readUpload(c)
	if err != nil {
		h.handleError(c, err)
		return
	}
	defer cleanup()

	start, end, err := parseTrim(c.PostForm("start_time"), c.PostForm("end_time"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	gear, err := parseGear(c.PostForm("required_gear"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	req.StartTime = start
	req.EndTime = end
	req.RequiredGear = h.requiredGear(gear)

	job, err := h.uploads.Submit(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.log.Info().
		Str("job_id", job.ID).
		Str("filename", job.Filename).
		Int64("size", job.Size).
		Msg("video submitted for analysis")
	c.JSON(http.StatusAccepted, successResponse(job))
}

func (h *Handler) selectVideo(c *gin.Context) {
	req, cleanup, err := h.readUpload(c)
	if err != nil {
		h.handleError(c, err)
		return
	}
	defer cleanup()

	job, err := h.uploads.Select(c.Request.Context(), req.Filename, req.ContentType, req.Body)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(job))
}

func (h *Handler) trimVideo(c *gin.Context) {
	var req trimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	job, err := h.uploads.Trim(c.Param("id"), req.StartTime, req.EndTime)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(job))
}

func (h *Handler) startVideo(c *gin.Context) {
	var req startRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
	}
	job, err := h.uploads.Start(c.Param("id"), h.requiredGear(req.RequiredGear))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, successResponse(job))
}

func (h *Handler) discardVideo(c *gin.Context) {
	id := c.Param("id")
	if err := h.uploads.Discard(id); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"id": id, "state": h.uploads.State(id)}))
}

func (h *Handler) listJobs(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.uploads.Jobs()))
}

func (h *Handler) getJob(c *gin.Context) {
	job, err := h.uploads.Job(c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(job))
}

func (h *Handler) videoHistory(c *gin.Context) {
	res, err := h.api.Videos.History(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	items := res.Data.History
	for i := range items {
		items[i].URL = h.api.Videos.StaticURL(items[i].URL)
		items[i].ThumbnailURL = h.api.Videos.StaticURL(items[i].ThumbnailURL)
	}
	c.JSON(http.StatusOK, resultResponse(items, res.Origin))
}

// readUpload parses the multipart form and opens its "file" part. The
// returned cleanup closes the part and drops gin's temp files.
func (h *Handler) readUpload(c *gin.Context) (service.UploadRequest, func(), error) {
	if limit := h.config.Upload.MaxBytes; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartMemory)
	}
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		h.log.Warn().Err(err).Msg("failed to parse multipart request")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return service.UploadRequest{}, nil, err
		}
		return service.UploadRequest{}, nil, fmt.Errorf("%w: invalid multipart payload", service.ErrInvalidInput)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		_ = c.Request.MultipartForm.RemoveAll()
		return service.UploadRequest{}, nil, fmt.Errorf("%w: a video file is required", service.ErrInvalidInput)
	}
	f, err := fh.Open()
	if err != nil {
		_ = c.Request.MultipartForm.RemoveAll()
		return service.UploadRequest{}, nil, fmt.Errorf("failed to open upload: %w", err)
	}

	cleanup := func() {
		f.Close()
		_ = c.Request.MultipartForm.RemoveAll()
	}
	return service.UploadRequest{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	}, cleanup, nil
}

// requiredGear falls back to the configured requirements when the request
// names none.
func (h *Handler) requiredGear(gear []string) []string {
	if len(gear) > 0 {
		return lo.Uniq(gear)
	}
	return h.settings.Snapshot().Gear
}

func parseTrim(rawStart, rawEnd string) (float64, *float64, error) {
	var start float64
	if s := strings.TrimSpace(rawStart); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: start_time must be a number", service.ErrInvalidInput)
		}
		start = v
	}
	var end *float64
	if s := strings.TrimSpace(rawEnd); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: end_time must be a number", service.ErrInvalidInput)
		}
		end = &v
	}
	return start, end, service.CheckTrim(start, end)
}

// parseGear accepts a JSON array or a comma separated list.
func parseGear(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var gear []string
		if err := json.Unmarshal([]byte(raw), &gear); err != nil {
			return nil, fmt.Errorf("%w: required_gear must be a JSON array of strings", service.ErrInvalidInput)
		}
		return lo.Compact(gear), nil
	}
	return lo.Compact(lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})), nil
}
