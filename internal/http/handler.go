package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ppe-dashboard/internal/backend"
	"ppe-dashboard/internal/config"
	"ppe-dashboard/internal/domain/safety"
	"ppe-dashboard/internal/export"
	"ppe-dashboard/internal/poller"
	"ppe-dashboard/internal/service"
	"ppe-dashboard/internal/view"
)

type Handler struct {
	session  *service.Session
	settings *service.SettingsService
	cameras  *service.CameraService
	uploads  *service.UploadService
	api      *backend.API
	config   *config.Config
	streams  *http.Client
	log      zerolog.Logger
	now      func() time.Time
}

func NewHandler(
	session *service.Session,
	settings *service.SettingsService,
	cameras *service.CameraService,
	uploads *service.UploadService,
	api *backend.API,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		session:  session,
		settings: settings,
		cameras:  cameras,
		uploads:  uploads,
		api:      api,
		config:   cfg,
		// MJPEG streams stay open for as long as the viewer does.
		streams: &http.Client{},
		log:     log.With().Str("component", "http").Logger(),
		now:     time.Now,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	h.registerPages(r)

	r.GET("/video_feed/:camId", h.videoFeed)
	r.GET("/ui/ws", h.websocket)

	ui := r.Group("/ui/api")
	{
		ui.GET("/snapshot", h.snapshot)
		ui.GET("/stats-cards", h.statCardsHandler)
		ui.GET("/violations", h.violations)
		ui.GET("/system-status", h.systemStatus)
		ui.GET("/feeds", h.feedsHandler)
		ui.GET("/feeds/:camId", h.feedTile)
		ui.GET("/dashboard/:kind", h.dashboard)

		ui.POST("/monitor/toggle", h.toggleMonitor)

		ui.GET("/settings", h.getSettings)
		ui.GET("/settings/threshold", h.getThreshold)
		ui.POST("/settings/threshold", h.setThreshold)
		ui.POST("/settings/gear/toggle", h.toggleGear)

		ui.GET("/logs", h.listLogs)
		ui.GET("/logs/export", h.exportLogs)
		ui.GET("/logs/:id", h.getLog)

		ui.GET("/cameras", h.listCameras)
		ui.POST("/cameras", h.createCamera)
		ui.DELETE("/cameras/:id", h.deleteCamera)

		ui.POST("/videos", h.submitVideo)
		ui.POST("/videos/select", h.selectVideo)
		ui.GET("/videos/jobs", h.listJobs)
		ui.GET("/videos/jobs/:id", h.getJob)
		ui.POST("/videos/jobs/:id/trim", h.trimVideo)
		ui.POST("/videos/jobs/:id/start", h.startVideo)
		ui.DELETE("/videos/jobs/:id", h.discardVideo)
		ui.GET("/videos/history", h.videoHistory)

		ui.GET("/analytics/:kind", h.analytics)
	}
}

func (h *Handler) snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(gin.H{
		"active":   h.session.Active(),
		"activity": snapshotResponse(h.session.Activity.Snapshot()),
		"feed":     snapshotResponse(h.session.Feed.Snapshot()),
		"status":   snapshotResponse(h.session.Status.Snapshot()),
	}))
}

func (h *Handler) statCardsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.statCards()))
}

func (h *Handler) violations(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(h.violationRows(limit)))
}

func (h *Handler) systemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.systemItems()))
}

func (h *Handler) feedsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.feeds()))
}

// feedTile hands out a fresh tile for one camera. The new nonce makes the
// browser open a new stream, which is how a failed feed is retried. A stream
// that still refuses to open comes back as the unavailable tile.
func (h *Handler) feedTile(c *gin.Context) {
	camID := c.Param("camId")
	for _, cam := range h.session.Feed.Snapshot().Data.Cameras {
		if cam.ID != camID {
			continue
		}
		feed := view.FeedView(cam.ID, h.session.Active(), view.Nonce(h.now()))
		if feed.Live && !h.feedReachable(c.Request.Context(), cam.ID) {
			feed = view.UnavailableFeed(cam.ID)
		}
		c.JSON(http.StatusOK, successResponse(feedTile{Camera: cam, Feed: feed}))
		return
	}
	c.JSON(http.StatusNotFound, errorResponse("unknown camera"))
}

// dashboard serves the summary endpoints the backend keeps for older
// dashboard builds.
func (h *Handler) dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		h.handleError(c, err)
		return
	}

	switch c.Param("kind") {
	case "summary":
		res, err := h.api.Dashboard.Summary(ctx)
		writeResult(h, c, res, err)
	case "violations":
		res, err := h.api.Dashboard.Violations(ctx, limit)
		writeResult(h, c, res, err)
	case "system-status":
		res, err := h.api.Dashboard.SystemStatus(ctx)
		writeResult(h, c, res, err)
	case "activity":
		res, err := h.api.Dashboard.Activity(ctx, limit)
		writeResult(h, c, res, err)
	default:
		c.JSON(http.StatusNotFound, errorResponse("unknown dashboard resource"))
	}
}

func (h *Handler) toggleMonitor(c *gin.Context) {
	// The target state is explicit; the local flag may lag the backend.
	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("active must be set to true or false"))
		return
	}

	res, err := h.session.Toggle(c.Request.Context(), *req.Active)
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.log.Info().
		Bool("active", res.Active).
		Msg("monitoring toggled")
	c.JSON(http.StatusOK, successResponse(res))
}

func (h *Handler) getSettings(c *gin.Context) {
	snap, err := h.loadedSettings(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(snap))
}

func (h *Handler) getThreshold(c *gin.Context) {
	snap, err := h.loadedSettings(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(safety.ThresholdSettings{Conf: snap.Threshold}))
}

func (h *Handler) setThreshold(c *gin.Context) {
	var req struct {
		Conf *float64 `json:"conf" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	conf, err := h.settings.SetThreshold(c.Request.Context(), *req.Conf)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{
		"conf":        conf,
		"save_status": h.settings.SaveStatus(),
	}))
}

func (h *Handler) toggleGear(c *gin.Context) {
	var req struct {
		Item string `json:"item" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	gear, err := h.settings.ToggleGear(c.Request.Context(), req.Item)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{
		"requirements": gear,
		"save_status":  h.settings.SaveStatus(),
	}))
}

// loadedSettings fetches settings on first use.
func (h *Handler) loadedSettings(ctx context.Context) (service.SettingsSnapshot, error) {
	snap := h.settings.Snapshot()
	if snap.Threshold != 0 {
		return snap, nil
	}
	if err := h.settings.Load(ctx); err != nil {
		return service.SettingsSnapshot{}, err
	}
	return h.settings.Snapshot(), nil
}

func (h *Handler) listCameras(c *gin.Context) {
	res, err := h.cameras.List(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resultResponse(h.cameras.Cameras(), res.Origin))
}

func (h *Handler) createCamera(c *gin.Context) {
	var cfg safety.CameraConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	created, err := h.cameras.Create(c.Request.Context(), cfg)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(created))
}

func (h *Handler) deleteCamera(c *gin.Context) {
	id := c.Param("id")
	if err := h.cameras.Delete(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"id": id, "status": "deleted"}))
}

func (h *Handler) analytics(c *gin.Context) {
	ctx := c.Request.Context()
	timeRange := c.DefaultQuery("range", "7days")

	switch c.Param("kind") {
	case "summary":
		res, err := h.api.Analytics.Summary(ctx)
		writeResult(h, c, res, err)
	case "violations-trend":
		res, err := h.api.Analytics.ViolationsTrend(ctx, timeRange)
		writeResult(h, c, res, err)
	case "compliance-score":
		res, err := h.api.Analytics.ComplianceScore(ctx, timeRange)
		writeResult(h, c, res, err)
	case "violations-by-type":
		res, err := h.api.Analytics.ViolationsByType(ctx)
		writeResult(h, c, res, err)
	case "camera-performance":
		res, err := h.api.Analytics.CameraPerformance(ctx)
		writeResult(h, c, res, err)
	default:
		c.JSON(http.StatusNotFound, errorResponse("unknown analytics resource"))
	}
}

func (h *Handler) statCards() []view.StatCard {
	act := h.session.Activity.Snapshot()
	feed := h.session.Feed.Snapshot()
	stats := act.Data.Stats
	if feed.UpdatedAt.After(act.UpdatedAt) {
		stats = feed.Data.Stats
	}
	return view.StatCards(stats, feed.Data.Cameras, act.Data.Logs.Logs)
}

func (h *Handler) violationRows(limit int) []view.LogRow {
	rows := view.ViolationRows(h.session.Activity.Snapshot().Data.Logs.Logs, h.now())
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func (h *Handler) systemItems() []safety.SystemItem {
	snap := h.session.Status.Snapshot()
	return view.SystemItems(view.StatusInput{
		Monitor:    snap.Data.Monitor,
		Threshold:  snap.Data.Threshold,
		Origin:     snap.Origin,
		State:      snap.State,
		BackendURL: h.config.Backend.BaseURL,
	})
}

type feedTile struct {
	Camera safety.CameraConfig `json:"camera"`
	Feed   view.Feed           `json:"feed"`
}

func (h *Handler) feeds() []feedTile {
	active := h.session.Active()
	nonce := view.Nonce(h.now())
	cams := h.session.Feed.Snapshot().Data.Cameras
	out := make([]feedTile, 0, len(cams))
	for _, cam := range cams {
		out = append(out, feedTile{Camera: cam, Feed: view.FeedView(cam.ID, active, nonce)})
	}
	return out
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var (
		statusErr   *backend.StatusError
		shapeErr    *backend.ValidationError
		tooLarge    *http.MaxBytesError
		transportEr *url.Error
	)
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, backend.ErrInvalidRange),
		errors.Is(err, export.ErrUnknownFormat):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrUnsupportedMedia):
		c.JSON(http.StatusUnsupportedMediaType, errorResponse(err.Error()))
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse(err.Error()))
	case errors.Is(err, context.Canceled):
		h.log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("request cancelled")
		c.Status(499)
	case errors.Is(err, context.DeadlineExceeded):
		h.log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("backend timed out")
		c.JSON(http.StatusGatewayTimeout, errorResponse("backend timed out"))
	case errors.As(err, &statusErr), errors.As(err, &shapeErr):
		h.log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("backend call failed")
		c.JSON(http.StatusBadGateway, errorResponse(err.Error()))
	case errors.As(err, &transportEr):
		h.log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("backend unreachable")
		c.JSON(http.StatusBadGateway, errorResponse("backend unavailable"))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func writeResult[T any](h *Handler, c *gin.Context, res backend.Result[T], err error) {
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resultResponse(res.Data, res.Origin))
}

func snapshotResponse[T any](snap poller.Snapshot[T]) gin.H {
	return gin.H{
		"state":      snap.State,
		"data":       snap.Data,
		"origin":     snap.Origin,
		"error":      snap.Error(),
		"updated_at": snap.UpdatedAt,
	}
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", service.ErrInvalidInput, key)
	}
	return n, nil
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func resultResponse(data interface{}, origin backend.Origin) gin.H {
	return gin.H{
		"data":   data,
		"origin": origin,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
