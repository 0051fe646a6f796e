package http

import (
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"ppe-dashboard/internal/backend"
	"ppe-dashboard/internal/domain/safety"
	"ppe-dashboard/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

var gearOptions = []string{"mask", "gloves", "coverall", "goggles", "face_shield"}

var pageFuncs = template.FuncMap{
	"percent": view.FormatPercent,
	"join":    strings.Join,
	"title": func(s string) string {
		s = strings.ReplaceAll(s, "_", " ")
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
	"contains": func(set []string, item string) bool {
		for _, s := range set {
			if s == item {
				return true
			}
		}
		return false
	},
}

func (h *Handler) registerPages(r *gin.Engine) {
	r.SetHTMLTemplate(template.Must(template.New("pages").Funcs(pageFuncs).ParseFS(templateFS, "templates/*.html")))

	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/dashboard")
	})
	r.GET("/dashboard", h.dashboardPage)
	r.GET("/monitor", h.monitorPage)
	r.GET("/logs", h.logsPage)
	r.GET("/analytics", h.analyticsPage)
}

func (h *Handler) dashboardPage(c *gin.Context) {
	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"Page":       "dashboard",
		"Active":     h.session.Active(),
		"Cards":      h.statCards(),
		"Violations": h.violationRows(recentLimit),
		"Items":      h.systemItems(),
	})
}

func (h *Handler) monitorPage(c *gin.Context) {
	act := h.session.Activity.Snapshot()
	c.HTML(http.StatusOK, "monitor.html", gin.H{
		"Page":     "monitor",
		"Active":   h.session.Active(),
		"Feeds":    h.feeds(),
		"Rows":     view.LogRows(act.Data.Logs.Logs, h.now()),
		"Error":    act.Error(),
		"Settings": h.settings.Snapshot(),
		"Gear":     gearOptions,
	})
}

func (h *Handler) logsPage(c *gin.Context) {
	data := gin.H{
		"Page":     "logs",
		"Severity": c.Query("severity"),
		"Camera":   c.Query("camera"),
		"Start":    c.Query("start"),
		"End":      c.Query("end"),
	}
	rows, res, err := h.searchRows(c)
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to load logs page")
		data["Error"] = err.Error()
	}
	data["Rows"] = rows
	data["Total"] = res.Data.Total
	data["Origin"] = res.Origin
	c.HTML(http.StatusOK, "logs.html", data)
}

func (h *Handler) analyticsPage(c *gin.Context) {
	timeRange := c.DefaultQuery("range", "7days")
	if !backend.ValidRange(timeRange) {
		timeRange = "7days"
	}

	var (
		summary backend.Result[safety.AnalyticsSummary]
		trend   backend.Result[[]safety.TrendPoint]
		score   backend.Result[[]safety.ScorePoint]
		byType  backend.Result[[]safety.TypeCount]
		cameras backend.Result[[]safety.CameraPerformance]
	)
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() (err error) {
		summary, err = h.api.Analytics.Summary(ctx)
		return err
	})
	g.Go(func() (err error) {
		trend, err = h.api.Analytics.ViolationsTrend(ctx, timeRange)
		return err
	})
	g.Go(func() (err error) {
		score, err = h.api.Analytics.ComplianceScore(ctx, timeRange)
		return err
	})
	g.Go(func() (err error) {
		byType, err = h.api.Analytics.ViolationsByType(ctx)
		return err
	})
	g.Go(func() (err error) {
		cameras, err = h.api.Analytics.CameraPerformance(ctx)
		return err
	})

	data := gin.H{
		"Page":   "analytics",
		"Range":  timeRange,
		"Ranges": []string{"7days", "30days", "90days"},
	}
	if err := g.Wait(); err != nil {
		h.log.Warn().Err(err).Str("range", timeRange).Msg("failed to load analytics page")
		data["Error"] = err.Error()
	} else {
		data["Summary"] = summary.Data
		data["Trend"] = trend.Data
		data["Score"] = score.Data
		data["ByType"] = byType.Data
		data["Cameras"] = cameras.Data
		data["Origin"] = summary.Origin
	}
	c.HTML(http.StatusOK, "analytics.html", data)
}
