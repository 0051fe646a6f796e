package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ppe-dashboard/internal/backend"
	"ppe-dashboard/internal/domain/safety"
	"ppe-dashboard/internal/export"
	"ppe-dashboard/internal/view"
)

func (h *Handler) logFilter(c *gin.Context) (backend.LogFilter, error) {
	page, err := queryInt(c, "page", 0)
	if err != nil {
		return backend.LogFilter{}, err
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return backend.LogFilter{}, err
	}
	return backend.LogFilter{
		Severity:  strings.TrimSpace(c.Query("severity")),
		Type:      strings.TrimSpace(c.Query("type")),
		Camera:    strings.TrimSpace(c.Query("camera")),
		StartDate: strings.TrimSpace(c.Query("start")),
		EndDate:   strings.TrimSpace(c.Query("end")),
		Page:      page,
		Limit:     limit,
	}, nil
}

// searchRows runs the backend search and applies the same filters locally,
// since older backends ignore some of them.
func (h *Handler) searchRows(c *gin.Context) ([]view.LogRow, backend.Result[safety.LogList], error) {
	filter, err := h.logFilter(c)
	if err != nil {
		return nil, backend.Result[safety.LogList]{}, err
	}
	res, err := h.api.Logs.Search(c.Request.Context(), filter)
	if err != nil {
		return nil, res, err
	}
	rows := view.FilterRows(view.LogRows(res.Data.Logs, h.now()), filter.Severity, filter.Camera)
	return rows, res, nil
}

func (h *Handler) listLogs(c *gin.Context) {
	rows, res, err := h.searchRows(c)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":   rows,
		"total":  res.Data.Total,
		"page":   res.Data.Page,
		"origin": res.Origin,
	})
}

func (h *Handler) exportLogs(c *gin.Context) {
	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatCSV)))
	if err != nil {
		h.handleError(c, err)
		return
	}
	rows, _, err := h.searchRows(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	filename := format.Filename("detection-logs-" + h.now().Format("20060102-150405"))
	c.Header("Content-Type", format.ContentType())
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)
	if err := export.Write(c.Writer, format, rows); err != nil {
		h.log.Error().
			Err(err).
			Str("format", string(format)).
			Int("rows", len(rows)).
			Msg("failed to write log export")
		return
	}

	h.log.Info().
		Str("format", string(format)).
		Int("rows", len(rows)).
		Msg("logs exported")
}

func (h *Handler) getLog(c *gin.Context) {
	res, err := h.api.Logs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resultResponse(view.NewLogRow(res.Data, h.now()), res.Origin))
}
